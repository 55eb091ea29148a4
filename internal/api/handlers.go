package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/notfall/dispatch-engine/internal/dispatch"
	"github.com/notfall/dispatch-engine/internal/models"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Task handlers

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Trade == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "trade is required")
		return
	}

	if req.Urgency == "" {
		req.Urgency = models.NonUrgent
	}

	task, err := s.service.CreateTask(r.Context(), req)
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		slog.Error("failed to create task", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create task")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "task id is required")
		return
	}

	task, err := s.service.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, dispatch.ErrTaskNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		slog.Error("failed to get task", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "task id is required")
		return
	}

	result, err := s.service.Assign(r.Context(), id)
	if err != nil {
		if errors.Is(err, dispatch.ErrTaskNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		slog.Error("failed to assign task", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to assign task")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "task id is required")
		return
	}

	var req struct {
		CompletionTime string `json:"completion_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.CompletionTime == "" {
		req.CompletionTime = time.Now().UTC().Format(time.RFC3339)
	}

	if err := s.service.CompleteTask(r.Context(), id, req.CompletionTime); err != nil {
		if errors.Is(err, dispatch.ErrTaskNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		slog.Error("failed to complete task", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to complete task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "completion recorded",
	})
}

// Engineer handlers

func (s *Server) handleRegisterEngineer(w http.ResponseWriter, r *http.Request) {
	var engineer models.Engineer
	if err := json.NewDecoder(r.Body).Decode(&engineer); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := s.service.RegisterEngineer(r.Context(), engineer); err != nil {
		if errors.Is(err, dispatch.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		slog.Error("failed to register engineer", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to register engineer")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "engineer registered",
	})
}

func (s *Server) handleListEngineers(w http.ResponseWriter, r *http.Request) {
	engineers := s.service.Engineers()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"engineers": engineers,
		"total":     len(engineers),
	})
}

func (s *Server) handleReleaseEngineer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "engineer id is required")
		return
	}

	if err := s.service.ReleaseEngineer(r.Context(), id); err != nil {
		slog.Error("failed to release engineer", "error", err, "id", id)
		respondError(w, http.StatusConflict, "release_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "engineer released",
	})
}

// Matching handlers

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if len(req.TaskIDs) == 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "task_ids is required")
		return
	}

	ranked, err := s.service.Match(r.Context(), req.TaskIDs)
	if err != nil {
		if errors.Is(err, dispatch.ErrTaskNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		slog.Error("failed to rank candidates", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to rank candidates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches": ranked,
		"tasks":   len(ranked),
	})
}

// SLA handlers

func (s *Server) handleSLAReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.SLAReport(r.Context())
	if err != nil {
		slog.Error("failed to build sla report", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to build sla report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}
