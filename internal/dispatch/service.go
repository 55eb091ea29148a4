package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/notfall/dispatch-engine/internal/matching"
	"github.com/notfall/dispatch-engine/internal/models"
	"github.com/notfall/dispatch-engine/internal/notify"
	"github.com/notfall/dispatch-engine/internal/scheduler"
	"github.com/notfall/dispatch-engine/internal/sla"
	"github.com/notfall/dispatch-engine/internal/storage"
)

// Common errors
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrNoTasks      = errors.New("no tasks to match")
	ErrInvalidInput = errors.New("invalid input")
)

// Service ties the ranking engine, the roster and the store together
// behind the operations the API exposes.
type Service struct {
	engine   *matching.Engine
	roster   *scheduler.Roster
	assigner *scheduler.Assigner
	monitor  *sla.Monitor
	repo     storage.Repository
	notifier *notify.ConnectionManager
}

// NewService creates the dispatch service
func NewService(
	engine *matching.Engine,
	roster *scheduler.Roster,
	assigner *scheduler.Assigner,
	monitor *sla.Monitor,
	repo storage.Repository,
	notifier *notify.ConnectionManager,
) *Service {
	return &Service{
		engine:   engine,
		roster:   roster,
		assigner: assigner,
		monitor:  monitor,
		repo:     repo,
		notifier: notifier,
	}
}

// LoadRoster hydrates the in-memory roster from the store. Called once
// on startup before the API accepts traffic.
func (s *Service) LoadRoster(ctx context.Context) error {
	engineers, err := s.repo.ListEngineers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list engineers: %w", err)
	}

	for _, e := range engineers {
		if err := s.roster.Register(*e); err != nil {
			slog.Warn("skipping invalid engineer record", "engineer_id", e.ID, "error", err)
		}
	}

	slog.Info("roster loaded", "engineers", len(engineers))
	return nil
}

// CreateTask registers a new service task in pending state
func (s *Service) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	task := &models.Task{
		ID:           uuid.New().String(),
		Trade:        req.Trade,
		Location:     req.Location,
		Budget:       req.Budget,
		Urgency:      req.Urgency,
		TimeSlot:     req.TimeSlot,
		Description:  req.Description,
		CreatedAt:    time.Now().UTC(),
		Deadline:     req.Deadline,
		Requirements: req.Requirements,
		Status:       models.TaskPending,
	}

	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	slog.Info("task created", "task_id", task.ID, "trade", task.Trade, "urgency", task.Urgency)
	return task, nil
}

// GetTask retrieves a task by ID
func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// RegisterEngineer stores an engineer and adds them to the live roster
func (s *Service) RegisterEngineer(ctx context.Context, e models.Engineer) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Availability == "" {
		e.Availability = models.Available
	}

	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.repo.UpsertEngineer(ctx, &e); err != nil {
		return fmt.Errorf("failed to store engineer: %w", err)
	}

	if err := s.roster.Register(e); err != nil {
		return fmt.Errorf("failed to register engineer: %w", err)
	}

	slog.Info("engineer registered", "engineer_id", e.ID, "expertise", e.Expertise)
	return nil
}

// Engineers returns the current roster
func (s *Service) Engineers() []models.Engineer {
	return s.roster.Snapshot()
}

// Match ranks the roster against the given tasks and returns one
// ordered candidate list per task.
func (s *Service) Match(ctx context.Context, taskIDs []string) (map[string][]models.MatchCandidate, error) {
	if len(taskIDs) == 0 {
		return nil, ErrNoTasks
	}

	tasks := make([]models.Task, 0, len(taskIDs))
	for _, id := range taskIDs {
		task, err := s.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return s.engine.Rank(ctx, tasks, s.roster.Snapshot())
}

// Assign picks and reserves the best suitable engineer for a task. A
// ranking pass over the current roster supplies per-engineer proximity
// for tie-breaking.
func (s *Service) Assign(ctx context.Context, taskID string) (scheduler.Result, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return scheduler.Result{}, err
	}

	proximity := make(map[string]float64)
	ranked, err := s.engine.Rank(ctx, []models.Task{*task}, s.roster.Snapshot())
	if err != nil {
		slog.Warn("ranking failed, assigning without proximity", "task_id", taskID, "error", err)
	} else {
		for _, c := range ranked[taskID] {
			proximity[c.EngineerID] = c.Distance
		}
	}

	result, err := s.assigner.Assign(ctx, task, proximity)
	if err != nil {
		return scheduler.Result{}, err
	}

	if result.Outcome == scheduler.OutcomeAssigned && s.notifier != nil {
		if err := s.notifier.NotifyAssignment(result.Engineer.ID, taskID); err != nil {
			slog.Warn("assignment notification not delivered", "engineer_id", result.Engineer.ID, "error", err)
		}
	}

	return result, nil
}

// ReleaseEngineer returns an engineer to the available pool
func (s *Service) ReleaseEngineer(ctx context.Context, id string) error {
	if err := s.assigner.Release(id); err != nil {
		return err
	}

	if err := s.repo.SetEngineerAvailability(ctx, id, models.Available); err != nil {
		return fmt.Errorf("failed to persist availability: %w", err)
	}

	return nil
}

// CompleteTask records when a task finished so the SLA worker can score
// it on its next cycle.
func (s *Service) CompleteTask(ctx context.Context, taskID, completionTime string) error {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return err
	}

	if err := s.repo.RecordCompletion(ctx, taskID, completionTime); err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}

	slog.Info("task completed", "task_id", taskID, "completion_time", completionTime)
	return nil
}

// SLAReport scores the completed tasks awaiting review and aggregates
// them. Read only: no alerts are raised and nothing is marked reviewed.
func (s *Service) SLAReport(ctx context.Context) (models.SLAReport, error) {
	records, err := s.repo.CompletedSLARecords(ctx)
	if err != nil {
		return models.SLAReport{}, fmt.Errorf("failed to load completed tasks: %w", err)
	}

	return s.monitor.Report(s.monitor.EvaluateBatch(records)), nil
}

// Ping checks that the backing store is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close releases the service's resources
func (s *Service) Close() error {
	return s.repo.Close()
}
