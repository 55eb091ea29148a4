package sla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/notfall/dispatch-engine/internal/models"
)

var ErrInvalidThreshold = errors.New("compliance threshold must be in (0, 1]")

// Dispatcher delivers alerts to engineers and operators. Retry is
// owned by the monitor, not the dispatcher.
type Dispatcher interface {
	Send(ctx context.Context, alert models.Alert) error
}

// DeliveryFailure reports an alert whose dispatch exhausted its
// retries. It is a structured result, never an error.
type DeliveryFailure struct {
	AlertID  string `json:"alert_id"`
	TaskID   string `json:"task_id"`
	Attempts int    `json:"attempts"`
	LastErr  string `json:"last_error"`
}

// Monitor aggregates compliance across task batches, classifies
// severity and drives escalation
type Monitor struct {
	threshold      float64
	escalationBase int
	retries        int
	retryDelay     time.Duration
	dispatcher     Dispatcher
}

// NewMonitor creates a monitor. threshold must sit in (0, 1].
func NewMonitor(threshold float64, dispatcher Dispatcher, retries int, retryDelay time.Duration) (*Monitor, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	if retries <= 0 {
		retries = 3
	}
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Monitor{
		threshold:      threshold,
		escalationBase: models.DefaultEscalationBase,
		retries:        retries,
		retryDelay:     retryDelay,
		dispatcher:     dispatcher,
	}, nil
}

// Categorise maps a compliance score to an alert severity
func (m *Monitor) Categorise(score float64) models.AlertCategory {
	switch {
	case score < m.threshold*0.5:
		return models.CategoryCritical
	case score < m.threshold:
		return models.CategoryWarning
	default:
		return models.CategoryInfo
	}
}

// EscalateAlert raises an alert one level and stamps the message with
// exactly one marker per call. Repeated calls keep incrementing.
func EscalateAlert(alert *models.Alert) {
	alert.EscalationLevel++
	alert.Message += fmt.Sprintf(" [Escalated to Level %d]", alert.EscalationLevel)
	slog.Info("alert escalated",
		"alert_id", alert.ID,
		"task_id", alert.TaskID,
		"level", alert.EscalationLevel,
	)
}

// EvaluateBatch scores and classifies a batch of completed tasks.
// Records come back in input order with compliance score, category and
// the degraded flag filled in.
func (m *Monitor) EvaluateBatch(records []models.SLARecord) []models.SLARecord {
	evaluated := make([]models.SLARecord, len(records))
	for i, record := range records {
		record = Evaluate(record)
		record.Category = m.Categorise(record.ComplianceScore)
		evaluated[i] = record
	}
	return evaluated
}

// Report aggregates a batch of evaluated records
func (m *Monitor) Report(evaluated []models.SLARecord) models.SLAReport {
	report := models.SLAReport{TotalTasks: len(evaluated)}
	var totalCompliance float64

	for _, record := range evaluated {
		totalCompliance += record.ComplianceScore
		if record.ComplianceScore >= m.threshold {
			report.CompliantTasks++
			continue
		}
		report.NonCompliant = append(report.NonCompliant, record)
	}

	if report.TotalTasks > 0 {
		report.ComplianceRate = float64(report.CompliantTasks) / float64(report.TotalTasks)
		report.AverageCompliance = totalCompliance / float64(report.TotalTasks)
	}

	return report
}

// Alert raises and dispatches alerts for the non-compliant records of
// an evaluated batch. Critical records are escalated before dispatch.
func (m *Monitor) Alert(ctx context.Context, evaluated []models.SLARecord) []DeliveryFailure {
	var failures []DeliveryFailure

	for _, record := range evaluated {
		if record.ComplianceScore >= m.threshold {
			continue
		}

		alert := models.Alert{
			ID:              uuid.New().String(),
			TaskID:          record.TaskID,
			Message:         fmt.Sprintf("SLA breached for task %s (compliance %.2f)", record.TaskID, record.ComplianceScore),
			Category:        record.Category,
			EscalationLevel: m.escalationBase,
			CreatedAt:       time.Now().UTC(),
		}

		if record.Category == models.CategoryCritical {
			EscalateAlert(&alert)
		}

		if failure := m.dispatch(ctx, alert); failure != nil {
			failures = append(failures, *failure)
		}
	}

	return failures
}

// Run scores and classifies a batch of completed tasks, escalates and
// dispatches alerts for non-compliant ones, and returns the aggregate
// report plus any exhausted deliveries.
func (m *Monitor) Run(ctx context.Context, records []models.SLARecord) (models.SLAReport, []DeliveryFailure) {
	evaluated := m.EvaluateBatch(records)
	report := m.Report(evaluated)
	failures := m.Alert(ctx, evaluated)

	slog.Info("sla batch evaluated",
		"total", report.TotalTasks,
		"compliant", report.CompliantTasks,
		"compliance_rate", report.ComplianceRate,
		"delivery_failures", len(failures),
	)

	return report, failures
}

// dispatch sends one alert with bounded retry and a fixed delay
// between attempts. Exhaustion is reported, not raised; escalation is
// not retried further.
func (m *Monitor) dispatch(ctx context.Context, alert models.Alert) *DeliveryFailure {
	if m.dispatcher == nil {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.retries; attempt++ {
		lastErr = m.dispatcher.Send(ctx, alert)
		if lastErr == nil {
			return nil
		}

		slog.Warn("alert dispatch failed",
			"alert_id", alert.ID,
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt < m.retries {
			select {
			case <-ctx.Done():
				return &DeliveryFailure{
					AlertID:  alert.ID,
					TaskID:   alert.TaskID,
					Attempts: attempt,
					LastErr:  lastErr.Error(),
				}
			case <-time.After(m.retryDelay):
			}
		}
	}

	return &DeliveryFailure{
		AlertID:  alert.ID,
		TaskID:   alert.TaskID,
		Attempts: m.retries,
		LastErr:  lastErr.Error(),
	}
}
