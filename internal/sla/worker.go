package sla

import (
	"context"
	"log/slog"
	"time"

	"github.com/notfall/dispatch-engine/internal/models"
)

// RecordSource supplies completed tasks awaiting SLA review and lets
// the worker mark them reviewed once scored.
type RecordSource interface {
	CompletedSLARecords(ctx context.Context) ([]models.SLARecord, error)
	MarkSLAReviewed(ctx context.Context, taskID string, record models.SLARecord) error
}

// Worker periodically pulls completed tasks and runs the monitor over
// them
type Worker struct {
	monitor  *Monitor
	source   RecordSource
	interval time.Duration
}

// NewWorker creates an SLA monitoring worker
func NewWorker(monitor *Monitor, source RecordSource, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Worker{
		monitor:  monitor,
		source:   source,
		interval: interval,
	}
}

// Start begins the worker in a goroutine
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// run is the main loop for the monitoring worker
func (w *Worker) run(ctx context.Context) {
	slog.Info("sla worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	w.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("sla worker stopped")
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// cycle evaluates one batch of completed tasks
func (w *Worker) cycle(ctx context.Context) {
	records, err := w.source.CompletedSLARecords(ctx)
	if err != nil {
		slog.Error("failed to load completed tasks", "error", err)
		return
	}

	if len(records) == 0 {
		slog.Debug("no completed tasks to review")
		return
	}

	evaluated := w.monitor.EvaluateBatch(records)
	report := w.monitor.Report(evaluated)
	failures := w.monitor.Alert(ctx, evaluated)

	for _, record := range evaluated {
		if err := w.source.MarkSLAReviewed(ctx, record.TaskID, record); err != nil {
			slog.Error("failed to mark task reviewed", "task_id", record.TaskID, "error", err)
		}
	}

	for _, f := range failures {
		slog.Error("alert delivery exhausted",
			"alert_id", f.AlertID,
			"task_id", f.TaskID,
			"attempts", f.Attempts,
			"last_error", f.LastErr,
		)
	}

	if len(report.NonCompliant) > 0 {
		slog.Warn("sla violations found",
			"violations", len(report.NonCompliant),
			"compliance_rate", report.ComplianceRate,
		)
	}
}
