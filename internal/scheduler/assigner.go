package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notfall/dispatch-engine/internal/models"
)

// Reschedule reasons.
const (
	ReasonNoTrade       = "no engineer has required trade"
	ReasonNoneAvailable = "no suitable engineers available"
)

// Outcome is the result kind of one assignment attempt. Failing to
// find an engineer is a normal outcome, not an error.
type Outcome string

const (
	OutcomeAssigned   Outcome = "assigned"
	OutcomeReschedule Outcome = "reschedule"
)

// Result reports one assignment attempt
type Result struct {
	Outcome  Outcome          `json:"outcome"`
	TaskID   string           `json:"task_id"`
	Engineer *models.Engineer `json:"engineer,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

// AssignmentSink receives assignment decisions after the local
// availability flip. Sink failures never silently undo the flip; the
// two sides are reconciled out of band.
type AssignmentSink interface {
	AssignTask(ctx context.Context, taskID, engineerID string) error
	SetTaskStatus(ctx context.Context, taskID string, status models.TaskStatus) error
}

// Assigner resolves a task against the roster into an exclusive
// assignment
type Assigner struct {
	roster *Roster
	sink   AssignmentSink
}

// NewAssigner creates an assigner over a roster and a sink
func NewAssigner(roster *Roster, sink AssignmentSink) *Assigner {
	return &Assigner{
		roster: roster,
		sink:   sink,
	}
}

// Assign picks the best suitable engineer for the task and reserves
// them. proximity optionally maps engineer id to distance in km for
// tie-breaking; missing entries sort last.
func (a *Assigner) Assign(ctx context.Context, task *models.Task, proximity map[string]float64) (Result, error) {
	if task == nil {
		return Result{}, fmt.Errorf("task is required")
	}

	reserved, hadTrade := a.roster.reserveBest(task, proximity)
	if reserved == nil {
		reason := ReasonNoneAvailable
		if !hadTrade {
			reason = ReasonNoTrade
		}
		slog.Info("no engineer for task", "task_id", task.ID, "reason", reason)
		return Result{
			Outcome: OutcomeReschedule,
			TaskID:  task.ID,
			Reason:  reason,
		}, nil
	}

	slog.Info("task assigned",
		"task_id", task.ID,
		"engineer_id", reserved.ID,
		"rating", reserved.Rating,
	)

	if a.sink != nil {
		// The reservation is already final; sink failures leave the
		// local and remote views divergent for the caller to
		// reconcile.
		if err := a.sink.AssignTask(ctx, task.ID, reserved.ID); err != nil {
			slog.Error("assignment sink rejected assignment", "task_id", task.ID, "engineer_id", reserved.ID, "error", err)
		}
		if err := a.sink.SetTaskStatus(ctx, task.ID, models.TaskAssigned); err != nil {
			slog.Error("assignment sink rejected status update", "task_id", task.ID, "error", err)
		}
	}

	return Result{
		Outcome:  OutcomeAssigned,
		TaskID:   task.ID,
		Engineer: reserved,
	}, nil
}

// Release returns a previously reserved engineer to the pool
func (a *Assigner) Release(id string) error {
	if err := a.roster.Release(id); err != nil {
		return err
	}
	slog.Info("engineer released", "engineer_id", id)
	return nil
}
