package storage

import (
	"context"

	"github.com/notfall/dispatch-engine/internal/models"
)

// Repository defines the persistence collaborator the dispatch core
// talks to. The core only ever sees this interface; it doubles as the
// assignment sink and the SLA record source.
type Repository interface {
	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	SetTaskStatus(ctx context.Context, id string, status models.TaskStatus) error
	ListTasksByStatus(ctx context.Context, status models.TaskStatus, limit int) ([]*models.Task, error)

	// Engineers
	UpsertEngineer(ctx context.Context, e *models.Engineer) error
	ListEngineers(ctx context.Context) ([]*models.Engineer, error)
	SetEngineerAvailability(ctx context.Context, id string, availability models.Availability) error

	// Assignments
	AssignTask(ctx context.Context, taskID, engineerID string) error

	// SLA
	RecordCompletion(ctx context.Context, taskID, completionTime string) error
	CompletedSLARecords(ctx context.Context) ([]models.SLARecord, error)
	MarkSLAReviewed(ctx context.Context, taskID string, record models.SLARecord) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
