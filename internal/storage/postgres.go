package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notfall/dispatch-engine/internal/models"
)

var ErrNotFound = errors.New("record not found")

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
}

// NewPostgresRepository creates a new PostgreSQL repository and
// ensures the schema
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateTask inserts a new task record
func (r *PostgresRepository) CreateTask(ctx context.Context, t *models.Task) error {
	requirementsJSON, err := json.Marshal(t.Requirements)
	if err != nil {
		return fmt.Errorf("failed to marshal requirements: %w", err)
	}

	query := `
		INSERT INTO tasks (id, trade, location, budget, urgency, time_slot, description, created_at, deadline, requirements, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.pool.Exec(ctx, query,
		t.ID,
		t.Trade,
		t.Location,
		t.Budget,
		string(t.Urgency),
		nullString(t.TimeSlot),
		nullString(t.Description),
		t.CreatedAt,
		t.Deadline,
		requirementsJSON,
		string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetTask retrieves one task
func (r *PostgresRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `
		SELECT id, trade, location, budget, urgency, time_slot, description, created_at, deadline, requirements, status
		FROM tasks
		WHERE id = $1
	`

	var t models.Task
	var urgency, status string
	var timeSlot, description sql.NullString
	var requirementsJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Trade,
		&t.Location,
		&t.Budget,
		&urgency,
		&timeSlot,
		&description,
		&t.CreatedAt,
		&t.Deadline,
		&requirementsJSON,
		&status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	t.Urgency = models.Urgency(urgency)
	t.Status = models.TaskStatus(status)
	t.TimeSlot = timeSlot.String
	t.Description = description.String

	if err := json.Unmarshal(requirementsJSON, &t.Requirements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal requirements: %w", err)
	}

	return &t, nil
}

// SetTaskStatus updates one task's status
func (r *PostgresRepository) SetTaskStatus(ctx context.Context, id string, status models.TaskStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	return nil
}

// ListTasksByStatus returns tasks in one status, oldest first
func (r *PostgresRepository) ListTasksByStatus(ctx context.Context, status models.TaskStatus, limit int) ([]*models.Task, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, trade, location, budget, urgency, time_slot, description, created_at, deadline, requirements, status
		FROM tasks
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		var urgency, taskStatus string
		var timeSlot, description sql.NullString
		var requirementsJSON []byte

		if err := rows.Scan(
			&t.ID,
			&t.Trade,
			&t.Location,
			&t.Budget,
			&urgency,
			&timeSlot,
			&description,
			&t.CreatedAt,
			&t.Deadline,
			&requirementsJSON,
			&taskStatus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		t.Urgency = models.Urgency(urgency)
		t.Status = models.TaskStatus(taskStatus)
		t.TimeSlot = timeSlot.String
		t.Description = description.String
		if err := json.Unmarshal(requirementsJSON, &t.Requirements); err != nil {
			return nil, fmt.Errorf("failed to unmarshal requirements: %w", err)
		}

		tasks = append(tasks, &t)
	}

	return tasks, rows.Err()
}

// UpsertEngineer inserts or replaces an engineer record
func (r *PostgresRepository) UpsertEngineer(ctx context.Context, e *models.Engineer) error {
	expertiseJSON, err := json.Marshal(e.Expertise)
	if err != nil {
		return fmt.Errorf("failed to marshal expertise: %w", err)
	}
	certificationsJSON, err := json.Marshal(e.Certifications)
	if err != nil {
		return fmt.Errorf("failed to marshal certifications: %w", err)
	}
	scheduleJSON, err := json.Marshal(e.Schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	query := `
		INSERT INTO engineers (id, name, expertise, location, availability, hourly_rate, experience_years, rating, certifications, schedule)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			expertise = EXCLUDED.expertise,
			location = EXCLUDED.location,
			availability = EXCLUDED.availability,
			hourly_rate = EXCLUDED.hourly_rate,
			experience_years = EXCLUDED.experience_years,
			rating = EXCLUDED.rating,
			certifications = EXCLUDED.certifications,
			schedule = EXCLUDED.schedule
	`

	_, err = r.pool.Exec(ctx, query,
		e.ID,
		e.Name,
		expertiseJSON,
		e.Location,
		string(e.Availability),
		e.HourlyRate,
		e.ExperienceYears,
		e.Rating,
		certificationsJSON,
		scheduleJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert engineer: %w", err)
	}

	return nil
}

// ListEngineers returns all engineer records
func (r *PostgresRepository) ListEngineers(ctx context.Context) ([]*models.Engineer, error) {
	query := `
		SELECT id, name, expertise, location, availability, hourly_rate, experience_years, rating, certifications, schedule
		FROM engineers
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list engineers: %w", err)
	}
	defer rows.Close()

	var engineers []*models.Engineer
	for rows.Next() {
		var e models.Engineer
		var availability string
		var expertiseJSON, certificationsJSON, scheduleJSON []byte

		if err := rows.Scan(
			&e.ID,
			&e.Name,
			&expertiseJSON,
			&e.Location,
			&availability,
			&e.HourlyRate,
			&e.ExperienceYears,
			&e.Rating,
			&certificationsJSON,
			&scheduleJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan engineer: %w", err)
		}

		e.Availability = models.Availability(availability)
		if err := json.Unmarshal(expertiseJSON, &e.Expertise); err != nil {
			return nil, fmt.Errorf("failed to unmarshal expertise: %w", err)
		}
		if err := json.Unmarshal(certificationsJSON, &e.Certifications); err != nil {
			return nil, fmt.Errorf("failed to unmarshal certifications: %w", err)
		}
		if err := json.Unmarshal(scheduleJSON, &e.Schedule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
		}

		engineers = append(engineers, &e)
	}

	return engineers, rows.Err()
}

// SetEngineerAvailability updates one engineer's availability
func (r *PostgresRepository) SetEngineerAvailability(ctx context.Context, id string, availability models.Availability) error {
	tag, err := r.pool.Exec(ctx, `UPDATE engineers SET availability = $2 WHERE id = $1`, id, string(availability))
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: engineer %s", ErrNotFound, id)
	}
	return nil
}

// AssignTask records a task/engineer assignment and mirrors the
// engineer's busy state
func (r *PostgresRepository) AssignTask(ctx context.Context, taskID, engineerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin assignment: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO assignments (task_id, engineer_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		taskID, engineerID,
	); err != nil {
		return fmt.Errorf("failed to record assignment: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE engineers SET availability = $2 WHERE id = $1`,
		engineerID, string(models.Busy),
	); err != nil {
		return fmt.Errorf("failed to mark engineer busy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit assignment: %w", err)
	}

	return nil
}

// RecordCompletion stores a completion timestamp for SLA review
func (r *PostgresRepository) RecordCompletion(ctx context.Context, taskID, completionTime string) error {
	query := `
		INSERT INTO sla_records (task_id, deadline, completion_time)
		SELECT id, to_char(deadline, 'YYYY-MM-DD"T"HH24:MI:SS'), $2
		FROM tasks WHERE id = $1
		ON CONFLICT (task_id) DO UPDATE SET completion_time = EXCLUDED.completion_time, reviewed = FALSE
	`

	tag, err := r.pool.Exec(ctx, query, taskID, completionTime)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return nil
}

// CompletedSLARecords returns completions awaiting SLA review
func (r *PostgresRepository) CompletedSLARecords(ctx context.Context) ([]models.SLARecord, error) {
	query := `
		SELECT task_id, deadline, completion_time
		FROM sla_records
		WHERE reviewed = FALSE
		ORDER BY recorded_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sla records: %w", err)
	}
	defer rows.Close()

	var records []models.SLARecord
	for rows.Next() {
		var rec models.SLARecord
		if err := rows.Scan(&rec.TaskID, &rec.Deadline, &rec.CompletionTime); err != nil {
			return nil, fmt.Errorf("failed to scan sla record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// MarkSLAReviewed stores the evaluated score and closes the record
func (r *PostgresRepository) MarkSLAReviewed(ctx context.Context, taskID string, record models.SLARecord) error {
	query := `
		UPDATE sla_records
		SET compliance_score = $2, category = $3, escalation_level = $4, degraded = $5, reviewed = TRUE
		WHERE task_id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		taskID,
		record.ComplianceScore,
		string(record.Category),
		record.EscalationLevel,
		record.Degraded,
	)
	if err != nil {
		return fmt.Errorf("failed to mark sla record reviewed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sla record %s", ErrNotFound, taskID)
	}
	return nil
}

// nullString converts empty strings to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
