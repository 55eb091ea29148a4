package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the dispatch-engine tables. Statements are idempotent
// and applied in order at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id VARCHAR(64) PRIMARY KEY,
		trade VARCHAR(64) NOT NULL,
		location TEXT NOT NULL,
		budget DOUBLE PRECISION NOT NULL,
		urgency VARCHAR(16) NOT NULL,
		time_slot TEXT,
		description TEXT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		deadline TIMESTAMP WITH TIME ZONE NOT NULL,
		requirements JSONB NOT NULL DEFAULT '[]',
		status VARCHAR(16) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS engineers (
		id VARCHAR(64) PRIMARY KEY,
		name TEXT NOT NULL,
		expertise JSONB NOT NULL DEFAULT '[]',
		location TEXT NOT NULL,
		availability VARCHAR(16) NOT NULL,
		hourly_rate DOUBLE PRECISION NOT NULL,
		experience_years DOUBLE PRECISION NOT NULL,
		rating DOUBLE PRECISION NOT NULL,
		certifications JSONB NOT NULL DEFAULT '[]',
		schedule JSONB NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		task_id VARCHAR(64) NOT NULL REFERENCES tasks(id),
		engineer_id VARCHAR(64) NOT NULL REFERENCES engineers(id),
		assigned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		PRIMARY KEY (task_id, engineer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sla_records (
		task_id VARCHAR(64) PRIMARY KEY REFERENCES tasks(id),
		deadline TEXT NOT NULL,
		completion_time TEXT NOT NULL,
		compliance_score DOUBLE PRECISION,
		category VARCHAR(16),
		escalation_level INT NOT NULL DEFAULT 0,
		degraded BOOLEAN NOT NULL DEFAULT FALSE,
		reviewed BOOLEAN NOT NULL DEFAULT FALSE,
		recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	`CREATE INDEX IF NOT EXISTS idx_sla_records_reviewed ON sla_records(reviewed)`,
}

// EnsureSchema applies the dispatch-engine schema
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("ensuring database schema", "statements", len(schema))

	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}

	return nil
}
