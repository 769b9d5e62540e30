package psql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements bootstrap an empty database. They are idempotent and never alter
// existing tables.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		uid           TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('farmer', 'customer')),
		district      TEXT NOT NULL CHECK (district IN ('Hambanthota', 'Matara', 'Galle')),
		profile_photo TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS prediction_logs (
		id         UUID PRIMARY KEY,
		user_id    TEXT NOT NULL,
		type       TEXT NOT NULL,
		input      JSONB NOT NULL DEFAULT 'null'::jsonb,
		output     JSONB NOT NULL DEFAULT 'null'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS prediction_logs_user_created_idx
		ON prediction_logs (user_id, created_at DESC)`,
}

// EnsureSchema creates the tables and history index when they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
