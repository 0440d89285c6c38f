package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const migrationSQL = `
	-- Subscribers (read by the digest pipeline, written by setup --import)
	CREATE TABLE IF NOT EXISTS subscribers (
	    email VARCHAR(254) PRIMARY KEY,
	    github_username VARCHAR(39) NOT NULL,
	    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	-- One row per digest cycle
	CREATE TABLE IF NOT EXISTS digest_runs (
	    id UUID PRIMARY KEY,
	    status VARCHAR(16) NOT NULL,
	    subscribers INTEGER NOT NULL,
	    sent INTEGER NOT NULL,
	    skipped INTEGER NOT NULL,
	    fetch_failures INTEGER NOT NULL,
	    send_failures INTEGER NOT NULL,
	    message TEXT,
	    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
	    finished_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_digest_runs_started_at ON digest_runs(started_at);
`

// Migrate creates the tables used by the postgres subscriber source and the run log.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
