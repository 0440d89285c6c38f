// Package runlog keeps a history of digest cycles.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stoik/timeline/internal/models"
)

// ErrNoRuns is returned by Last when no cycle has been recorded yet.
var ErrNoRuns = errors.New("no cycle has been recorded")

// Recorder stores finished cycles.
type Recorder interface {
	Record(ctx context.Context, r models.CycleResult) error
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRecorder writes one row per cycle into digest_runs.
type PostgresRecorder struct {
	db     DB
	logger *slog.Logger
}

func NewPostgresRecorder(db DB, logger *slog.Logger) *PostgresRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRecorder{db: db, logger: logger.With("component", "runlog")}
}

func (p *PostgresRecorder) Record(ctx context.Context, r models.CycleResult) error {
	query := `
		INSERT INTO digest_runs (id, status, subscribers, sent, skipped, fetch_failures, send_failures, message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := p.db.Exec(ctx, query,
		r.ID,
		string(r.Status),
		r.Subscribers,
		r.Sent,
		r.Skipped,
		r.FetchFailures,
		r.SendFailures,
		r.Message,
		r.StartedAt,
		r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle %s: %w", r.ID, err)
	}
	p.logger.Debug("cycle recorded", "cycle_id", r.ID, "status", r.Status)
	return nil
}

// Last returns the most recent recorded cycle, or ErrNoRuns.
func (p *PostgresRecorder) Last(ctx context.Context) (models.CycleResult, error) {
	query := `SELECT id, status, subscribers, sent, skipped, fetch_failures, send_failures, COALESCE(message, ''), started_at, finished_at
		FROM digest_runs ORDER BY started_at DESC LIMIT 1`

	var r models.CycleResult
	var status string
	err := p.db.QueryRow(ctx, query).Scan(
		&r.ID,
		&status,
		&r.Subscribers,
		&r.Sent,
		&r.Skipped,
		&r.FetchFailures,
		&r.SendFailures,
		&r.Message,
		&r.StartedAt,
		&r.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CycleResult{}, ErrNoRuns
	}
	if err != nil {
		return models.CycleResult{}, fmt.Errorf("failed to read last cycle: %w", err)
	}
	r.Status = models.CycleStatus(status)
	return r, nil
}
