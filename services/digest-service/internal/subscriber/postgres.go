package subscriber

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stoik/timeline/internal/models"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore reads the subscribers table.
type PostgresStore struct {
	db     DB
	logger *slog.Logger
}

func NewPostgresStore(db DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger.With("component", "subscriber.postgres")}
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Subscriber, error) {
	query := `SELECT email, github_username FROM subscribers ORDER BY created_at, email`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	c := newCollector(s.logger, "postgres:subscribers")
	pos := 0
	for rows.Next() {
		pos++
		var sub models.Subscriber
		if err := rows.Scan(&sub.Email, &sub.GitHubUsername); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		if err := Validate(sub); err != nil {
			s.logger.Warn("skipping subscriber record", "position", pos, "error", err)
			continue
		}
		c.add(pos, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscribers: %w", err)
	}
	return c.result(), nil
}

// Upsert inserts sub, replacing the username of an existing email.
func (s *PostgresStore) Upsert(ctx context.Context, sub models.Subscriber) error {
	if err := Validate(sub); err != nil {
		return err
	}
	query := `
		INSERT INTO subscribers (email, github_username)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET github_username = EXCLUDED.github_username
	`
	if _, err := s.db.Exec(ctx, query, sub.Email, sub.GitHubUsername); err != nil {
		return fmt.Errorf("failed to upsert subscriber %s: %w", sub.Email, err)
	}
	return nil
}
