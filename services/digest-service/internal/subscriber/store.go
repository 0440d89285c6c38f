// Package subscriber lists the people who receive digests. Stores are read
// only to the digest pipeline.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stoik/timeline/internal/models"
)

// Store yields the current subscriber list.
type Store interface {
	List(ctx context.Context) ([]models.Subscriber, error)
}

var (
	ErrMalformed = errors.New("malformed subscriber record")
	ErrInvalid   = errors.New("invalid subscriber")
)

var validate = validator.New()

// ParseRecord parses one "email|github_username" record.
func ParseRecord(record string) (models.Subscriber, error) {
	email, username, ok := strings.Cut(strings.TrimSpace(record), "|")
	if !ok {
		return models.Subscriber{}, fmt.Errorf("%w: %q", ErrMalformed, record)
	}
	sub := models.Subscriber{
		Email:          strings.TrimSpace(email),
		GitHubUsername: strings.TrimSpace(username),
	}
	if err := Validate(sub); err != nil {
		return models.Subscriber{}, err
	}
	return sub, nil
}

// Validate checks the email address and username of sub.
func Validate(sub models.Subscriber) error {
	if err := validate.Struct(sub); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalid, sub.Email, err)
	}
	if strings.ContainsAny(sub.GitHubUsername, "/| \t") {
		return fmt.Errorf("%w %q: bad github username %q", ErrInvalid, sub.Email, sub.GitHubUsername)
	}
	return nil
}

// collector keeps the first record per email and logs everything it drops.
type collector struct {
	logger *slog.Logger
	source string
	seen   map[string]bool
	subs   []models.Subscriber
}

func newCollector(logger *slog.Logger, source string) *collector {
	return &collector{logger: logger, source: source, seen: make(map[string]bool)}
}

func (c *collector) addRecord(pos int, record string) {
	if strings.TrimSpace(record) == "" {
		return
	}
	sub, err := ParseRecord(record)
	if err != nil {
		c.logger.Warn("skipping subscriber record", "source", c.source, "position", pos, "error", err)
		return
	}
	c.add(pos, sub)
}

func (c *collector) add(pos int, sub models.Subscriber) {
	key := strings.ToLower(sub.Email)
	if c.seen[key] {
		c.logger.Warn("skipping duplicate subscriber", "source", c.source, "position", pos, "email", sub.Email)
		return
	}
	c.seen[key] = true
	c.subs = append(c.subs, sub)
}

func (c *collector) result() []models.Subscriber {
	if c.subs == nil {
		return []models.Subscriber{}
	}
	return c.subs
}
