package subscriber

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/stoik/timeline/internal/models"
)

// FileStore reads a flat file with one "email|github_username" record per line.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger.With("component", "subscriber.file")}
}

// List returns the subscribers in file order. A missing file is an error so a
// misconfigured path is not mistaken for an empty list.
func (s *FileStore) List(ctx context.Context) ([]models.Subscriber, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("subscriber file %s does not exist: %w", s.path, err)
		}
		return nil, fmt.Errorf("failed to open subscriber file: %w", err)
	}
	defer f.Close()

	return parse(ctx, f, s.path, s.logger)
}

func parse(ctx context.Context, r io.Reader, source string, logger *slog.Logger) ([]models.Subscriber, error) {
	c := newCollector(logger, source)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		c.addRecord(line, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return c.result(), nil
}
