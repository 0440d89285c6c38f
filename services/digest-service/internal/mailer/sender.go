// Package mailer delivers rendered digests.
package mailer

import (
	"context"
	"log/slog"
	"strings"
)

// Sender delivers one digest. Implementations must be safe for concurrent use.
type Sender interface {
	SendDigest(ctx context.Context, recipient, subject, htmlBody, textBody string) error
}

// LogSender writes digests to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With("component", "mailer.log")}
}

func (s *LogSender) SendDigest(ctx context.Context, recipient, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("digest (dry run)",
		"recipient", recipient,
		"subject", subject,
		"html_bytes", len(htmlBody),
		"lines", strings.Count(textBody, "\n")+1,
	)
	for _, line := range strings.Split(textBody, "\n") {
		s.logger.Debug("digest line", "recipient", recipient, "line", line)
	}
	return nil
}
