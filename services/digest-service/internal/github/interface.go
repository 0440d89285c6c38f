package github

import (
	"context"
	"encoding/json"
)

// EventSource defines what the digest pipeline needs from GitHub.
type EventSource interface {
	// Events fetches each endpoint (e.g. "events", "received_events") of a user's
	// activity feed. Streams holds one decoded array per endpoint that succeeded;
	// failures holds one typed error per endpoint that did not.
	Events(ctx context.Context, username string, endpoints []string) (streams [][]json.RawMessage, failures []error)

	// UserExists reports whether username is a GitHub account.
	UserExists(ctx context.Context, username string) (bool, error)
}
