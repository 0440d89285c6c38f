// Package timeline turns raw GitHub activity into ordered, display-ready
// timeline entries.
package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v74/github"

	"github.com/stoik/timeline/internal/models"
)

// ErrRejected marks an event that cannot be displayed: it lacks an actor,
// a repository or a valid creation time.
var ErrRejected = errors.New("event rejected")

// envelope holds the event fields Normalize reads. Each is kept raw so a
// type mismatch in one field degrades that field only.
type envelope struct {
	Type      json.RawMessage `json:"type"`
	Actor     json.RawMessage `json:"actor"`
	Repo      json.RawMessage `json:"repo"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt json.RawMessage `json:"created_at"`
}

// Normalize converts one raw event into a TimelineEntry. It has no side
// effects and returns the same result for the same input. Missing optional
// fields degrade the entry; the returned error always wraps ErrRejected.
func Normalize(raw json.RawMessage) (models.TimelineEntry, error) {
	var event envelope
	if err := json.Unmarshal(raw, &event); err != nil {
		return models.TimelineEntry{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	actor := objectFields(event.Actor)
	login := stringValue(actor["login"])
	if login == "" {
		return models.TimelineEntry{}, fmt.Errorf("%w: missing actor.login", ErrRejected)
	}
	repo := stringValue(objectFields(event.Repo)["name"])
	if repo == "" {
		return models.TimelineEntry{}, fmt.Errorf("%w: missing repo.name", ErrRejected)
	}
	createdAt, err := parseCreatedAt(event.CreatedAt)
	if err != nil {
		return models.TimelineEntry{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	eventType := stringValue(event.Type)
	c := classify(eventType)
	payload := parsePayload(eventType, event.Payload)

	return models.TimelineEntry{
		Kind:      c.kind,
		Type:      eventType,
		Actor:     login,
		AvatarURL: stringValue(actor["avatar_url"]),
		Repo:      repo,
		Verb:      c.verb(payload),
		Timestamp: createdAt,
		Icon:      c.icon,
		Color:     c.color,
		Detail:    c.detail(payload),
	}, nil
}

// parseCreatedAt accepts only an RFC 3339 string.
func parseCreatedAt(raw json.RawMessage) (time.Time, error) {
	var value string
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil || value == "" {
		return time.Time{}, errors.New("missing created_at")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid created_at %q", value)
	}
	return t.UTC(), nil
}

// parsePayload returns the typed go-github payload, or nil when it is absent
// or does not match its type.
func parsePayload(eventType string, raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	event := gh.Event{Type: &eventType, RawPayload: &raw}
	payload, err := event.ParsePayload()
	if err != nil {
		return nil
	}
	return payload
}

func objectFields(raw json.RawMessage) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return nil
	}
	return fields
}

func stringValue(raw json.RawMessage) string {
	var value string
	if json.Unmarshal(raw, &value) != nil {
		return ""
	}
	return value
}
