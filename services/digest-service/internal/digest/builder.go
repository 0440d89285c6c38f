// Package digest assembles and renders the per-subscriber activity digest.
package digest

import (
	"fmt"
	"time"

	"github.com/stoik/timeline/internal/models"
)

// TimestampLayout is how entry times appear in digests. Times are shown in UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// Build wraps a subscriber's entries into a Digest. The boolean is false when
// there is nothing to send this cycle (Skip). Entries must already be ordered
// newest first; Build does not reorder them.
func Build(sub models.Subscriber, entries []models.TimelineEntry, windowStart time.Time) (*models.Digest, bool) {
	if len(entries) == 0 {
		return nil, false
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, SummaryLine(e))
	}

	return &models.Digest{
		Subscriber:  sub,
		Entries:     entries,
		WindowStart: windowStart,
		TextLines:   lines,
	}, true
}

// SummaryLine renders "{icon} {actor} {verb} {repo} at {timestamp}".
func SummaryLine(e models.TimelineEntry) string {
	return fmt.Sprintf("%s %s %s %s at %s",
		e.Icon.Glyph(), e.Actor, e.Verb, e.Repo, e.Timestamp.UTC().Format(TimestampLayout))
}
