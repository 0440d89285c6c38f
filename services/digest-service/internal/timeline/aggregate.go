package timeline

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/stoik/timeline/internal/models"
)

// Result is the outcome of aggregating one subscriber's streams.
type Result struct {
	Entries  []models.TimelineEntry
	Rejected int // events dropped by Normalize
	Outside  int // valid events outside the window
}

// dedupKey identifies the underlying event across overlapping feeds:
// "received_events" and "events" can both report the same activity.
type dedupKey struct {
	actor string
	repo  string
	typ   string
	ts    int64
}

// Aggregate merges the streams, normalizes every event, drops duplicates and
// events outside [now-window, now], and sorts newest first. Events with equal
// timestamps keep their input order, so identical input yields identical
// output.
func Aggregate(streams [][]json.RawMessage, now time.Time, window time.Duration) []models.TimelineEntry {
	return AggregateWithStats(streams, now, window).Entries
}

// AggregateWithStats is Aggregate, also reporting how many events were dropped.
func AggregateWithStats(streams [][]json.RawMessage, now time.Time, window time.Duration) Result {
	windowStart := WindowStart(now, window)

	var (
		res     Result
		entries []models.TimelineEntry
		seen    = make(map[dedupKey]struct{})
	)

	for _, stream := range streams {
		for _, raw := range stream {
			entry, err := Normalize(raw)
			if err != nil {
				res.Rejected++
				continue
			}

			key := dedupKey{
				actor: entry.Actor,
				repo:  entry.Repo,
				typ:   entry.Type,
				ts:    entry.Timestamp.UnixNano(),
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if entry.Timestamp.Before(windowStart) || entry.Timestamp.After(now) {
				res.Outside++
				continue
			}
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	res.Entries = entries
	if res.Entries == nil {
		res.Entries = []models.TimelineEntry{}
	}
	return res
}

// WindowStart returns the oldest instant a digest built at now may include.
func WindowStart(now time.Time, window time.Duration) time.Time {
	return now.Add(-window)
}
