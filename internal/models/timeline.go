package models

import (
	"time"
)

// EventKind is the display classification of a GitHub event.
// Types GitHub adds later fall back to EventKindOther.
type EventKind string

const (
	EventKindPush          EventKind = "push"
	EventKindIssue         EventKind = "issue"
	EventKindPullRequest   EventKind = "pull_request"
	EventKindStar          EventKind = "star"
	EventKindFork          EventKind = "fork"
	EventKindCreate        EventKind = "create"
	EventKindDelete        EventKind = "delete"
	EventKindRelease       EventKind = "release"
	EventKindCommitComment EventKind = "commit_comment"
	EventKindOther         EventKind = "other"
)

// Icon is a symbolic tag for the glyph shown next to an entry.
type Icon string

const (
	IconPackage Icon = "package"
	IconIssue   Icon = "issue"
	IconPull    Icon = "pull"
	IconStar    Icon = "star"
	IconFork    Icon = "fork"
	IconCreate  Icon = "create"
	IconDelete  Icon = "delete"
	IconRelease Icon = "release"
	IconComment Icon = "comment"
	IconOther   Icon = "other"
)

var iconGlyphs = map[Icon]string{
	IconPackage: "📦",
	IconIssue:   "🔍",
	IconPull:    "🔄",
	IconStar:    "⭐",
	IconFork:    "🍴",
	IconCreate:  "🎉",
	IconDelete:  "🗑️",
	IconRelease: "🚀",
	IconComment: "💬",
	IconOther:   "📋",
}

// Glyph returns the emoji used when rendering the icon.
func (i Icon) Glyph() string {
	if g, ok := iconGlyphs[i]; ok {
		return g
	}
	return iconGlyphs[IconOther]
}

// Color is a symbolic tag for an entry's accent color.
type Color string

const (
	ColorGreen  Color = "green"
	ColorPurple Color = "purple"
	ColorYellow Color = "yellow"
	ColorBlue   Color = "blue"
	ColorRed    Color = "red"
	ColorSky    Color = "sky"
)

var colorHex = map[Color]string{
	ColorGreen:  "#2ea44f",
	ColorPurple: "#8250df",
	ColorYellow: "#e3b341",
	ColorBlue:   "#1f6feb",
	ColorRed:    "#f85149",
	ColorSky:    "#58a6ff",
}

// Hex returns the CSS hex value of the color.
func (c Color) Hex() string {
	if h, ok := colorHex[c]; ok {
		return h
	}
	return colorHex[ColorGreen]
}

// TimelineEntry is the display-ready form of exactly one GitHub event.
type TimelineEntry struct {
	Kind      EventKind `json:"kind"`
	Type      string    `json:"type"` // raw GitHub event type, e.g. "PushEvent"
	Actor     string    `json:"actor"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Repo      string    `json:"repo"`
	Verb      string    `json:"verb"`
	Timestamp time.Time `json:"timestamp"`
	Icon      Icon      `json:"icon"`
	Color     Color     `json:"color"`
	Detail    string    `json:"detail,omitempty"`
}

// Digest is the set of entries prepared for one subscriber in one polling cycle.
// Entries are ordered newest first.
type Digest struct {
	Subscriber  Subscriber      `json:"subscriber"`
	Entries     []TimelineEntry `json:"entries"`
	WindowStart time.Time       `json:"window_start"`
	// TextLines holds one plain-text summary line per entry, used as the
	// non-HTML mail body.
	TextLines []string `json:"text_lines"`
}
