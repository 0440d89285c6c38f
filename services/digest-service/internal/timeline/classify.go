package timeline

import (
	"fmt"
	"strings"

	gh "github.com/google/go-github/v74/github"

	"github.com/stoik/timeline/internal/models"
)

// classification is one variant of the event table: how a kind is drawn and
// how its verb and detail are derived from the typed payload. Payload
// extractors receive nil when the payload is absent or malformed and must
// degrade rather than fail.
type classification struct {
	kind   models.EventKind
	icon   models.Icon
	color  models.Color
	verb   func(payload any) string
	detail func(payload any) string
}

// classifications is keyed by GitHub's event type string.
var classifications = map[string]classification{
	"PushEvent": {
		kind:  models.EventKindPush,
		icon:  models.IconPackage,
		color: models.ColorGreen,
		verb: func(payload any) string {
			p, _ := payload.(*gh.PushEvent)
			commits := 0
			if p != nil {
				commits = len(p.Commits)
				if commits == 0 && p.Size != nil {
					commits = p.GetSize()
				}
			}
			return fmt.Sprintf("pushed %d commit(s) to", commits)
		},
		detail: func(payload any) string {
			p, _ := payload.(*gh.PushEvent)
			if p == nil || len(p.Commits) == 0 {
				return ""
			}
			return strings.TrimSpace(p.Commits[0].GetMessage())
		},
	},
	"IssuesEvent": {
		kind:  models.EventKindIssue,
		icon:  models.IconIssue,
		color: models.ColorPurple,
		verb: func(payload any) string {
			p, _ := payload.(*gh.IssuesEvent)
			return numbered(p.GetAction(), "issue", p.GetIssue().GetNumber(), "in")
		},
		detail: func(payload any) string {
			p, _ := payload.(*gh.IssuesEvent)
			return p.GetIssue().GetTitle()
		},
	},
	"PullRequestEvent": {
		kind:  models.EventKindPullRequest,
		icon:  models.IconPull,
		color: models.ColorGreen,
		verb: func(payload any) string {
			p, _ := payload.(*gh.PullRequestEvent)
			number := p.GetPullRequest().GetNumber()
			if number == 0 {
				number = p.GetNumber()
			}
			return numbered(p.GetAction(), "pull request", number, "in")
		},
		detail: func(payload any) string {
			p, _ := payload.(*gh.PullRequestEvent)
			return p.GetPullRequest().GetTitle()
		},
	},
	"WatchEvent": {
		kind:   models.EventKindStar,
		icon:   models.IconStar,
		color:  models.ColorYellow,
		verb:   constant("starred"),
		detail: none,
	},
	"ForkEvent": {
		kind:   models.EventKindFork,
		icon:   models.IconFork,
		color:  models.ColorPurple,
		verb:   constant("forked"),
		detail: none,
	},
	"CreateEvent": {
		kind:  models.EventKindCreate,
		icon:  models.IconCreate,
		color: models.ColorBlue,
		verb: func(payload any) string {
			p, _ := payload.(*gh.CreateEvent)
			return fmt.Sprintf("created a new %s in", refType(p.GetRefType()))
		},
		detail: func(payload any) string {
			p, _ := payload.(*gh.CreateEvent)
			return p.GetRef()
		},
	},
	"DeleteEvent": {
		kind:  models.EventKindDelete,
		icon:  models.IconDelete,
		color: models.ColorRed,
		verb: func(payload any) string {
			p, _ := payload.(*gh.DeleteEvent)
			return fmt.Sprintf("deleted a %s from", refType(p.GetRefType()))
		},
		detail: func(payload any) string {
			p, _ := payload.(*gh.DeleteEvent)
			return p.GetRef()
		},
	},
	"ReleaseEvent": {
		kind:  models.EventKindRelease,
		icon:  models.IconRelease,
		color: models.ColorGreen,
		verb:  constant("released"),
		detail: func(payload any) string {
			p, _ := payload.(*gh.ReleaseEvent)
			if name := p.GetRelease().GetName(); name != "" {
				return name
			}
			return p.GetRelease().GetTagName()
		},
	},
	"CommitCommentEvent": {
		kind:  models.EventKindCommitComment,
		icon:  models.IconComment,
		color: models.ColorSky,
		verb:  constant("commented on commit in"),
		detail: func(payload any) string {
			p, _ := payload.(*gh.CommitCommentEvent)
			return p.GetComment().GetBody()
		},
	},
}

// other is the default variant. Its verb is the raw event type.
var other = classification{
	kind:   models.EventKindOther,
	icon:   models.IconOther,
	color:  models.ColorGreen,
	detail: none,
}

func classify(eventType string) classification {
	if c, ok := classifications[eventType]; ok {
		return c
	}
	c := other
	if eventType == "" {
		c.verb = constant("had activity in")
	} else {
		c.verb = constant(eventType)
	}
	return c
}

func constant(s string) func(any) string {
	return func(any) string { return s }
}

func none(any) string { return "" }

// numbered renders "opened issue #12 in", dropping the parts GitHub omitted.
func numbered(action, noun string, number int, preposition string) string {
	if action == "" {
		action = "updated"
	}
	if number == 0 {
		return fmt.Sprintf("%s %s %s", action, noun, preposition)
	}
	return fmt.Sprintf("%s %s #%d %s", action, noun, number, preposition)
}

func refType(t string) string {
	if t == "" {
		return "ref"
	}
	return t
}
