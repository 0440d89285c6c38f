package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/stoik/timeline/internal/models"
)

// Message is a rendered digest ready for a mail sender.
type Message struct {
	Recipient string
	Subject   string
	HTML      string
	Text      string
}

// Renderer turns a Digest into mail bodies. All entry fields pass through
// html/template escaping.
type Renderer struct {
	subject        string
	unsubscribeURL string
	tmpl           *template.Template
}

type entryView struct {
	models.TimelineEntry
	Glyph string
	Hex   string
	When  string
}

type digestView struct {
	Username        string
	Entries         []entryView
	Since           string
	UnsubscribeLink string
}

func NewRenderer(subject, unsubscribeURL string) *Renderer {
	return &Renderer{
		subject:        subject,
		unsubscribeURL: unsubscribeURL,
		tmpl:           template.Must(template.New("digest").Parse(digestTemplate)),
	}
}

// Render produces the subject, the HTML body and the plain-text fallback,
// which holds exactly one summary line per entry.
func (r *Renderer) Render(d *models.Digest) (Message, error) {
	view := digestView{
		Username:        d.Subscriber.GitHubUsername,
		Since:           d.WindowStart.UTC().Format(TimestampLayout),
		UnsubscribeLink: r.unsubscribeLink(d.Subscriber.Email),
	}
	for _, e := range d.Entries {
		view.Entries = append(view.Entries, entryView{
			TimelineEntry: e,
			Glyph:         e.Icon.Glyph(),
			Hex:           e.Color.Hex(),
			When:          e.Timestamp.UTC().Format(TimestampLayout),
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return Message{}, fmt.Errorf("failed to render digest for %s: %w", d.Subscriber.Email, err)
	}

	return Message{
		Recipient: d.Subscriber.Email,
		Subject:   r.subject,
		HTML:      buf.String(),
		Text:      strings.Join(d.TextLines, "\n"),
	}, nil
}

func (r *Renderer) unsubscribeLink(email string) string {
	if r.unsubscribeURL == "" {
		return ""
	}
	u, err := url.Parse(r.unsubscribeURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("email", email)
	u.RawQuery = q.Encode()
	return u.String()
}

const digestTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>GitHub Timeline Updates</title>
</head>
<body style="background: #0d1117; margin: 0; padding: 20px; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif;">
    <div style="max-width: 700px; margin: 0 auto; background: #161b22; border-radius: 16px; overflow: hidden;">
        <div style="text-align: center; padding: 32px 20px; border-top: 3px solid #2ea043;">
            <h1 style="color: #ffffff; margin: 0 0 12px; font-size: 28px;">GitHub Timeline Updates</h1>
            <p style="color: #8b949e; margin: 0; font-size: 15px;">Activity since {{.Since}} UTC</p>
        </div>
        <div style="padding: 24px;">
        {{- range .Entries}}
            <div class="entry {{.Kind}}" style="border: 1px solid rgba(240,246,252,0.1); border-left: 4px solid {{.Hex}}; border-radius: 12px; padding: 16px; margin-bottom: 16px; color: #c9d1d9;">
                {{- if .AvatarURL}}
                <img src="{{.AvatarURL}}" alt="{{.Actor}}" width="40" height="40" style="border-radius: 50%; vertical-align: middle; margin-right: 12px;">
                {{- end}}
                <span style="font-size: 18px;">{{.Glyph}}</span>
                <a href="https://github.com/{{.Actor}}" style="color: #58a6ff; font-weight: 600; text-decoration: none;">{{.Actor}}</a>
                <span style="color: #8b949e;">{{.Verb}}</span>
                <a href="https://github.com/{{.Repo}}" style="color: #58a6ff; text-decoration: none;">{{.Repo}}</a>
                <div style="color: #8b949e; font-size: 13px; margin-top: 8px;">{{.When}}</div>
                {{- if .Detail}}
                <div style="margin-top: 12px; padding: 12px; border-radius: 8px; border-left: 3px solid {{.Hex}}; font-size: 14px;">{{.Detail}}</div>
                {{- end}}
            </div>
        {{- end}}
        </div>
        <div style="text-align: center; padding: 32px; border-top: 1px solid rgba(240,246,252,0.1);">
            <a href="https://github.com/{{.Username}}" style="display: inline-block; padding: 12px 24px; background: #238636; color: #ffffff; text-decoration: none; border-radius: 8px; font-weight: 600;">View Your GitHub Profile</a>
            <p style="color: #8b949e; margin: 24px 0 12px; font-size: 14px;">You're receiving this email because you're subscribed to GitHub Timeline Updates.</p>
            {{- if .UnsubscribeLink}}
            <a href="{{.UnsubscribeLink}}" style="color: #58a6ff; font-size: 14px;">Unsubscribe</a>
            {{- end}}
        </div>
    </div>
</body>
</html>
`
