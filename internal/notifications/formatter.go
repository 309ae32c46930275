package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/authorshaven/notify/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// MailSubject is the subject line for all activity emails.
const MailSubject = "ACTIVITY UPDATE"

var titleCaser = cases.Title(language.English)

// Formatter renders activity messages and HTML email bodies. The base URL
// is the public site domain, injected at construction.
type Formatter struct {
	baseURL string
	tmpl    *template.Template
}

// NewFormatter creates a formatter and parses the embedded mail template.
func NewFormatter(baseURL string) (*Formatter, error) {
	content, err := templatesFS.ReadFile("templates/notify.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read mail template: %w", err)
	}

	tmpl, err := template.New("notify").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse mail template: %w", err)
	}

	return &Formatter{
		baseURL: strings.TrimRight(baseURL, "/"),
		tmpl:    tmpl,
	}, nil
}

// mailParams is the data contract of the HTML template. Heading, message,
// url, action text and unsubscribe url must all be present in the rendered
// body.
type mailParams struct {
	Heading    string
	Message    string
	URL        string
	ActionText string
	OptURL     string
}

// Plain renders the human-readable activity message for an event kind.
// The follow form carries no subject title.
func (f *Formatter) Plain(kind domain.EventKind, actor, subjectTitle string) string {
	switch kind {
	case domain.EventKindCommentCreated:
		return fmt.Sprintf("%s responded to '%s'.", actor, subjectTitle)
	case domain.EventKindFollowCreated:
		return fmt.Sprintf("%s started following you.", actor)
	default:
		return fmt.Sprintf("%s created a new article '%s'.", actor, subjectTitle)
	}
}

// HTML renders the email body for an event kind.
func (f *Formatter) HTML(kind domain.EventKind, actor, subjectTitle, url string) (string, error) {
	params := mailParams{
		Heading:    heading(kind),
		Message:    f.Plain(kind, actor, subjectTitle),
		URL:        url,
		ActionText: actionText(kind),
		OptURL:     f.SubscriptionsURL(),
	}

	var buf bytes.Buffer
	if err := f.tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("execute mail template: %w", err)
	}

	return buf.String(), nil
}

// ArticleURL builds the absolute link to an article.
func (f *Formatter) ArticleURL(slug string) string {
	return fmt.Sprintf("%s/api/articles/%s/", f.baseURL, slug)
}

// ProfileURL builds the absolute link to a user profile.
func (f *Formatter) ProfileURL(username string) string {
	return fmt.Sprintf("%s/api/profiles/%s/", f.baseURL, username)
}

// SubscriptionsURL builds the absolute link to the subscription settings,
// used as the unsubscribe target in emails.
func (f *Formatter) SubscriptionsURL() string {
	return fmt.Sprintf("%s/api/notifications/subscriptions", f.baseURL)
}

func heading(kind domain.EventKind) string {
	switch kind {
	case domain.EventKindCommentCreated:
		return "NEW COMMENT"
	case domain.EventKindFollowCreated:
		return "NEW FOLLOWER"
	default:
		return "NEW ARTICLE"
	}
}

func actionText(kind domain.EventKind) string {
	switch kind {
	case domain.EventKindCommentCreated:
		return titleCaser.String("view comment")
	case domain.EventKindFollowCreated:
		return titleCaser.String("view profile")
	default:
		return titleCaser.String("view article")
	}
}
