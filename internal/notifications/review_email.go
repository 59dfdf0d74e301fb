package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/mail"
	"strings"

	"casehub-backend/internal/casestudies"
)

const reviewRequestTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hallo {{.Reviewer}},</p>
  <p>die Case Study <strong>{{.Title}}</strong> ({{.Slug}}) wartet auf Ihr Review.</p>
  <ul>
    <li>Kategorie: {{.Category}}</li>
    <li>Branche: {{.Industry}}</li>
    <li>Verantwortlich: {{.Owner}}</li>
  </ul>
  <p>Please review the case study in the CMS dashboard.</p>
</body>
</html>`

var reviewRequestTmpl = template.Must(template.New("review_request").Parse(reviewRequestTemplate))

type reviewRequestView struct {
	Reviewer string
	Title    string
	Slug     string
	Category string
	Industry string
	Owner    string
}

func buildReviewRequestHTML(rec casestudies.CaseRecord, reviewer string) (string, error) {
	view := reviewRequestView{
		Reviewer: reviewer,
		Title:    rec.Title("de"),
		Slug:     rec.Slug,
		Category: fallback(rec.Category, "-"),
		Industry: fallback(rec.Industry, "-"),
		Owner:    fallback(rec.Owner, "-"),
	}
	var buf bytes.Buffer
	if err := reviewRequestTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ReviewerEmails returns the reviewers that are e-mail addresses; other
// entries are plain names and cannot be notified.
func ReviewerEmails(reviewers []string) []string {
	out := make([]string, 0, len(reviewers))
	for _, r := range reviewers {
		r = strings.TrimSpace(r)
		addr, err := mail.ParseAddress(r)
		if err != nil || addr.Address != r {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SendReviewRequest mails every reviewer address of rec and returns the
// Brevo message ids. It stops at the first failure.
func (c *BrevoClient) SendReviewRequest(ctx context.Context, rec casestudies.CaseRecord) ([]string, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	subject := fmt.Sprintf("Review angefragt: %s", rec.Title("de"))
	addrs := ReviewerEmails(rec.Reviewers)
	ids := make([]string, 0, len(addrs))
	for _, to := range addrs {
		body, err := buildReviewRequestHTML(rec, to)
		if err != nil {
			return ids, err
		}
		id, err := c.Send(ctx, Message{
			To:      []Recipient{{Email: to}},
			Subject: subject,
			HTML:    body,
			Tags:    []string{"cms-review", rec.Slug},
		})
		if err != nil {
			return ids, fmt.Errorf("review request to %s: %w", to, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
