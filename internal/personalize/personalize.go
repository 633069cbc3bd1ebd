// Package personalize fills recipient placeholders in message content.
package personalize

import (
	"html"
	"strings"

	"mailout/internal/domain"
)

// Personalize replaces {{firstName}}, {{lastName}}, {{fullName}} and
// {{email}} in s. Unknown placeholders are left as they are. With
// escapeHTML set the substituted values are HTML-escaped first.
func Personalize(s string, r domain.Recipient, escapeHTML bool) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	values := []string{r.FirstName, r.LastName, r.FullName(), r.Email}
	if escapeHTML {
		for i, v := range values {
			values[i] = html.EscapeString(v)
		}
	}
	return strings.NewReplacer(
		"{{firstName}}", values[0],
		"{{lastName}}", values[1],
		"{{fullName}}", values[2],
		"{{email}}", values[3],
	).Replace(s)
}

// Content is the per-recipient text of one message.
type Content struct {
	Subject string
	HTML    string
	Text    string
}

// Personalizer applies Personalize to every part of a message. Only the
// HTML body is ever escaped.
type Personalizer struct {
	EscapeHTML bool
}

func (p Personalizer) Apply(c Content, r domain.Recipient) Content {
	return Content{
		Subject: Personalize(c.Subject, r, false),
		HTML:    Personalize(c.HTML, r, p.EscapeHTML),
		Text:    Personalize(c.Text, r, false),
	}
}
