// Package tracking adds open pixels, click redirects and the unsubscribe
// footer to outgoing campaign HTML.
package tracking

import (
	"html"
	"log/slog"
	"regexp"
	"strings"
)

// linkHref matches the href of clickable elements only; <link>, <base>
// and attributes such as data-href are left alone.
var linkHref = regexp.MustCompile(`(?i)<(?:a|area|v:roundrect)\b[^>]*?\shref\s*=\s*["']([^"']+)["']`)

// buttonContext is how far back from an anchor the button heuristics look.
const buttonContext = 300

type Injector struct {
	URLs URLs
	// OrgDomain classifies links to the organization's own site.
	OrgDomain string
	// Footer is optional; without it no footer is added.
	Footer *Footer
}

// Inject returns html with the footer, rewritten links and the open pixel
// for one recipient. Running it again on its own output changes nothing.
func (in *Injector) Inject(doc, campaignID, email string) string {
	out := doc
	if in.Footer != nil {
		out = in.addFooter(out, email)
	}
	out = in.rewriteLinks(out, campaignID, email)
	return in.addPixel(out, campaignID, email)
}

func (in *Injector) rewriteLinks(doc, campaignID, email string) string {
	matches := linkHref.FindAllStringSubmatchIndex(doc, -1)
	if len(matches) == 0 {
		return doc
	}

	var b strings.Builder
	b.Grow(len(doc) + len(matches)*128)
	last := 0
	for _, m := range matches {
		start, end := m[2], m[3]
		raw := doc[start:end]
		target := html.UnescapeString(strings.TrimSpace(raw))
		if skipLink(target) {
			continue
		}
		linkType := in.classify(target, doc[max(0, start-buttonContext):start])
		b.WriteString(doc[last:start])
		b.WriteString(html.EscapeString(in.URLs.Click(campaignID, email, linkType, target)))
		last = end
	}
	b.WriteString(doc[last:])
	return b.String()
}

func skipLink(target string) bool {
	lower := strings.ToLower(target)
	switch {
	case target == "":
		return true
	case strings.HasPrefix(lower, "mailto:"), strings.HasPrefix(target, "#"):
		return true
	case strings.Contains(lower, trackingSegment), strings.Contains(lower, UnsubscribePath):
		return true
	}
	return false
}

func (in *Injector) classify(target, before string) string {
	lower := strings.ToLower(target)
	if strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be") || strings.Contains(lower, "vimeo.com") {
		return LinkVideo
	}
	if d := strings.ToLower(strings.TrimSpace(in.OrgDomain)); d != "" && strings.Contains(lower, d) {
		return LinkWebsite
	}
	ctx := strings.ToLower(before)
	if strings.Contains(ctx, "border-radius") || strings.Contains(ctx, "v:roundrect") ||
		(strings.Contains(ctx, "<td") && strings.Contains(ctx, "background-color")) {
		return LinkButton
	}
	return LinkPlain
}

func (in *Injector) addPixel(doc, campaignID, email string) string {
	if strings.Contains(doc, OpenPath) {
		return doc
	}
	pixel := `<img src="` + html.EscapeString(in.URLs.Open(campaignID, email)) +
		`" alt="" width="1" height="1" style="display:block;width:1px;height:1px;border:0;outline:none;text-decoration:none;" />`
	return insertBefore(doc, "</body>", pixel)
}

func (in *Injector) addFooter(doc, email string) string {
	if strings.Contains(doc, footerMarker) {
		return doc
	}
	block, err := in.Footer.Render(in.URLs.Unsubscribe(email))
	if err != nil {
		slog.Error("footer render failed, sending without footer", "err", err)
		return doc
	}
	if i := lastIndexFold(doc, "</table>"); i >= 0 {
		row := `<tr><td ` + footerMarker + ` style="padding:0;">` + block + `</td></tr>`
		return doc[:i] + row + doc[i:]
	}
	return insertBefore(doc, "</body>", `<div `+footerMarker+`>`+block+`</div>`)
}

// insertBefore puts s ahead of the last occurrence of tag, or appends it.
func insertBefore(doc, tag, s string) string {
	i := lastIndexFold(doc, tag)
	if i < 0 {
		return doc + s
	}
	return doc[:i] + s + doc[i:]
}

// lastIndexFold is an ASCII case-insensitive strings.LastIndex that keeps
// byte offsets valid for doc.
func lastIndexFold(doc, sub string) int {
	for i := len(doc) - len(sub); i >= 0; i-- {
		if strings.EqualFold(doc[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}
