package render

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"mailout/internal/domain"
	"mailout/internal/observability"
)

// EmailWidth is the container width every layout is scaled to.
const EmailWidth = 600

// VideoThumbnails upgrades a plain video still to a play-button composite.
// Implementations must return thumbnailURL unchanged on any failure.
type VideoThumbnails interface {
	Thumbnail(ctx context.Context, thumbnailURL string, width, height int) string
}

type Template struct {
	Name         string
	Elements     []domain.EditorElement
	Canvas       *domain.CanvasSettings
	FallbackHTML string
}

type Warning struct {
	Kind    string
	Element string
	Message string
}

type Result struct {
	HTML     string
	Warnings []Warning
	// Degraded is set when the stored HTML snapshot was used instead of
	// the element list.
	Degraded bool
}

// Renderer turns editor elements into a self-contained HTML email.
// Output depends only on the template, the profile and what Thumbnails
// returns, so one render per profile can be shared by all recipients.
type Renderer struct {
	Thumbnails VideoThumbnails
}

func (r *Renderer) Render(ctx context.Context, tpl Template, profile ClientProfile) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("render panicked, using stored html", "template", tpl.Name, "panic", fmt.Sprint(rec))
			res = fallbackResult(tpl, "panic")
		}
	}()

	rows := GroupIntoRows(tpl.Elements, profile.RowTolerance)
	if len(rows) == 0 {
		return fallbackResult(tpl, "no_valid_elements")
	}
	if tpl.Canvas == nil {
		return fallbackResult(tpl, "no_canvas")
	}

	canvas := *tpl.Canvas
	if canvas.Width <= 0 {
		canvas.Width = EmailWidth
	}
	w := &writer{
		ctx:     ctx,
		profile: profile,
		canvas:  canvas,
		scale:   EmailWidth / canvas.Width,
		thumbs:  r.Thumbnails,
	}

	title := tpl.Name
	if title == "" {
		title = "Email Template"
	}

	var out string
	if profile.Mode == ModeGmail {
		out = w.gmailDocument(title, rows)
	} else {
		out = w.standardDocument(title, rows)
	}

	for _, wr := range w.warnings {
		observability.RenderWarnings.WithLabelValues(wr.Kind).Inc()
		slog.Warn("render warning", "template", tpl.Name, "profile", profile.Name, "kind", wr.Kind, "element_id", wr.Element, "msg", wr.Message)
	}
	return Result{HTML: out, Warnings: w.warnings}
}

func fallbackResult(tpl Template, reason string) Result {
	observability.RenderFallbacks.WithLabelValues(reason).Inc()
	return Result{HTML: tpl.FallbackHTML, Degraded: true}
}

type writer struct {
	ctx      context.Context
	profile  ClientProfile
	canvas   domain.CanvasSettings
	scale    float64
	thumbs   VideoThumbnails
	warnings []Warning
}

func (w *writer) warn(kind string, el domain.EditorElement, msg string) {
	w.warnings = append(w.warnings, Warning{Kind: kind, Element: el.ID, Message: msg})
}

// scaled converts a canvas length to email pixels.
func (w *writer) scaled(v float64) int {
	return px(v * w.scale)
}

func px(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func first(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func attr(s string) string {
	return html.EscapeString(s)
}

var cssUnsafe = strings.NewReplacer(";", "", ":", "", "\"", "", "<", "", ">", "", "{", "", "}", "", "\n", "", "\r", "")

// css makes an editor-supplied value safe inside a style attribute.
func css(s string) string {
	return attr(strings.TrimSpace(cssUnsafe.Replace(s)))
}

var positioning = regexp.MustCompile(`(?i)position\s*:\s*(absolute|fixed|relative|sticky)\s*;?`)

func stripPositioning(s string) string {
	return positioning.ReplaceAllString(s, "")
}

func boxStyle(s domain.ElementStyle) string {
	var b strings.Builder
	if s.BackgroundColor != "" {
		fmt.Fprintf(&b, "background-color:%s;", css(s.BackgroundColor))
	}
	if s.Padding > 0 {
		fmt.Fprintf(&b, "padding:%dpx;", px(s.Padding))
	}
	if s.BorderRadius > 0 {
		fmt.Fprintf(&b, "border-radius:%dpx;", px(s.BorderRadius))
	}
	return b.String()
}

func alignOf(s domain.ElementStyle, def string) string {
	switch s.TextAlign {
	case "left", "center", "right":
		return s.TextAlign
	}
	return def
}
