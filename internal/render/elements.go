package render

import (
	"fmt"
	"strings"

	"mailout/internal/domain"
)

const (
	defaultFont        = "Arial, sans-serif"
	gmailButtonMaxPx   = 300
	videoBorderColor   = "#1a73e8"
	defaultButtonColor = "#0073e6"
)

// element renders one element into a column that is widthPx wide.
func (w *writer) element(el domain.EditorElement, widthPx int) string {
	switch el.Type {
	case domain.ElementText:
		return w.text(el, widthPx)
	case domain.ElementHeading:
		return w.heading(el, widthPx)
	case domain.ElementImage:
		return w.image(el, widthPx)
	case domain.ElementVideo:
		return w.video(el, widthPx)
	case domain.ElementButton:
		return w.button(el, widthPx)
	case domain.ElementDivider:
		return w.divider(el)
	}
	w.warn("unknown_element", el, "unsupported element type "+string(el.Type))
	return ""
}

func (w *writer) content(el domain.EditorElement) string {
	if w.profile.Mode == ModeGmail {
		return stripPositioning(el.Content)
	}
	return el.Content
}

func (w *writer) defaultAlign() string {
	if w.profile.Mode == ModeGmail {
		return "center"
	}
	return "left"
}

func (w *writer) text(el domain.EditorElement, widthPx int) string {
	s := el.Style
	size := clamp(orDefault(s.FontSize, 14), w.profile.TextMinPx, w.profile.TextMaxPx)
	return fmt.Sprintf(
		`<div style="font-family:%s;font-size:%dpx;color:%s;font-weight:%s;font-style:%s;text-decoration:%s;line-height:1.4;text-align:%s;margin:0;max-width:%dpx;%sword-wrap:break-word;">%s</div>`,
		css(first(s.FontFamily, defaultFont)),
		px(size),
		css(first(s.Color, "#000000")),
		css(first(s.FontWeight, "normal")),
		css(first(s.FontStyle, "normal")),
		css(first(s.TextDecoration, "none")),
		alignOf(s, w.defaultAlign()),
		widthPx,
		boxStyle(s),
		w.content(el),
	)
}

func (w *writer) heading(el domain.EditorElement, widthPx int) string {
	s := el.Style
	level := el.HeadingLevel
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	size := clamp(orDefault(s.FontSize, float64(32-(level-1)*4)), w.profile.HeadingMinPx, w.profile.HeadingMaxPx)
	return fmt.Sprintf(
		`<h%d style="font-family:%s;font-size:%dpx;color:%s;font-weight:%s;margin:0 0 10px 0;padding:0;text-align:%s;line-height:1.2;max-width:%dpx;%sword-wrap:break-word;">%s</h%d>`,
		level,
		css(first(s.FontFamily, defaultFont)),
		px(size),
		css(first(s.Color, "#000000")),
		css(first(s.FontWeight, "bold")),
		alignOf(s, w.defaultAlign()),
		widthPx,
		boxStyle(s),
		w.content(el),
		level,
	)
}

// fit scales the element into the column, keeping its aspect ratio.
func (w *writer) fit(s domain.ElementStyle, widthPx int) (int, int) {
	width := w.scaled(s.Width)
	if width > widthPx {
		width = widthPx
	}
	if width < 1 {
		width = 1
	}
	height := px(s.Height / s.Width * float64(width))
	if height < 1 {
		height = 1
	}
	return width, height
}

func (w *writer) image(el domain.EditorElement, widthPx int) string {
	src := strings.TrimSpace(el.Content)
	if src == "" {
		w.warn("empty_image", el, "image element has no source")
		return ""
	}
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		w.warn("data_url_image", el, "data: image sources are blocked by Gmail and some other clients")
	}

	width, height := w.fit(el.Style, widthPx)
	margin := ""
	if w.profile.Mode == ModeGmail {
		margin = "margin:0 auto;"
	}
	radius := ""
	if el.Style.BorderRadius > 0 {
		radius = fmt.Sprintf("border-radius:%dpx;", px(el.Style.BorderRadius))
	}
	return fmt.Sprintf(
		`<img src="%s" alt="" width="%d" height="%d" style="display:block;width:%dpx;height:%dpx;max-width:100%%;object-fit:cover;border:0;outline:none;text-decoration:none;%s%s" />`,
		attr(src), width, height, width, height, radius, margin,
	)
}

func (w *writer) video(el domain.EditorElement, widthPx int) string {
	var vd domain.VideoData
	if el.VideoData != nil {
		vd = *el.VideoData
	}
	link := first(vd.URL, el.Content, "#")
	title := first(vd.Title, "Play Video")

	width, height := w.fit(el.Style, widthPx)
	border := ""
	if w.profile.Mode == ModeGmail {
		// Gmail videos use a fixed 4:3 frame.
		height = px(float64(width) * 0.75)
		border = "border:3px solid " + videoBorderColor + ";"
	}

	thumb := VideoThumbnail(vd, link)
	if w.thumbs != nil && thumb != PlaceholderThumbnail {
		thumb = w.thumbs.Thumbnail(w.ctx, thumb, width, height)
	}

	return fmt.Sprintf(
		`<table role="presentation" cellspacing="0" cellpadding="0" border="0" style="margin:0 auto;">`+
			`<tr><td><a href="%s" target="_blank" style="display:block;text-decoration:none;">`+
			`<img src="%s" alt="%s" width="%d" height="%d" style="display:block;width:%dpx;height:%dpx;max-width:100%%;object-fit:cover;%smargin:0;" /></a></td></tr>`+
			`<tr><td style="text-align:center;font-size:14px;color:%s;padding:8px 0;font-family:%s;"><strong>&#9654; %s</strong></td></tr>`+
			`</table>`,
		attr(link), attr(thumb), attr(title), width, height, width, height, border,
		videoBorderColor, defaultFont, literal(title),
	)
}

func (w *writer) button(el domain.EditorElement, widthPx int) string {
	s := el.Style
	href := "#"
	if el.ButtonData != nil && strings.TrimSpace(el.ButtonData.URL) != "" {
		href = strings.TrimSpace(el.ButtonData.URL)
	}
	bg := css(first(s.BackgroundColor, defaultButtonColor))
	fg := css(first(s.Color, "#ffffff"))
	label := first(el.Content, "Click Here")
	size := px(clamp(orDefault(s.FontSize, 16), w.profile.TextMinPx, w.profile.TextMaxPx))
	radius := px(orDefault(s.BorderRadius, 4))

	width := w.scaled(s.Width)
	if width > widthPx {
		width = widthPx
	}
	if w.profile.Mode == ModeGmail && width > gmailButtonMaxPx {
		width = gmailButtonMaxPx
	}
	height := w.scaled(s.Height)
	if height < 30 {
		height = 40
	}

	table := fmt.Sprintf(
		`<table role="presentation" cellspacing="0" cellpadding="0" border="0" style="margin:0 auto;">`+
			`<tr><td align="center" style="background-color:%s;border-radius:%dpx;text-align:center;padding:12px 24px;min-width:%dpx;">`+
			`<a href="%s" target="_blank" style="color:%s;text-decoration:none;font-family:%s;font-size:%dpx;font-weight:bold;display:inline-block;line-height:1;">%s</a>`+
			`</td></tr></table>`,
		bg, radius, max(width-48, 0), attr(href), fg, defaultFont, size, literal(label),
	)
	if w.profile.Mode == ModeGmail {
		return table
	}

	arc := 10
	if height > 0 {
		arc = min(50, px(float64(radius)/float64(height)*100))
	}
	return fmt.Sprintf(
		`<!--[if mso]><v:roundrect xmlns:v="urn:schemas-microsoft-com:vml" xmlns:w="urn:schemas-microsoft-com:office:word" href="%s" style="height:%dpx;v-text-anchor:middle;width:%dpx;" arcsize="%d%%" stroke="f" fillcolor="%s">`+
			`<w:anchorlock/><center style="color:%s;font-family:%s;font-size:%dpx;font-weight:bold;">%s</center></v:roundrect><![endif]-->`+
			`<!--[if !mso]><!-->%s<!--<![endif]-->`,
		attr(href), height, width, arc, bg, fg, defaultFont, size, literal(label), table,
	)
}

func (w *writer) divider(el domain.EditorElement) string {
	color := css(first(el.Style.BackgroundColor, el.Style.Color, "#cccccc"))
	return fmt.Sprintf(
		`<table role="presentation" cellspacing="0" cellpadding="0" border="0" width="100%%"><tr>`+
			`<td style="border-top:2px solid %s;font-size:0;line-height:0;height:1px;">&nbsp;</td></tr></table>`,
		color,
	)
}

// literal escapes text that is shown as-is rather than authored markup.
func literal(s string) string {
	return attr(s)
}
