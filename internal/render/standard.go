package render

import (
	"fmt"
	"strings"
)

const minStandardColumnPx = 40

// standardDocument keeps the canvas layout at 600px: rows stay in Y order,
// horizontal gaps become spacer cells and vertical gaps spacer rows.
func (w *writer) standardDocument(title string, rows []Row) string {
	bg := css(first(w.canvas.BackgroundColor, "#ffffff"))

	var b strings.Builder
	b.WriteString("<!DOCTYPE html PUBLIC \"-//W3C//DTD XHTML 1.0 Transitional//EN\" \"http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd\">\n")
	b.WriteString("<html xmlns=\"http://www.w3.org/1999/xhtml\" xmlns:v=\"urn:schemas-microsoft-com:vml\" xmlns:o=\"urn:schemas-microsoft-com:office:office\" lang=\"en\">\n")
	b.WriteString("<head>\n<meta http-equiv=\"Content-Type\" content=\"text/html; charset=UTF-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	b.WriteString("<meta http-equiv=\"X-UA-Compatible\" content=\"IE=edge\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", literal(title))
	b.WriteString("<!--[if gte mso 9]><xml><o:OfficeDocumentSettings><o:AllowPNG/><o:PixelsPerInch>96</o:PixelsPerInch></o:OfficeDocumentSettings></xml><![endif]-->\n")
	b.WriteString("</head>\n")
	b.WriteString("<body style=\"margin:0;padding:0;background-color:#f4f4f4;\">\n")
	b.WriteString("<table role=\"presentation\" cellspacing=\"0\" cellpadding=\"0\" border=\"0\" width=\"100%\" style=\"background-color:#f4f4f4;\">\n")
	b.WriteString("<tr>\n<td align=\"center\" style=\"padding:20px 0;\">\n")
	fmt.Fprintf(&b, "<!--[if mso]><table role=\"presentation\" cellspacing=\"0\" cellpadding=\"0\" border=\"0\" width=\"%d\"><tr><td><![endif]-->\n", EmailWidth)
	fmt.Fprintf(&b, "<table role=\"presentation\" cellspacing=\"0\" cellpadding=\"0\" border=\"0\" width=\"%d\" style=\"width:%dpx;max-width:%dpx;background-color:%s;\">\n", EmailWidth, EmailWidth, EmailWidth, bg)

	var cursorY float64
	for _, row := range rows {
		top := row.Y * w.scale
		if gap := px(top - cursorY); gap > 0 {
			fmt.Fprintf(&b, "<tr><td height=\"%d\" style=\"height:%dpx;font-size:0;line-height:0;\">&nbsp;</td></tr>\n", gap, gap)
		}
		cursorY = top + w.rowHeight(row)
		w.standardRow(&b, row)
	}

	b.WriteString("</table>\n")
	b.WriteString("<!--[if mso]></td></tr></table><![endif]-->\n")
	b.WriteString("</td>\n</tr>\n</table>\n</body>\n</html>\n")
	return b.String()
}

// rowHeight is the scaled distance from the row's top to its lowest edge.
func (w *writer) rowHeight(row Row) float64 {
	var h float64
	for _, el := range row.Elements {
		bottom := (el.Style.Position.Y - row.Y + el.Style.Height) * w.scale
		if bottom > h {
			h = bottom
		}
	}
	return h
}

func (w *writer) standardRow(b *strings.Builder, row Row) {
	fmt.Fprintf(b, "<tr>\n<td style=\"padding:0;\">\n<table role=\"presentation\" cellspacing=\"0\" cellpadding=\"0\" border=\"0\" width=\"%d\" style=\"width:%dpx;\">\n<tr>\n", EmailWidth, EmailWidth)

	x := 0
	for _, el := range row.Elements {
		left := w.scaled(el.Style.Position.X)
		if left > x {
			spacer(b, left-x)
			x = left
		}

		width := w.scaled(el.Style.Width)
		remaining := EmailWidth - x
		if remaining < minStandardColumnPx {
			remaining = minStandardColumnPx
		}
		if width > remaining {
			width = remaining
		}
		if width < 1 {
			width = 1
		}

		fmt.Fprintf(b, "<td width=\"%d\" valign=\"top\" align=\"%s\" style=\"width:%dpx;\">", width, alignOf(el.Style, "left"), width)
		b.WriteString(w.element(el, width))
		b.WriteString("</td>\n")
		x += width
	}
	if x < EmailWidth {
		spacer(b, EmailWidth-x)
	}

	b.WriteString("</tr>\n</table>\n</td>\n</tr>\n")
}

func spacer(b *strings.Builder, width int) {
	fmt.Fprintf(b, "<td width=\"%d\" style=\"width:%dpx;font-size:0;line-height:0;\">&nbsp;</td>\n", width, width)
}
