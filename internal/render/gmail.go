package render

import (
	"fmt"
	"strings"
)

const (
	gmailSidePadding = 20
	gmailCellPadding = 5
	minColumnPct     = 15.0
	maxColumnPct     = 100.0
)

// gmailDocument reflows rows into nested tables. Gmail strips free-form
// positioning, so nothing here emits a position property.
func (w *writer) gmailDocument(title string, rows []Row) string {
	bg := css(first(w.canvas.BackgroundColor, "#ffffff"))

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"UTF-8\">\n<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n</head>\n", literal(title))
	b.WriteString("<body style=\"margin:0;padding:0;font-family:Arial, sans-serif;background-color:#f4f4f4;\">\n")
	b.WriteString("<table role=\"presentation\" cellspacing=\"0\" cellpadding=\"0\" border=\"0\" width=\"100%\" style=\"background-color:#f4f4f4;\">\n")
	b.WriteString("<tr>\n<td align=\"center\" style=\"padding:20px 0;\">\n")
	fmt.Fprintf(&b, "<table role=\"presentation\" cellspacing=\"0\" cellpadding=\"0\" border=\"0\" width=\"%d\" style=\"background-color:%s;max-width:%dpx;margin:0 auto;\">\n", EmailWidth, bg, EmailWidth)

	for _, row := range rows {
		w.gmailRow(&b, row)
	}

	b.WriteString("</table>\n</td>\n</tr>\n</table>\n</body>\n</html>\n")
	return b.String()
}

func (w *writer) gmailRow(b *strings.Builder, row Row) {
	pcts := w.columnPercents(row)
	inner := EmailWidth - 2*gmailSidePadding

	fmt.Fprintf(b, "<tr>\n<td style=\"padding:10px %dpx;\">\n", gmailSidePadding)
	b.WriteString("<table role=\"presentation\" cellspacing=\"0\" cellpadding=\"0\" border=\"0\" width=\"100%\">\n<tr>\n")
	for i, el := range row.Elements {
		pct := pcts[i]
		colPx := int(float64(inner)*pct/100) - 2*gmailCellPadding
		if colPx < 1 {
			colPx = 1
		}
		fmt.Fprintf(b, "<td width=\"%s%%\" valign=\"top\" align=\"%s\" style=\"width:%s%%;padding:%dpx;\">",
			formatPct(pct), alignOf(el.Style, "center"), formatPct(pct), gmailCellPadding)
		b.WriteString(w.element(el, colPx))
		b.WriteString("</td>\n")
	}
	b.WriteString("</tr>\n</table>\n</td>\n</tr>\n")
}

// columnPercents sizes each column as its share of the email width,
// clamped to 15-100% and scaled down when the row overflows.
func (w *writer) columnPercents(row Row) []float64 {
	pcts := make([]float64, len(row.Elements))
	var sum float64
	for i, el := range row.Elements {
		scaledWidth := el.Style.Width * w.scale
		p := clamp(scaledWidth/EmailWidth*100, minColumnPct, maxColumnPct)
		pcts[i] = p
		sum += p
	}
	if sum > maxColumnPct {
		for i := range pcts {
			pcts[i] = pcts[i] * maxColumnPct / sum
		}
	}
	return pcts
}

func formatPct(p float64) string {
	s := fmt.Sprintf("%.2f", p)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s
}
