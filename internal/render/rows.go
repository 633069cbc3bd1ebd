package render

import (
	"sort"

	"mailout/internal/domain"
)

// Row is a horizontal band of elements. Y is the top of the element that
// opened the row.
type Row struct {
	Y        float64
	Elements []domain.EditorElement
}

// ValidElements returns the renderable elements in their original order.
func ValidElements(in []domain.EditorElement) []domain.EditorElement {
	out := make([]domain.EditorElement, 0, len(in))
	for _, el := range in {
		if el.Renderable() {
			out = append(out, el)
		}
	}
	return out
}

// GroupIntoRows collapses an absolute canvas into a linear flow. Elements
// are ordered by top edge; an element joins the current row while its top
// is within tolerance of the row's first element. Each row is then ordered
// left to right. Ties keep input order, so the result is deterministic.
func GroupIntoRows(elements []domain.EditorElement, tolerance float64) []Row {
	valid := ValidElements(elements)
	if len(valid) == 0 {
		return nil
	}

	sort.SliceStable(valid, func(i, j int) bool {
		a, b := valid[i].Style.Position, valid[j].Style.Position
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	var rows []Row
	for _, el := range valid {
		y := el.Style.Position.Y
		if n := len(rows); n > 0 && y-rows[n-1].Y <= tolerance {
			rows[n-1].Elements = append(rows[n-1].Elements, el)
			continue
		}
		rows = append(rows, Row{Y: y, Elements: []domain.EditorElement{el}})
	}

	for i := range rows {
		els := rows[i].Elements
		sort.SliceStable(els, func(a, b int) bool {
			return els[a].Style.Position.X < els[b].Style.Position.X
		})
	}
	return rows
}
