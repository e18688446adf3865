package services

import "finboard/backend-go/internal/models"

const (
	GridColumns   = 12
	PlaceholderID = "add-widget"
	placeholderW  = 6
	placeholderH  = 4
)

// NextPlacement returns the first w x h rectangle not overlapping any of
// rects, scanning rows top to bottom and columns left to right. The
// returned position pins min/max width to w.
func NextPlacement(rects []models.Position, cols, w, h int) models.Position {
	if cols <= 0 {
		cols = GridColumns
	}
	if w <= 0 {
		w = placeholderW
	}
	if h <= 0 {
		h = placeholderH
	}
	if w > cols {
		w = cols
	}
	// A rectangle placed below every existing one is always free, so the
	// scan terminates by that row at the latest.
	bottom := 0
	for _, r := range rects {
		if r.Y+r.H > bottom {
			bottom = r.Y + r.H
		}
	}
	for y := 0; y <= bottom; y++ {
		for x := 0; x+w <= cols; x++ {
			cand := models.Position{X: x, Y: y, W: w, H: h}
			if !overlapsAny(cand, rects) {
				cand.MinW, cand.MaxW = w, w
				return cand
			}
		}
	}
	return models.Position{X: 0, Y: bottom, W: w, H: h, MinW: w, MaxW: w}
}

func overlapsAny(p models.Position, rects []models.Position) bool {
	for _, r := range rects {
		if r.W <= 0 || r.H <= 0 {
			continue
		}
		if p.X < r.X+r.W && r.X < p.X+p.W && p.Y < r.Y+r.H && r.Y < p.Y+p.H {
			return true
		}
	}
	return false
}

// Reconcile applies layout items to widgets and returns the ids whose
// rectangle actually changed. Unknown ids and the placeholder are skipped;
// min/max bounds of the stored position are kept.
func Reconcile(widgets []models.WidgetConfig, items []models.LayoutItem) ([]models.WidgetConfig, []string) {
	byID := make(map[string]int, len(widgets))
	for i, w := range widgets {
		byID[w.ID] = i
	}
	out := make([]models.WidgetConfig, len(widgets))
	copy(out, widgets)
	changed := []string{}
	seen := map[string]bool{}
	for _, it := range items {
		if it.I == PlaceholderID {
			continue
		}
		i, ok := byID[it.I]
		if !ok {
			continue
		}
		pos := out[i].Position
		if pos.X == it.X && pos.Y == it.Y && pos.W == it.W && pos.H == it.H {
			continue
		}
		pos.X, pos.Y, pos.W, pos.H = it.X, it.Y, it.W, it.H
		out[i].Position = pos
		if !seen[it.I] {
			seen[it.I] = true
			changed = append(changed, it.I)
		}
	}
	return out, changed
}
