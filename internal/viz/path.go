package viz

import (
	"errors"
	"math"
)

// Bounds is an axis-aligned box in world coordinates.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Fit returns the bounds of the points padded by 5% on each side. Degenerate
// spans are widened to one unit.
func Fit(xs, ys []float64, extra ...[2]float64) Bounds {
	b := Bounds{MinX: math.Inf(1), MaxX: math.Inf(-1), MinY: math.Inf(1), MaxY: math.Inf(-1)}
	grow := func(x, y float64) {
		b.MinX, b.MaxX = math.Min(b.MinX, x), math.Max(b.MaxX, x)
		b.MinY, b.MaxY = math.Min(b.MinY, y), math.Max(b.MaxY, y)
	}
	for i := range xs {
		grow(xs[i], ys[i])
	}
	for _, p := range extra {
		grow(p[0], p[1])
	}

	pad := func(lo, hi float64) (float64, float64) {
		span := hi - lo
		if span == 0 {
			span = 1
		}
		return lo - span*0.05, hi + span*0.05
	}
	b.MinX, b.MaxX = pad(b.MinX, b.MaxX)
	b.MinY, b.MaxY = pad(b.MinY, b.MaxY)
	return b
}

// Project maps a world point onto a w×h pixel grid, y down.
func (b Bounds) Project(x, y float64, w, h int) (int, int) {
	px := (x - b.MinX) / (b.MaxX - b.MinX) * float64(w-1)
	py := (y - b.MinY) / (b.MaxY - b.MinY) * float64(h-1)
	return int(math.Round(px)), int(math.Round(py))
}

// PathPlot draws the polyline through (xs[i], ys[i]) on a width×height cell
// canvas and marks goal, when given, with a cross.
func PathPlot(xs, ys []float64, goal *[2]float64, width, height int) (*Canvas, error) {
	if len(xs) != len(ys) {
		return nil, errors.New("viz: xs and ys differ in length")
	}
	if len(xs) == 0 {
		return nil, errors.New("viz: empty path")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.New("viz: canvas must be at least one cell")
	}

	var extra [][2]float64
	if goal != nil {
		extra = append(extra, *goal)
	}
	b := Fit(xs, ys, extra...)

	c := NewCanvas(width, height)
	w, h := c.Pixels()

	px, py := b.Project(xs[0], ys[0], w, h)
	c.Set(px, py)
	for i := 1; i < len(xs); i++ {
		nx, ny := b.Project(xs[i], ys[i], w, h)
		c.DrawLine(px, py, nx, ny)
		px, py = nx, ny
	}
	if goal != nil {
		gx, gy := b.Project(goal[0], goal[1], w, h)
		c.Cross(gx, gy)
	}
	return c, nil
}
