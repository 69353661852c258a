// Package export renders stored trajectories for use outside the terminal.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/dampsim/internal/viz"
)

type SVGOptions struct {
	Width, Height int
	Stroke        string
	Background    string
	GoalColor     string
}

func DefaultSVGOptions() SVGOptions {
	return SVGOptions{
		Width:      800,
		Height:     600,
		Stroke:     "#00ff88",
		Background: "#0a0a0a",
		GoalColor:  "#ff5555",
	}
}

// TrajectoryToSVG writes the (x, y) path as an SVG polyline in screen
// orientation. The start is marked with a dot and goal, when given, with a
// ring.
func TrajectoryToSVG(w io.Writer, xs, ys []float64, goal *[2]float64, opts SVGOptions) error {
	if len(xs) != len(ys) {
		return errors.New("export: xs and ys differ in length")
	}
	if len(xs) < 2 {
		return errors.New("export: need at least two points")
	}

	var extra [][2]float64
	if goal != nil {
		extra = append(extra, *goal)
	}
	b := viz.Fit(xs, ys, extra...)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="`,
		opts.Width, opts.Height, opts.Width, opts.Height, opts.Background, opts.Stroke)

	for i := range xs {
		px, py := b.Project(xs[i], ys[i], opts.Width, opts.Height)
		if i == 0 {
			fmt.Fprintf(&sb, "M%d,%d", px, py)
		} else {
			fmt.Fprintf(&sb, " L%d,%d", px, py)
		}
	}
	sb.WriteString("\"/>\n")

	sx, sy := b.Project(xs[0], ys[0], opts.Width, opts.Height)
	fmt.Fprintf(&sb, "<circle cx=\"%d\" cy=\"%d\" r=\"4\" fill=\"%s\"/>\n", sx, sy, opts.Stroke)
	if goal != nil {
		gx, gy := b.Project(goal[0], goal[1], opts.Width, opts.Height)
		fmt.Fprintf(&sb, "<circle cx=\"%d\" cy=\"%d\" r=\"6\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\"/>\n", gx, gy, opts.GoalColor)
	}
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
