package analysis

import (
	"fmt"
	"math"
	"strings"
)

type Point struct{ X, Y float64 }

// PhasePortrait pairs two columns of a run sample by sample.
type PhasePortrait struct {
	XName, YName string
	Points       []Point
}

// NewPhasePortrait skips samples where either coordinate is NaN.
func NewPhasePortrait(xName string, x []float64, yName string, y []float64) (*PhasePortrait, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("column lengths differ: %d and %d", len(x), len(y))
	}
	p := &PhasePortrait{XName: xName, YName: yName, Points: make([]Point, 0, len(x))}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		p.Points = append(p.Points, Point{X: x[i], Y: y[i]})
	}
	return p, nil
}

// ASCII draws the points on a width x height character canvas, with axes
// where zero is in range.
func (p *PhasePortrait) ASCII(width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	xs, ys := newAxis(), newAxis()
	for _, pt := range p.Points {
		xs.include(pt.X)
		ys.include(pt.Y)
	}
	xs.pad(0.1)
	ys.pad(0.1)

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}
	plot := func(x, y float64, r rune, overwrite bool) {
		col := xs.cell(x, width)
		row := height - 1 - ys.cell(y, height)
		if row < 0 || row >= height || col < 0 || col >= width {
			return
		}
		if overwrite || canvas[row][col] == ' ' {
			canvas[row][col] = r
		}
	}

	for _, pt := range p.Points {
		plot(pt.X, pt.Y, '•', true)
	}
	if xs.contains(0) {
		for row := 0; row < height; row++ {
			y := ys.lo + (ys.hi-ys.lo)*float64(height-1-row)/float64(height-1)
			plot(0, y, '│', false)
		}
	}
	if ys.contains(0) {
		for col := 0; col < width; col++ {
			x := xs.lo + (xs.hi-xs.lo)*float64(col)/float64(width-1)
			plot(x, 0, '─', false)
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}

type axis struct{ lo, hi float64 }

func newAxis() *axis { return &axis{lo: math.Inf(1), hi: math.Inf(-1)} }

func (a *axis) include(v float64) {
	a.lo = math.Min(a.lo, v)
	a.hi = math.Max(a.hi, v)
}

// pad widens the range by frac on both sides; a flat range becomes unit width.
func (a *axis) pad(frac float64) {
	span := a.hi - a.lo
	if span == 0 {
		span = 1
	}
	a.lo -= span * frac
	a.hi += span * frac
}

func (a *axis) contains(v float64) bool { return a.lo <= v && v <= a.hi }

func (a *axis) cell(v float64, n int) int {
	return int(math.Round((v - a.lo) / (a.hi - a.lo) * float64(n-1)))
}

// NewPoincareSection records (x, y) wherever cross passes threshold upward,
// linearly interpolated to the crossing.
func NewPoincareSection(cross, x, y []float64, threshold float64) (*PhasePortrait, error) {
	if len(cross) != len(x) || len(x) != len(y) {
		return nil, fmt.Errorf("column lengths differ: %d, %d and %d", len(cross), len(x), len(y))
	}
	section := &PhasePortrait{Points: make([]Point, 0)}
	for i := 1; i < len(cross); i++ {
		prev, curr := cross[i-1], cross[i]
		if !(prev < threshold && curr >= threshold) {
			continue
		}
		frac := (threshold - prev) / (curr - prev)
		if math.IsNaN(frac) || math.IsInf(frac, 0) {
			frac = 0.5
		}
		section.Points = append(section.Points, Point{
			X: x[i-1] + frac*(x[i]-x[i-1]),
			Y: y[i-1] + frac*(y[i]-y[i-1]),
		})
	}
	return section, nil
}
