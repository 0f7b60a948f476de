// Package export renders stored runs as standalone SVG charts.
package export

import (
	"errors"
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/san-kum/wasmsim/internal/analysis"
)

var ErrNothingToPlot = errors.New("export: nothing to plot")

var palette = []string{"#00d7af", "#ffd700", "#ff5f87", "#5fafff", "#afff5f", "#d787ff"}

// Line is one named column plotted against time.
type Line struct {
	Name   string
	Values []float64
}

type bounds struct{ minX, maxX, minY, maxY float64 }

func newBounds() bounds {
	return bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
}

func (b *bounds) add(x, y float64) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return
	}
	b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
	b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
}

func (b bounds) empty() bool { return b.minX > b.maxX }

// padY widens the value range by 10% on each side. Flat ranges become unit width.
func (b *bounds) padY() {
	r := b.maxY - b.minY
	if r == 0 {
		r = 1
	}
	b.minY -= r * 0.1
	b.maxY += r * 0.1
}

func (b *bounds) padX() {
	r := b.maxX - b.minX
	if r == 0 {
		r = 1
	}
	b.minX -= r * 0.1
	b.maxX += r * 0.1
}

func (b bounds) project(x, y float64, width, height int) (float64, float64) {
	rx, ry := b.maxX-b.minX, b.maxY-b.minY
	if rx == 0 {
		rx = 1
	}
	return (x - b.minX) / rx * float64(width), float64(height) - (y-b.minY)/ry*float64(height)
}

// path emits one SVG path, starting a new segment after every non-finite sample.
func path(sb *strings.Builder, xs, ys []float64, b bounds, width, height int, color string) {
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, color)
	pen := false
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) || math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) {
			pen = false
			continue
		}
		x, y := b.project(xs[i], ys[i], width, height)
		if pen {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(sb, " M%.1f,%.1f", x, y)
			pen = true
		}
	}
	sb.WriteString("\"/>\n")
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

// TimeSeriesSVG plots every line against times with a legend in the top left.
func TimeSeriesSVG(times []float64, lines []Line, width, height int) (string, error) {
	b := newBounds()
	for _, l := range lines {
		if len(l.Values) != len(times) {
			return "", fmt.Errorf("column %s has %d values for %d times", l.Name, len(l.Values), len(times))
		}
		for i, v := range l.Values {
			b.add(times[i], v)
		}
	}
	if b.empty() {
		return "", ErrNothingToPlot
	}
	b.padY()

	var sb strings.Builder
	header(&sb, width, height)
	if b.minY < 0 && b.maxY > 0 {
		_, zero := b.project(b.minX, 0, width, height)
		fmt.Fprintf(&sb, `<line x1="0" y1="%.1f" x2="%d" y2="%.1f" stroke="#444" stroke-dasharray="4 4"/>`+"\n", zero, width, zero)
	}
	for i, l := range lines {
		color := palette[i%len(palette)]
		path(&sb, times, l.Values, b, width, height, color)
		fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>`+"\n",
			18+i*16, color, html.EscapeString(l.Name))
	}
	fmt.Fprintf(&sb, `<text x="%d" y="%d" fill="#888" font-family="monospace" font-size="11" text-anchor="end">t = %g .. %g</text>`+"\n",
		width-8, height-8, b.minX, b.maxX)
	sb.WriteString("</svg>\n")
	return sb.String(), nil
}

// PortraitSVG draws a phase portrait as a single trajectory.
func PortraitSVG(p *analysis.PhasePortrait, width, height int, strokeColor string) (string, error) {
	if p == nil || len(p.Points) < 2 {
		return "", ErrNothingToPlot
	}
	xs := make([]float64, len(p.Points))
	ys := make([]float64, len(p.Points))
	b := newBounds()
	for i, pt := range p.Points {
		xs[i], ys[i] = pt.X, pt.Y
		b.add(pt.X, pt.Y)
	}
	if b.empty() {
		return "", ErrNothingToPlot
	}
	b.padX()
	b.padY()

	var sb strings.Builder
	header(&sb, width, height)
	path(&sb, xs, ys, b, width, height, strokeColor)
	fmt.Fprintf(&sb, `<text x="8" y="18" fill="#888" font-family="monospace" font-size="12">%s vs %s</text>`+"\n",
		html.EscapeString(p.YName), html.EscapeString(p.XName))
	sb.WriteString("</svg>\n")
	return sb.String(), nil
}
