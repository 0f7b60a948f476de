package tui

import (
	"math"
	"strings"
)

type canvas struct {
	w, h  int
	cells [][]rune
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = []rune(strings.Repeat(" ", w))
	}
	return c
}

func (c *canvas) set(x, y int, r rune) {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		c.cells[y][x] = r
	}
}

// line draws with Bresenham's algorithm.
func (c *canvas) line(x1, y1, x2, y2 int, r rune) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (c *canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// pendulum draws a chain of links hanging from the top centre, one per angle.
// Character cells are about twice as tall as wide, hence the x stretch.
func pendulum(angles []float64, trail []point, w, h int) *canvas {
	c := newCanvas(w, h)
	for _, p := range trail {
		c.set(p.x, p.y, '·')
	}
	px, py := w/2, 1
	link := float64(h-3) / float64(len(angles))
	pivotX, pivotY := px, py
	for i, theta := range angles {
		bx := px + int(math.Round(2*link*math.Sin(theta)))
		by := py + int(math.Round(link*math.Cos(theta)))
		c.line(px, py, bx, by, '|')
		bob := 'o'
		if i == len(angles)-1 {
			bob = 'O'
		}
		c.set(bx, by, bob)
		px, py = bx, by
	}
	c.set(pivotX, pivotY, '+')
	return c
}

// tip returns the position of the last bob, for the trail.
func tip(angles []float64, w, h int) point {
	px, py := w/2, 1
	link := float64(h-3) / float64(len(angles))
	for _, theta := range angles {
		px += int(math.Round(2 * link * math.Sin(theta)))
		py += int(math.Round(link * math.Cos(theta)))
	}
	return point{px, py}
}

type point struct{ x, y int }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
