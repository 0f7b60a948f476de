// Package tui renders a run while it executes.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/wasmsim/internal/sim"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

const (
	historyLen = 200
	canvasW    = 48
	canvasH    = 14
	trailLen   = 40
)

// angleColumns lists column sets drawn as a hanging pendulum chain.
var angleColumns = [][]string{
	{"theta1", "theta2"},
	{"theta"},
}

type model struct {
	title string
	start float64
	stop  float64

	names   []string
	t       float64
	values  []float64
	history [][]float64
	rows    int
	plotIdx int
	angles  []int
	trail   []point

	done   bool
	result sim.Result
	err    error
	width  int
}

func newModel(title string, start, stop float64) model {
	return model{title: title, start: start, stop: stop, width: 80}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "right", "l":
			if len(m.names) > 0 {
				m.plotIdx = (m.plotIdx + 1) % len(m.names)
			}
		case "shift+tab", "left", "h":
			if len(m.names) > 0 {
				m.plotIdx = (m.plotIdx + len(m.names) - 1) % len(m.names)
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case headerMsg:
		m.names = msg
		m.history = make([][]float64, len(msg))
		m.angles = findAngles(msg)
	case rowMsg:
		m.observe(msg)
	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
	}
	return m, nil
}

func findAngles(names []string) []int {
	for _, set := range angleColumns {
		idx := make([]int, 0, len(set))
		for _, want := range set {
			for i, n := range names {
				if n == want {
					idx = append(idx, i)
					break
				}
			}
		}
		if len(idx) == len(set) {
			return idx
		}
	}
	return nil
}

func (m *model) observe(row rowMsg) {
	m.t = row.t
	m.values = row.values
	m.rows++
	for i, v := range row.values {
		if i >= len(m.history) {
			break
		}
		h := append(m.history[i], v)
		if len(h) > historyLen {
			h = h[len(h)-historyLen:]
		}
		m.history[i] = h
	}
	if m.angles != nil {
		m.trail = append(m.trail, tip(m.currentAngles(), canvasW, canvasH))
		if len(m.trail) > trailLen {
			m.trail = m.trail[1:]
		}
	}
}

func (m model) currentAngles() []float64 {
	out := make([]float64, len(m.angles))
	for i, idx := range m.angles {
		if idx < len(m.values) {
			out[i] = m.values[idx]
		}
	}
	return out
}

func (m model) View() string {
	var b strings.Builder

	status := green.Render("● running")
	if m.done {
		status = green.Render("✓ done")
		if m.err != nil {
			status = red.Render("✗ halted")
		}
	}
	b.WriteString(fmt.Sprintf("\n   %s  %s\n", cyan.Render(m.title), status))

	progress := 0.0
	if m.stop > m.start {
		progress = math.Min(1, math.Max(0, (m.t-m.start)/(m.stop-m.start)))
	}
	barWidth := 36
	filled := int(progress * float64(barWidth))
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s  %s\n\n", bar,
		dim.Render(fmt.Sprintf("t=%.3f/%.3g", m.t, m.stop)),
		dim.Render(fmt.Sprintf("%d rows", m.rows))))

	if m.angles != nil && len(m.values) > 0 {
		for _, line := range strings.Split(strings.TrimRight(pendulum(m.currentAngles(), m.trail, canvasW, canvasH).String(), "\n"), "\n") {
			b.WriteString("   " + line + "\n")
		}
		b.WriteString("\n")
	}

	for i, name := range m.names {
		marker := "  "
		label := dim.Render(name)
		if i == m.plotIdx {
			marker = yellow.Render("▸ ")
			label = yellow.Render(name)
		}
		val := ""
		if i < len(m.values) {
			val = fmt.Sprintf("%.6g", m.values[i])
		}
		b.WriteString(fmt.Sprintf("   %s%-24s %s\n", marker, label, val))
	}

	if m.plotIdx < len(m.history) && len(m.history[m.plotIdx]) > 1 {
		width := m.width - 16
		if width > 80 {
			width = 80
		}
		if width < 20 {
			width = 20
		}
		b.WriteString("\n")
		b.WriteString(asciigraph.Plot(finite(m.history[m.plotIdx]),
			asciigraph.Height(8),
			asciigraph.Width(width),
			asciigraph.Offset(3),
			asciigraph.Caption(m.names[m.plotIdx])))
		b.WriteString("\n")
	}

	if m.done {
		b.WriteString("\n   " + dim.Render(fmt.Sprintf("%d steps, %d retries, %d warnings, status %s",
			m.result.Steps, m.result.Retries, m.result.Warnings, m.result.Status)))
		if m.err != nil {
			b.WriteString("\n   " + red.Render(m.err.Error()))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n   " + dimmer.Render("tab switch plot · q quit") + "\n")
	return b.String()
}

// finite replaces NaN and Inf with the previous finite sample, since the
// plot cannot scale around them.
func finite(data []float64) []float64 {
	out := make([]float64, len(data))
	last := 0.0
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = last
		}
		out[i] = v
		last = v
	}
	return out
}

// Run shows the live view while run executes with a Feed attached. Quitting
// the view cancels the context handed to run.
func Run(ctx context.Context, title string, start, stop float64, pace time.Duration,
	run func(ctx context.Context, feed *Feed) (sim.Result, error)) (sim.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(title, start, stop), tea.WithAltScreen(), tea.WithContext(ctx))
	feed := NewFeed(p, pace)

	type outcome struct {
		result sim.Result
		err    error
	}
	finished := make(chan outcome, 1)
	go func() {
		res, err := run(ctx, feed)
		feed.Done(res, err)
		finished <- outcome{res, err}
	}()

	_, uiErr := p.Run()
	cancel()
	out := <-finished
	if out.err == nil && uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return out.result, uiErr
	}
	return out.result, out.err
}
