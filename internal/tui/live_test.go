package tui

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct{ msgs []tea.Msg }

func (i *inbox) Send(msg tea.Msg) { i.msgs = append(i.msgs, msg) }

func TestFeedForwardsRows(t *testing.T) {
	box := &inbox{}
	feed := NewFeed(box, 0)
	require.NoError(t, feed.Header([]string{"x", "on"}))
	require.NoError(t, feed.Row(0.5, []dynamo.Value{dynamo.RealValue(2), dynamo.BoolValue(true)}))
	feed.Done(sim.Result{Steps: 1}, nil)

	require.Len(t, box.msgs, 3)
	assert.Equal(t, headerMsg{"x", "on"}, box.msgs[0])
	assert.Equal(t, rowMsg{t: 0.5, values: []float64{2, 1}}, box.msgs[1])
	assert.Equal(t, doneMsg{result: sim.Result{Steps: 1}}, box.msgs[2])
}

func feed(m tea.Model, msgs ...tea.Msg) model {
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m.(model)
}

func TestModelTracksRows(t *testing.T) {
	m := feed(newModel("builtin:dpend", 0, 10),
		headerMsg{"theta1", "theta2", "energy"},
		rowMsg{t: 0, values: []float64{1, 1.5, -3}},
		rowMsg{t: 5, values: []float64{0.8, 1.2, -3}},
	)
	assert.Equal(t, 2, m.rows)
	assert.Equal(t, 5.0, m.t)
	assert.Equal(t, []int{0, 1}, m.angles)
	assert.Len(t, m.trail, 2)
	assert.Equal(t, []float64{1, 0.8}, m.history[0])

	view := m.View()
	assert.Contains(t, view, "builtin:dpend")
	assert.Contains(t, view, "theta2")
	assert.Contains(t, view, "2 rows")
	assert.Contains(t, view, "O", "pendulum drawing expected")
}

func TestModelHistoryIsBounded(t *testing.T) {
	msgs := []tea.Msg{headerMsg{"x"}}
	for i := 0; i < historyLen+25; i++ {
		msgs = append(msgs, rowMsg{t: float64(i), values: []float64{float64(i)}})
	}
	m := feed(newModel("m", 0, 1000), msgs...)
	require.Len(t, m.history[0], historyLen)
	assert.Equal(t, float64(historyLen+24), m.history[0][historyLen-1])
	assert.Nil(t, m.angles)
}

func TestModelKeys(t *testing.T) {
	m := feed(newModel("m", 0, 1), headerMsg{"a", "b", "c"})
	m = feed(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 1, m.plotIdx)
	m = feed(m, tea.KeyMsg{Type: tea.KeyShiftTab}, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, 2, m.plotIdx)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModelShowsHalt(t *testing.T) {
	halt := errors.New("step at t=0.3 returned Error")
	m := feed(newModel("m", 0, 1),
		headerMsg{"x"},
		rowMsg{t: 0, values: []float64{1}},
		doneMsg{result: sim.Result{Steps: 3, Status: dynamo.StatusError}, err: halt},
	)
	view := m.View()
	assert.Contains(t, view, "halted")
	assert.Contains(t, view, halt.Error())
}

func TestFinite(t *testing.T) {
	got := finite([]float64{math.NaN(), 1, math.Inf(1), 2})
	assert.Equal(t, []float64{0, 1, 1, 2}, got)
}

func TestPendulumCanvas(t *testing.T) {
	c := pendulum([]float64{0}, nil, 21, 13)
	lines := strings.Split(strings.TrimRight(c.String(), "\n"), "\n")
	require.Len(t, lines, 13)
	assert.Equal(t, '+', []rune(lines[1])[10])
	assert.Equal(t, 'O', []rune(lines[11])[10], "a hanging bob sits straight below the pivot")
	assert.Equal(t, point{10, 11}, tip([]float64{0}, 21, 13))
}

func TestFeedPace(t *testing.T) {
	feed := NewFeed(&inbox{}, 5*time.Millisecond)
	start := time.Now()
	require.NoError(t, feed.Row(0, nil))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}
