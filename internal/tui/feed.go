package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/sim"
)

type headerMsg []string

type rowMsg struct {
	t      float64
	values []float64
}

type doneMsg struct {
	result sim.Result
	err    error
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Feed forwards rows to the live view. Pace throttles delivery so short runs
// stay watchable; it delays the reporter only and never the model state.
type Feed struct {
	to   Sender
	pace time.Duration
}

func NewFeed(to Sender, pace time.Duration) *Feed {
	return &Feed{to: to, pace: pace}
}

func (f *Feed) Header(names []string) error {
	f.to.Send(headerMsg(append([]string(nil), names...)))
	return nil
}

func (f *Feed) Row(t float64, values []dynamo.Value) error {
	row := rowMsg{t: t, values: make([]float64, len(values))}
	for i, v := range values {
		row.values[i] = v.Float()
	}
	f.to.Send(row)
	if f.pace > 0 {
		time.Sleep(f.pace)
	}
	return nil
}

// Done reports the end of the run to the view.
func (f *Feed) Done(result sim.Result, err error) {
	f.to.Send(doneMsg{result: result, err: err})
}
