// Package report delivers the rows produced by a run to their destinations.
// Every reporter implements sim.Reporter; none of them can affect the run.
package report

import (
	"errors"
	"fmt"

	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/sim"
)

// Sink is a reporter holding resources that must be released after the run.
type Sink interface {
	sim.Reporter
	Close() error
}

// Recorder keeps every row in memory.
type Recorder struct {
	Names []string
	Times []float64
	Rows  [][]dynamo.Value
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Header(names []string) error {
	r.Names = append([]string(nil), names...)
	return nil
}

func (r *Recorder) Row(t float64, values []dynamo.Value) error {
	r.Times = append(r.Times, t)
	r.Rows = append(r.Rows, append([]dynamo.Value(nil), values...))
	return nil
}

func (r *Recorder) Len() int { return len(r.Times) }

// Column returns the named column as floats. Text values become NaN.
func (r *Recorder) Column(name string) ([]float64, error) {
	for i, n := range r.Names {
		if n != name {
			continue
		}
		col := make([]float64, len(r.Rows))
		for j, row := range r.Rows {
			col[j] = row[i].Float()
		}
		return col, nil
	}
	return nil, fmt.Errorf("unknown column: %s", name)
}

// Replay sends the recorded rows to another reporter.
func (r *Recorder) Replay(to sim.Reporter) error {
	if err := to.Header(r.Names); err != nil {
		return err
	}
	for i, t := range r.Times {
		if err := to.Row(t, r.Rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// Multi forwards to every reporter and joins their failures.
type Multi []sim.Reporter

func (m Multi) Header(names []string) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Header(names))
	}
	return errors.Join(errs...)
}

func (m Multi) Row(t float64, values []dynamo.Value) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Row(t, values))
	}
	return errors.Join(errs...)
}

// Close releases every member that is a Sink.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if s, ok := r.(Sink); ok {
			errs = append(errs, s.Close())
		}
	}
	return errors.Join(errs...)
}

// native converts a value to the closest plain Go type.
func native(v dynamo.Value) any {
	switch v.Kind() {
	case dynamo.KindInt:
		i, _ := v.Int()
		return i
	case dynamo.KindBool:
		b, _ := v.Bool()
		return b
	case dynamo.KindText:
		s, _ := v.Text()
		return s
	}
	f, _ := v.Real()
	return f
}
