// Package metrics folds the rows of a run into scalar figures that are stored
// with the run.
package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

// Metric observes one column.
type Metric interface {
	Name() string
	Observe(t, v float64)
	Value() float64
	Reset()
}

// Drift is the largest relative deviation from the first sample. Energy
// columns of conservative models should stay near zero.
type Drift struct {
	initial  float64
	maxDrift float64
	samples  int
}

func NewDrift() *Drift { return &Drift{} }

func (d *Drift) Name() string { return "drift" }

func (d *Drift) Observe(_, v float64) {
	if math.IsNaN(v) {
		return
	}
	if d.samples == 0 {
		d.initial = v
	}
	d.samples++
	if d.initial != 0 {
		d.maxDrift = math.Max(d.maxDrift, math.Abs(v-d.initial)/math.Abs(d.initial))
	}
}

func (d *Drift) Value() float64 { return d.maxDrift }

func (d *Drift) Reset() { *d = Drift{} }

// Bounded is the fraction of samples whose magnitude stays within threshold.
type Bounded struct {
	threshold  float64
	violations int
	samples    int
}

func NewBounded(threshold float64) *Bounded {
	return &Bounded{threshold: threshold}
}

func (b *Bounded) Name() string { return "bounded" }

func (b *Bounded) Observe(_, v float64) {
	b.samples++
	if math.IsNaN(v) || math.Abs(v) > b.threshold {
		b.violations++
	}
}

func (b *Bounded) Value() float64 {
	if b.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(b.violations)/float64(b.samples)
}

func (b *Bounded) Reset() {
	b.violations = 0
	b.samples = 0
}

// MeanAbs is the time average of |v| using the trapezoid rule, which keeps it
// meaningful when rows are unevenly spaced.
type MeanAbs struct {
	t0, lastT, lastV float64
	area             float64
	samples          int
}

func NewMeanAbs() *MeanAbs { return &MeanAbs{} }

func (m *MeanAbs) Name() string { return "mean_abs" }

func (m *MeanAbs) Observe(t, v float64) {
	if math.IsNaN(v) {
		return
	}
	v = math.Abs(v)
	if m.samples == 0 {
		m.t0 = t
	} else {
		m.area += 0.5 * (v + m.lastV) * (t - m.lastT)
	}
	m.lastT, m.lastV = t, v
	m.samples++
}

func (m *MeanAbs) Value() float64 {
	switch {
	case m.samples == 0:
		return 0
	case m.lastT == m.t0:
		return m.lastV
	}
	return m.area / (m.lastT - m.t0)
}

func (m *MeanAbs) Reset() { *m = MeanAbs{} }

// Collector routes row values to metrics bound to column names. It implements
// sim.Reporter so it can ride along with the other reporters of a run.
type Collector struct {
	bindings map[string][]Metric
	order    []string
	index    []int
	auto     func(column string) []Metric
}

func NewCollector() *Collector {
	return &Collector{bindings: make(map[string][]Metric)}
}

// Track attaches m to the named column.
func (c *Collector) Track(column string, m Metric) *Collector {
	if _, ok := c.bindings[column]; !ok {
		c.order = append(c.order, column)
	}
	c.bindings[column] = append(c.bindings[column], m)
	return c
}

// Header resolves the bound columns. Columns absent from the run are ignored.
func (c *Collector) Header(names []string) error {
	if c.auto != nil {
		for _, n := range names {
			for _, m := range c.auto(n) {
				c.Track(n, m)
			}
		}
		c.auto = nil
	}
	c.index = make([]int, len(c.order))
	for i, col := range c.order {
		c.index[i] = -1
		for j, n := range names {
			if n == col {
				c.index[i] = j
				break
			}
		}
	}
	return nil
}

func (c *Collector) Row(t float64, values []dynamo.Value) error {
	for i, col := range c.order {
		j := c.index[i]
		if j < 0 || j >= len(values) {
			continue
		}
		if values[j].Kind() == dynamo.KindText {
			continue
		}
		v := values[j].Float()
		for _, m := range c.bindings[col] {
			m.Observe(t, v)
		}
	}
	return nil
}

// Values returns "column.metric" keyed results for columns seen in the header.
func (c *Collector) Values() map[string]float64 {
	out := make(map[string]float64)
	for i, col := range c.order {
		if i < len(c.index) && c.index[i] < 0 {
			continue
		}
		for _, m := range c.bindings[col] {
			out[fmt.Sprintf("%s.%s", col, m.Name())] = m.Value()
		}
	}
	return out
}

// Auto binds the metrics returned by bind to every column the run reports.
// Text columns are never observed.
func Auto(bind func(column string) []Metric) *Collector {
	c := NewCollector()
	c.auto = bind
	return c
}

// Standard tracks the drift of an energy column and the mean magnitude of
// every column, whatever the run turns out to observe.
func Standard() *Collector {
	return Auto(func(column string) []Metric {
		if column == "energy" {
			return []Metric{NewDrift(), NewMeanAbs()}
		}
		return []Metric{NewMeanAbs()}
	})
}

// Within bounds every column by threshold. A run stayed within it when every
// value of Values is 1.
func Within(threshold float64) *Collector {
	return Auto(func(string) []Metric {
		return []Metric{NewBounded(threshold)}
	})
}
