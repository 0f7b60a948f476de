package integrators

import (
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"euler": func() dynamo.Integrator { return NewEuler() },
	"rk4":   func() dynamo.Integrator { return NewRK4() },
	"rk45":  func() dynamo.Integrator { return NewRK45() },
}

// New returns a fresh integrator by name.
func New(name string) (dynamo.Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Advance integrates over [t, t+h] in substeps no longer than maxStep. RK45
// chooses its own substeps within that bound and repeats rejected ones.
func Advance(integ dynamo.Integrator, dyn dynamo.System, x dynamo.State, u dynamo.Control, t, h, maxStep float64) dynamo.State {
	if h <= 0 {
		return x.Clone()
	}
	if rk, ok := integ.(*RK45); ok {
		return advanceAdaptive(rk, dyn, x, u, t, h, maxStep)
	}

	n := math.Max(1, math.Ceil(h/maxStep))
	dt := h / n
	for i := 0; i < int(n); i++ {
		x = integ.Step(dyn, x, u, t+float64(i)*dt, dt)
	}
	return x
}

const maxRejects = 64

func advanceAdaptive(rk *RK45, dyn dynamo.System, x dynamo.State, u dynamo.Control, t, h, maxStep float64) dynamo.State {
	end := t + h
	dt := math.Min(h, maxStep)
	rejects := 0
	for t < end {
		dt = math.Min(dt, end-t)
		next, ratio := rk.Attempt(dyn, x, u, t, dt)
		if ratio > 1 && rejects < maxRejects && next.IsValid() {
			rejects++
			dt = rk.NextStep(dt, ratio)
			continue
		}
		rejects = 0
		x = next
		t += dt
		dt = math.Min(rk.NextStep(dt, ratio), maxStep)
		if !x.IsValid() {
			return x
		}
	}
	return x
}
