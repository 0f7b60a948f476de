package integrators

import "github.com/san-kum/wasmsim/internal/dynamo"

// Euler is the explicit first-order method. Cheap, and only useful for tests
// and very small steps.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	out := make(dynamo.State, len(x))
	for i := range x {
		out[i] = x[i] + dt*dx[i]
	}
	return out
}
