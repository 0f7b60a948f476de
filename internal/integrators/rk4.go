package integrators

import "github.com/san-kum/wasmsim/internal/dynamo"

// RK4 is the classic fourth-order Runge-Kutta method. Stage buffers are reused
// between calls, so a value must not be shared across goroutines.
type RK4 struct {
	k   [4]dynamo.State
	tmp dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

var rk4Nodes = [4]float64{0, 0.5, 0.5, 1}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	if len(r.tmp) != n {
		for i := range r.k {
			r.k[i] = make(dynamo.State, n)
		}
		r.tmp = make(dynamo.State, n)
	}

	copy(r.k[0], dyn.Derive(x, u, t))
	for s := 1; s < 4; s++ {
		c := rk4Nodes[s]
		for i := range x {
			r.tmp[i] = x[i] + c*dt*r.k[s-1][i]
		}
		copy(r.k[s], dyn.Derive(r.tmp, u, t+c*dt))
	}

	out := make(dynamo.State, n)
	for i := range x {
		out[i] = x[i] + dt/6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return out
}
