package dynamo

import "math"

// State is the continuous state vector of a natively integrated model.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Control is the input vector applied to a System for one derivative evaluation.
type Control []float64

// System is an ODE right-hand side dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Hamiltonian interface {
	Energy(x State) float64
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Configurable exposes named real parameters of a System.
type Configurable interface {
	Params() map[string]float64
	SetParam(name string, value float64) error
}
