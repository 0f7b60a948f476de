package physics

import (
	"math"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

// Pendulum state is [theta, omega]; the control is an applied torque.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) StateDim() int   { return 2 }
func (p *Pendulum) ControlDim() int { return 1 }

func (p *Pendulum) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta, omega := x[0], x[1]
	torque := 0.0
	if len(u) > 0 {
		torque = u[0]
	}
	inertia := p.Mass * p.Length * p.Length
	alpha := (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta) + torque) / inertia
	return dynamo.State{omega, alpha}
}

func (p *Pendulum) Energy(x dynamo.State) float64 {
	v := p.Length * x[1]
	return 0.5*p.Mass*v*v + p.Mass*p.Gravity*p.Length*(1-math.Cos(x[0]))
}

func (p *Pendulum) fields() params {
	return params{"mass": &p.Mass, "length": &p.Length, "damping": &p.Damping, "gravity": &p.Gravity}
}

func (p *Pendulum) Params() map[string]float64            { return p.fields().values() }
func (p *Pendulum) SetParam(name string, v float64) error { return p.fields().set(name, v) }
