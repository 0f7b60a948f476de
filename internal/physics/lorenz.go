package physics

import "github.com/san-kum/wasmsim/internal/dynamo"

type Lorenz struct {
	Sigma, Rho, Beta float64
}

func NewLorenz() *Lorenz { return &Lorenz{Sigma: 10, Rho: 28, Beta: 8.0 / 3.0} }

func (l *Lorenz) StateDim() int   { return 3 }
func (l *Lorenz) ControlDim() int { return 0 }

func (l *Lorenz) Derive(s dynamo.State, _ dynamo.Control, _ float64) dynamo.State {
	return dynamo.State{l.Sigma * (s[1] - s[0]), s[0]*(l.Rho-s[2]) - s[1], s[0]*s[1] - l.Beta*s[2]}
}

func (l *Lorenz) fields() params {
	return params{"sigma": &l.Sigma, "rho": &l.Rho, "beta": &l.Beta}
}

func (l *Lorenz) Params() map[string]float64            { return l.fields().values() }
func (l *Lorenz) SetParam(name string, v float64) error { return l.fields().set(name, v) }
