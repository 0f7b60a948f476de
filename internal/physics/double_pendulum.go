package physics

import (
	"math"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

// DoublePendulum state is [theta1, theta2, omega1, omega2]; the control is a
// torque on the upper joint.
type DoublePendulum struct {
	M1, M2  float64
	L1, L2  float64
	Gravity float64
}

func NewDoublePendulum() *DoublePendulum {
	return &DoublePendulum{M1: 1, M2: 1, L1: 1, L2: 1, Gravity: 9.81}
}

func (d *DoublePendulum) StateDim() int   { return 4 }
func (d *DoublePendulum) ControlDim() int { return 1 }

func (d *DoublePendulum) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta1, theta2, omega1, omega2 := x[0], x[1], x[2], x[3]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	delta := theta2 - theta1
	sinD, cosD := math.Sin(delta), math.Cos(delta)

	tau := 0.0
	if len(u) > 0 {
		tau = u[0]
	}

	den1 := (m1+m2)*l1 - m2*l1*cosD*cosD
	den2 := (l2 / l1) * den1

	alpha1 := (m2*l1*omega1*omega1*sinD*cosD +
		m2*g*math.Sin(theta2)*cosD +
		m2*l2*omega2*omega2*sinD -
		(m1+m2)*g*math.Sin(theta1) + tau) / den1

	alpha2 := (-m2*l2*omega2*omega2*sinD*cosD +
		(m1+m2)*g*math.Sin(theta1)*cosD -
		(m1+m2)*l1*omega1*omega1*sinD -
		(m1+m2)*g*math.Sin(theta2)) / den2

	return dynamo.State{omega1, omega2, alpha1, alpha2}
}

func (d *DoublePendulum) Energy(x dynamo.State) float64 {
	theta1, theta2, omega1, omega2 := x[0], x[1], x[2], x[3]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	v1sq := l1 * l1 * omega1 * omega1
	v2sq := v1sq + l2*l2*omega2*omega2 + 2*l1*l2*omega1*omega2*math.Cos(theta1-theta2)
	y1 := -l1 * math.Cos(theta1)
	y2 := y1 - l2*math.Cos(theta2)

	return 0.5*m1*v1sq + 0.5*m2*v2sq + m1*g*y1 + m2*g*y2
}

func (d *DoublePendulum) fields() params {
	return params{"m1": &d.M1, "m2": &d.M2, "l1": &d.L1, "l2": &d.L2, "g": &d.Gravity}
}

func (d *DoublePendulum) Params() map[string]float64            { return d.fields().values() }
func (d *DoublePendulum) SetParam(name string, v float64) error { return d.fields().set(name, v) }
