package models

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/integrators"
)

// ODE runs a Plant in-process behind the dynamo.Model contract. It accepts
// variable steps and rejects a step with Discard when the state stops being
// finite, keeping the state from before the step.
type ODE struct {
	plant   Plant
	catalog *catalog

	sys     System
	integ   dynamo.Integrator
	method  string
	maxStep float64
	x0      dynamo.State
	x       dynamo.State
	u       dynamo.Control
	t       float64
	steps   int32
	ready   bool
}

var _ dynamo.Model = (*ODE)(nil)

func NewODE(p Plant) *ODE {
	return &ODE{plant: p, catalog: p.catalog()}
}

func (m *ODE) Describe(ctx context.Context) (*dynamo.ModelDescription, error) {
	info := m.plant.Info
	info.Capabilities = dynamo.Capabilities{CanHandleVariableStepSize: true, CanResetStep: true}
	vars := make([]dynamo.Variable, len(m.catalog.vars))
	copy(vars, m.catalog.vars)
	return &dynamo.ModelDescription{Model: info, Variables: vars}, nil
}

func (m *ODE) Initialize(ctx context.Context, req dynamo.InitRequest) (dynamo.Status, error) {
	m.sys = m.plant.New()
	m.x = m.plant.Initial.Clone()
	m.u = make(dynamo.Control, len(m.plant.Inputs))
	m.maxStep = defaultMaxStep
	m.t = req.StartTime
	m.steps = 0
	m.method = defaultIntegrator

	var applyErr error
	if req.Values != nil {
		req.Values.Each(func(id dynamo.VarID, v dynamo.Value) {
			if applyErr == nil {
				applyErr = m.apply(id, v)
			}
		})
	}
	if applyErr != nil {
		return dynamo.StatusError, nil
	}

	integ, err := integrators.New(m.method)
	if err != nil {
		return dynamo.StatusError, nil
	}
	if rk, ok := integ.(*integrators.RK45); ok && req.HasTolerance {
		rk.Tolerance = req.Tolerance
	}
	if m.maxStep <= 0 {
		return dynamo.StatusError, nil
	}
	m.integ = integ
	m.x0 = m.x.Clone()
	m.ready = true
	return dynamo.StatusOK, nil
}

func (m *ODE) apply(id dynamo.VarID, v dynamo.Value) error {
	b, ok := m.catalog.bindings[id]
	if !ok {
		return &dynamo.VariableError{ID: id, Wrapped: dynamo.ErrLookup}
	}
	if b.role == roleIntegrator {
		s, ok := v.Text()
		if !ok {
			return &dynamo.VariableError{ID: id, Want: dynamo.KindText, Got: v.Kind(), Wrapped: dynamo.ErrKindMismatch}
		}
		m.method = s
		return nil
	}

	r, ok := v.Real()
	if !ok {
		return &dynamo.VariableError{ID: id, Want: dynamo.KindReal, Got: v.Kind(), Wrapped: dynamo.ErrKindMismatch}
	}
	switch b.role {
	case roleParam:
		return m.sys.SetParam(b.name, r)
	case roleInitial:
		m.x[b.index] = r
	case roleMaxStep:
		m.maxStep = r
	case roleInput:
		m.u[b.index] = r
	default:
		return fmt.Errorf("variable %d cannot be set", id)
	}
	return nil
}

func (m *ODE) Step(ctx context.Context, currentTime, stepSize float64) (dynamo.StepResponse, error) {
	if !m.ready || stepSize <= 0 {
		return dynamo.StepResponse{Status: dynamo.StatusError, CurrentTime: m.t}, nil
	}
	if math.Abs(currentTime-m.t) > 1e-9*math.Max(1, math.Abs(m.t)) {
		return dynamo.StepResponse{Status: dynamo.StatusError, CurrentTime: m.t}, nil
	}

	next := integrators.Advance(m.integ, m.sys, m.x, m.u, m.t, stepSize, m.maxStep)
	if !next.IsValid() {
		return dynamo.StepResponse{Status: dynamo.StatusDiscard, CurrentTime: m.t, SuggestedStep: stepSize / 2}, nil
	}

	m.x = next
	m.t = currentTime + stepSize
	m.steps++
	return dynamo.StepResponse{Status: dynamo.StatusOK, CurrentTime: m.t}, nil
}

func (m *ODE) GetValues(ctx context.Context, ids []dynamo.VarID) (dynamo.GetValuesResponse, error) {
	if !m.ready {
		return dynamo.GetValuesResponse{Status: dynamo.StatusError}, nil
	}
	vars := make([]dynamo.Variable, 0, len(ids))
	for _, id := range ids {
		if int(id) < 0 || int(id) >= len(m.catalog.vars) {
			return dynamo.GetValuesResponse{}, &dynamo.VariableError{ID: id, Wrapped: dynamo.ErrLookup}
		}
		vars = append(vars, m.catalog.vars[id])
	}

	out := dynamo.NewStore(dynamo.SchemaOf(vars))
	for _, id := range ids {
		if err := out.Set(id, m.value(id)); err != nil {
			return dynamo.GetValuesResponse{}, err
		}
	}
	return dynamo.GetValuesResponse{Status: dynamo.StatusOK, CurrentTime: m.t, Values: out}, nil
}

func (m *ODE) value(id dynamo.VarID) dynamo.Value {
	b := m.catalog.bindings[id]
	switch b.role {
	case roleParam:
		return dynamo.RealValue(m.sys.Params()[b.name])
	case roleInitial:
		return dynamo.RealValue(m.x0[b.index])
	case roleIntegrator:
		return dynamo.TextValue(m.method)
	case roleMaxStep:
		return dynamo.RealValue(m.maxStep)
	case roleInput:
		return dynamo.RealValue(m.u[b.index])
	case roleState:
		return dynamo.RealValue(m.x[b.index])
	case roleEnergy:
		return dynamo.RealValue(m.sys.(dynamo.Hamiltonian).Energy(m.x))
	case roleSteps:
		return dynamo.IntValue(m.steps)
	}
	return dynamo.BoolValue(m.x.IsValid())
}

// SetValues accepts inputs only.
func (m *ODE) SetValues(ctx context.Context, values *dynamo.Store) (dynamo.Status, error) {
	if !m.ready {
		return dynamo.StatusError, nil
	}
	if values == nil {
		return dynamo.StatusOK, nil
	}
	status := dynamo.StatusOK
	values.Each(func(id dynamo.VarID, v dynamo.Value) {
		b, ok := m.catalog.bindings[id]
		r, isReal := v.Real()
		if !ok || b.role != roleInput || !isReal {
			status = dynamo.StatusError
			return
		}
		m.u[b.index] = r
	})
	return status, nil
}

func (m *ODE) Close(ctx context.Context) error {
	m.ready = false
	return nil
}
