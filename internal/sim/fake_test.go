package sim

import (
	"context"
	"errors"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

// scriptedModel is an in-memory model whose outcomes are set per test.
type scriptedModel struct {
	desc        *dynamo.ModelDescription
	describeErr error
	initStatus  dynamo.Status
	initReq     dynamo.InitRequest

	// stepFn overrides the default step behavior (advance by h, OK).
	stepFn    func(call int, t, h float64) dynamo.StepResponse
	getStatus dynamo.Status
	setStatus dynamo.Status

	t        float64
	log      []string
	steps    int
	sets     []*dynamo.Store
	closed   int
	closeErr error
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{desc: testDescription()}
}

func testDescription() *dynamo.ModelDescription {
	return &dynamo.ModelDescription{
		Model: dynamo.ModelInfo{ID: "{test}", Name: "scripted"},
		Variables: []dynamo.Variable{
			{ID: 1, Name: "gain", Kind: dynamo.KindReal, Causality: dynamo.CausalityParameter, HasDefault: true, Default: dynamo.RealValue(2)},
			{ID: 2, Name: "x", Kind: dynamo.KindReal, Causality: dynamo.CausalityOutput},
			{ID: 3, Name: "u", Kind: dynamo.KindReal, Causality: dynamo.CausalityInput, HasDefault: true, Default: dynamo.RealValue(0.5)},
			{ID: 4, Name: "count", Kind: dynamo.KindInt, Causality: dynamo.CausalityLocal},
			{ID: 5, Name: "on", Kind: dynamo.KindBool, Causality: dynamo.CausalityInput, HasDefault: true, Default: dynamo.BoolValue(true)},
		},
	}
}

func (m *scriptedModel) Describe(ctx context.Context) (*dynamo.ModelDescription, error) {
	m.log = append(m.log, "describe")
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	return m.desc, nil
}

func (m *scriptedModel) Initialize(ctx context.Context, req dynamo.InitRequest) (dynamo.Status, error) {
	m.log = append(m.log, "init")
	m.initReq = req
	m.t = req.StartTime
	return m.initStatus, nil
}

func (m *scriptedModel) Step(ctx context.Context, t, h float64) (dynamo.StepResponse, error) {
	m.log = append(m.log, "step")
	m.steps++
	if m.stepFn != nil {
		resp := m.stepFn(m.steps, t, h)
		if resp.Status.Proceed() {
			m.t = resp.CurrentTime
		}
		return resp, nil
	}
	m.t = t + h
	return dynamo.StepResponse{Status: dynamo.StatusOK, CurrentTime: m.t}, nil
}

func (m *scriptedModel) GetValues(ctx context.Context, ids []dynamo.VarID) (dynamo.GetValuesResponse, error) {
	m.log = append(m.log, "get")
	if m.getStatus != dynamo.StatusOK {
		return dynamo.GetValuesResponse{Status: m.getStatus}, nil
	}
	vars := make([]dynamo.Variable, 0, len(ids))
	for _, id := range ids {
		v, ok := m.desc.Lookup(id)
		if !ok {
			return dynamo.GetValuesResponse{}, errors.New("unknown id")
		}
		vars = append(vars, v)
	}
	s := dynamo.NewStore(dynamo.SchemaOf(vars))
	for _, v := range vars {
		switch v.Kind {
		case dynamo.KindReal:
			_ = s.Set(v.ID, dynamo.RealValue(m.t))
		case dynamo.KindInt:
			_ = s.Set(v.ID, dynamo.IntValue(int32(m.steps)))
		case dynamo.KindBool:
			_ = s.Set(v.ID, dynamo.BoolValue(true))
		case dynamo.KindText:
			_ = s.Set(v.ID, dynamo.TextValue("t"))
		}
	}
	return dynamo.GetValuesResponse{Status: dynamo.StatusOK, CurrentTime: m.t, Values: s}, nil
}

func (m *scriptedModel) SetValues(ctx context.Context, values *dynamo.Store) (dynamo.Status, error) {
	m.log = append(m.log, "set")
	m.sets = append(m.sets, values)
	return m.setStatus, nil
}

func (m *scriptedModel) Close(ctx context.Context) error {
	m.closed++
	return m.closeErr
}

// callsAfter returns the calls logged after the n-th step call.
func (m *scriptedModel) callsAfter(n int) []string {
	seen := 0
	for i, c := range m.log {
		if c == "step" {
			seen++
			if seen == n {
				return m.log[i+1:]
			}
		}
	}
	return nil
}

type recorder struct {
	names  []string
	times  []float64
	rows   [][]dynamo.Value
	rowErr error
}

func (r *recorder) Header(names []string) error {
	r.names = names
	return nil
}

func (r *recorder) Row(t float64, values []dynamo.Value) error {
	r.times = append(r.times, t)
	r.rows = append(r.rows, values)
	return r.rowErr
}
