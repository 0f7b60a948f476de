package models

import (
	"context"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

// Echo reports every input unchanged on the output of the same kind.
type Echo struct {
	vars   []dynamo.Variable
	inputs *dynamo.Store
	t      float64
}

var _ dynamo.Model = (*Echo)(nil)

var echoKinds = []struct {
	name string
	def  dynamo.Value
}{
	{"real", dynamo.RealValue(1.5)},
	{"int", dynamo.IntValue(7)},
	{"bool", dynamo.BoolValue(true)},
	{"text", dynamo.TextValue("hello")},
}

func NewEcho() *Echo {
	e := &Echo{}
	n := dynamo.VarID(len(echoKinds))
	for i, k := range echoKinds {
		e.vars = append(e.vars, dynamo.Variable{
			ID: dynamo.VarID(i), Name: k.name + "_in", Kind: k.def.Kind(),
			Causality: dynamo.CausalityInput, HasDefault: true, Default: k.def,
		})
	}
	for i, k := range echoKinds {
		e.vars = append(e.vars, dynamo.Variable{
			ID: n + dynamo.VarID(i), Name: k.name + "_out", Kind: k.def.Kind(),
			Causality: dynamo.CausalityOutput,
		})
	}
	return e
}

func (e *Echo) Describe(ctx context.Context) (*dynamo.ModelDescription, error) {
	vars := make([]dynamo.Variable, len(e.vars))
	copy(vars, e.vars)
	return &dynamo.ModelDescription{
		Model: dynamo.ModelInfo{
			ID:             Scheme + "echo",
			Name:           "echo",
			Description:    "Mirrors inputs to outputs",
			GenerationTool: "wasmsim",
			Capabilities:   dynamo.Capabilities{CanHandleVariableStepSize: true, CanInterpolateInputs: true},
		},
		Variables: vars,
	}, nil
}

func (e *Echo) Initialize(ctx context.Context, req dynamo.InitRequest) (dynamo.Status, error) {
	e.inputs = dynamo.NewStore(dynamo.SchemaOf(e.vars[:len(echoKinds)]))
	e.t = req.StartTime
	return e.SetValues(ctx, req.Values)
}

func (e *Echo) Step(ctx context.Context, currentTime, stepSize float64) (dynamo.StepResponse, error) {
	if stepSize <= 0 {
		return dynamo.StepResponse{Status: dynamo.StatusError, CurrentTime: e.t}, nil
	}
	e.t = currentTime + stepSize
	return dynamo.StepResponse{Status: dynamo.StatusOK, CurrentTime: e.t}, nil
}

func (e *Echo) GetValues(ctx context.Context, ids []dynamo.VarID) (dynamo.GetValuesResponse, error) {
	vars := make([]dynamo.Variable, 0, len(ids))
	for _, id := range ids {
		if int(id) < 0 || int(id) >= len(e.vars) {
			return dynamo.GetValuesResponse{}, &dynamo.VariableError{ID: id, Wrapped: dynamo.ErrLookup}
		}
		vars = append(vars, e.vars[id])
	}

	out := dynamo.NewStore(dynamo.SchemaOf(vars))
	n := dynamo.VarID(len(echoKinds))
	for _, id := range ids {
		src := id
		if id >= n {
			src = id - n
		}
		v, err := e.inputs.Get(src)
		if err != nil {
			return dynamo.GetValuesResponse{Status: dynamo.StatusError, CurrentTime: e.t}, nil
		}
		if err := out.Set(id, v); err != nil {
			return dynamo.GetValuesResponse{}, err
		}
	}
	return dynamo.GetValuesResponse{Status: dynamo.StatusOK, CurrentTime: e.t, Values: out}, nil
}

func (e *Echo) SetValues(ctx context.Context, values *dynamo.Store) (dynamo.Status, error) {
	if e.inputs == nil {
		return dynamo.StatusError, nil
	}
	if values == nil {
		return dynamo.StatusOK, nil
	}
	status := dynamo.StatusOK
	values.Each(func(id dynamo.VarID, v dynamo.Value) {
		if err := e.inputs.Set(id, v); err != nil {
			status = dynamo.StatusError
		}
	})
	return status, nil
}

func (e *Echo) Close(ctx context.Context) error {
	e.inputs = nil
	return nil
}
