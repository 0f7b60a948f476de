package wasm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/shamaton/msgpack/v2"
	"github.com/tetratelabs/wazero"
)

var errNotDescribed = errors.New("wasm: model description not loaded")

// Model is a sandboxed guest driven through the dynamo.Model contract.
type Model struct {
	runtime wazero.Runtime
	guest   *guest
	logger  zerolog.Logger

	desc   *dynamo.ModelDescription
	schema dynamo.Schema
}

var _ dynamo.Model = (*Model)(nil)

func newModel(g *guest, logger zerolog.Logger) *Model {
	return &Model{guest: g, logger: logger}
}

func (m *Model) Describe(ctx context.Context) (*dynamo.ModelDescription, error) {
	out, err := m.guest.invoke(ctx, exportDescribe, nil, true)
	if err != nil {
		return nil, err
	}
	desc, err := decodeDescription(out)
	if err != nil {
		return nil, err
	}
	m.desc = desc
	m.schema = dynamo.SchemaOf(desc.Variables)
	return desc, nil
}

func (m *Model) Initialize(ctx context.Context, req dynamo.InitRequest) (dynamo.Status, error) {
	in, err := encodeInit(req)
	if err != nil {
		return dynamo.StatusFatal, fmt.Errorf("encoding init request: %w", err)
	}
	out, err := m.guest.invoke(ctx, exportInit, in, false)
	if err != nil {
		return dynamo.StatusFatal, err
	}
	return decodeStatus(out)
}

func (m *Model) Step(ctx context.Context, currentTime, stepSize float64) (dynamo.StepResponse, error) {
	in, err := msgpack.Marshal(wireStep{CurrentTime: currentTime, Step: stepSize})
	if err != nil {
		return dynamo.StepResponse{}, fmt.Errorf("encoding step request: %w", err)
	}
	out, err := m.guest.invoke(ctx, exportStep, in, false)
	if err != nil {
		return dynamo.StepResponse{}, err
	}
	return decodeStep(out)
}

func (m *Model) GetValues(ctx context.Context, ids []dynamo.VarID) (dynamo.GetValuesResponse, error) {
	if m.desc == nil {
		return dynamo.GetValuesResponse{}, errNotDescribed
	}
	schema := make(dynamo.Schema, len(ids))
	for _, id := range ids {
		kind, ok := m.schema[id]
		if !ok {
			return dynamo.GetValuesResponse{}, &dynamo.VariableError{ID: id, Wrapped: dynamo.ErrLookup}
		}
		schema[id] = kind
	}

	in, err := encodeGet(ids)
	if err != nil {
		return dynamo.GetValuesResponse{}, fmt.Errorf("encoding get request: %w", err)
	}
	out, err := m.guest.invoke(ctx, exportGet, in, true)
	if err != nil {
		return dynamo.GetValuesResponse{}, err
	}
	return decodeGet(out, schema, ids)
}

func (m *Model) SetValues(ctx context.Context, values *dynamo.Store) (dynamo.Status, error) {
	in, err := msgpack.Marshal(wireSet{Values: storeToWire(values)})
	if err != nil {
		return dynamo.StatusFatal, fmt.Errorf("encoding set request: %w", err)
	}
	out, err := m.guest.invoke(ctx, exportSet, in, false)
	if err != nil {
		return dynamo.StatusFatal, err
	}
	return decodeStatus(out)
}

// Close releases the module instance and its runtime.
func (m *Model) Close(ctx context.Context) error {
	if m.runtime == nil {
		return nil
	}
	r := m.runtime
	m.runtime = nil
	if err := r.Close(ctx); err != nil {
		return fmt.Errorf("closing wasm runtime: %w", err)
	}
	m.logger.Debug().Msg("wasm runtime closed")
	return nil
}
