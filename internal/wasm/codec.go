package wasm

import (
	"fmt"

	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/shamaton/msgpack/v2"
)

// wireValues is the per-kind layout of variable values on the wire.
type wireValues struct {
	Real map[int32]float64 `msgpack:"real"`
	Int  map[int32]int32   `msgpack:"int"`
	Bool map[int32]bool    `msgpack:"bool"`
	Text map[int32]string  `msgpack:"text"`
}

type wireCapabilities struct {
	CanHandleVariableStepSize bool `msgpack:"can_handle_variable_step_size"`
	CanInterpolateInputs      bool `msgpack:"can_interpolate_inputs"`
	CanResetStep              bool `msgpack:"can_reset_step"`
}

type wireVariable struct {
	ID          int32  `msgpack:"id"`
	Name        string `msgpack:"name"`
	Description string `msgpack:"description"`
	Kind        string `msgpack:"kind"`
	Causality   string `msgpack:"causality"`
}

// wireDescription files variable defaults under their kind, keyed by id.
type wireDescription struct {
	ID             string           `msgpack:"id"`
	Name           string           `msgpack:"name"`
	Description    string           `msgpack:"description"`
	GenerationTool string           `msgpack:"generation_tool"`
	Capabilities   wireCapabilities `msgpack:"capabilities"`
	Variables      []wireVariable   `msgpack:"variables"`
	Defaults       wireValues       `msgpack:"defaults"`
}

type wireInit struct {
	Values       wireValues `msgpack:"values"`
	StartTime    float64    `msgpack:"start_time"`
	HasStopTime  bool       `msgpack:"has_stop_time"`
	StopTime     float64    `msgpack:"stop_time"`
	HasTolerance bool       `msgpack:"has_tolerance"`
	Tolerance    float64    `msgpack:"tolerance"`
	LogLevel     string     `msgpack:"log_level"`
	Interactive  bool       `msgpack:"interactive"`
}

type wireStatus struct {
	Status int32 `msgpack:"status"`
}

type wireStep struct {
	CurrentTime float64 `msgpack:"current_time"`
	Step        float64 `msgpack:"step"`
}

type wireStepResult struct {
	Status        int32   `msgpack:"status"`
	CurrentTime   float64 `msgpack:"current_time"`
	SuggestedStep float64 `msgpack:"suggested_step"`
}

type wireGet struct {
	IDs []int32 `msgpack:"ids"`
}

type wireGetResult struct {
	Status      int32      `msgpack:"status"`
	CurrentTime float64    `msgpack:"current_time"`
	Values      wireValues `msgpack:"values"`
}

type wireSet struct {
	Values wireValues `msgpack:"values"`
}

func toWire(p dynamo.Partition) wireValues {
	w := wireValues{
		Real: make(map[int32]float64, len(p.Real)),
		Int:  make(map[int32]int32, len(p.Int)),
		Bool: make(map[int32]bool, len(p.Bool)),
		Text: make(map[int32]string, len(p.Text)),
	}
	for id, v := range p.Real {
		w.Real[int32(id)] = v
	}
	for id, v := range p.Int {
		w.Int[int32(id)] = v
	}
	for id, v := range p.Bool {
		w.Bool[int32(id)] = v
	}
	for id, v := range p.Text {
		w.Text[int32(id)] = v
	}
	return w
}

func fromWire(w wireValues) dynamo.Partition {
	p := dynamo.Partition{
		Real: make(map[dynamo.VarID]float64, len(w.Real)),
		Int:  make(map[dynamo.VarID]int32, len(w.Int)),
		Bool: make(map[dynamo.VarID]bool, len(w.Bool)),
		Text: make(map[dynamo.VarID]string, len(w.Text)),
	}
	for id, v := range w.Real {
		p.Real[dynamo.VarID(id)] = v
	}
	for id, v := range w.Int {
		p.Int[dynamo.VarID(id)] = v
	}
	for id, v := range w.Bool {
		p.Bool[dynamo.VarID(id)] = v
	}
	for id, v := range w.Text {
		p.Text[dynamo.VarID(id)] = v
	}
	return p
}

func storeToWire(s *dynamo.Store) wireValues {
	if s == nil {
		return toWire(dynamo.Partition{})
	}
	return toWire(s.Partition())
}

func decodeDescription(data []byte) (*dynamo.ModelDescription, error) {
	var w wireDescription
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding model description: %w", err)
	}

	desc := &dynamo.ModelDescription{
		Model: dynamo.ModelInfo{
			ID:             w.ID,
			Name:           w.Name,
			Description:    w.Description,
			GenerationTool: w.GenerationTool,
			Capabilities: dynamo.Capabilities{
				CanHandleVariableStepSize: w.Capabilities.CanHandleVariableStepSize,
				CanInterpolateInputs:      w.Capabilities.CanInterpolateInputs,
				CanResetStep:              w.Capabilities.CanResetStep,
			},
		},
		Variables: make([]dynamo.Variable, 0, len(w.Variables)),
	}

	for _, wv := range w.Variables {
		kind, ok := dynamo.ParseKind(wv.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: variable %q has unknown kind %q", dynamo.ErrInvalidDescription, wv.Name, wv.Kind)
		}
		causality, ok := dynamo.ParseCausality(wv.Causality)
		if !ok {
			return nil, fmt.Errorf("%w: variable %q has unknown causality %q", dynamo.ErrInvalidDescription, wv.Name, wv.Causality)
		}
		desc.Variables = append(desc.Variables, dynamo.Variable{
			ID:          dynamo.VarID(wv.ID),
			Name:        wv.Name,
			Description: wv.Description,
			Kind:        kind,
			Causality:   causality,
		})
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	defaults, err := dynamo.StoreFromPartition(dynamo.SchemaOf(desc.Variables), fromWire(w.Defaults), dynamo.IDs(desc.Variables))
	if err != nil {
		return nil, fmt.Errorf("%w: defaults: %w", dynamo.ErrInvalidDescription, err)
	}
	for i := range desc.Variables {
		v := &desc.Variables[i]
		if def, err := defaults.Get(v.ID); err == nil {
			v.HasDefault = true
			v.Default = def
		}
	}
	return desc, nil
}

func encodeInit(req dynamo.InitRequest) ([]byte, error) {
	return msgpack.Marshal(wireInit{
		Values:       storeToWire(req.Values),
		StartTime:    req.StartTime,
		HasStopTime:  req.HasStopTime,
		StopTime:     req.StopTime,
		HasTolerance: req.HasTolerance,
		Tolerance:    req.Tolerance,
		LogLevel:     req.LogLevel.String(),
		Interactive:  req.Interactive,
	})
}

func decodeStatus(data []byte) (dynamo.Status, error) {
	var w wireStatus
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return 0, fmt.Errorf("decoding status: %w", err)
	}
	return dynamo.Status(w.Status), nil
}

func decodeStep(data []byte) (dynamo.StepResponse, error) {
	var w wireStepResult
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return dynamo.StepResponse{}, fmt.Errorf("decoding step result: %w", err)
	}
	return dynamo.StepResponse{
		Status:        dynamo.Status(w.Status),
		CurrentTime:   w.CurrentTime,
		SuggestedStep: w.SuggestedStep,
	}, nil
}

func encodeGet(ids []dynamo.VarID) ([]byte, error) {
	w := wireGet{IDs: make([]int32, len(ids))}
	for i, id := range ids {
		w.IDs[i] = int32(id)
	}
	return msgpack.Marshal(w)
}

// decodeGet rebuilds the returned values against schema in the order of ids.
func decodeGet(data []byte, schema dynamo.Schema, ids []dynamo.VarID) (dynamo.GetValuesResponse, error) {
	var w wireGetResult
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return dynamo.GetValuesResponse{}, fmt.Errorf("decoding values: %w", err)
	}
	values, err := dynamo.StoreFromPartition(schema, fromWire(w.Values), ids)
	if err != nil {
		return dynamo.GetValuesResponse{}, fmt.Errorf("decoding values: %w", err)
	}
	return dynamo.GetValuesResponse{
		Status:      dynamo.Status(w.Status),
		CurrentTime: w.CurrentTime,
		Values:      values,
	}, nil
}
