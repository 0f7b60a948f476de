package dynamo

import (
	"context"
	"fmt"
)

// Causality is the declared role of a variable.
type Causality int

const (
	CausalityParameter Causality = iota
	CausalityCalculatedParameter
	CausalityInput
	CausalityOutput
	CausalityLocal
	CausalityIndependent
)

var causalityNames = [...]string{"parameter", "calculatedParameter", "input", "output", "local", "independent"}

func (c Causality) String() string {
	if c < CausalityParameter || c > CausalityIndependent {
		return "unknown"
	}
	return causalityNames[c]
}

func ParseCausality(name string) (Causality, bool) {
	for i, n := range causalityNames {
		if n == name {
			return Causality(i), true
		}
	}
	return 0, false
}

// Observable reports whether the host reads the variable back every step.
func (c Causality) Observable() bool {
	return c == CausalityOutput || c == CausalityLocal
}

type Capabilities struct {
	CanHandleVariableStepSize bool
	CanInterpolateInputs      bool
	CanResetStep              bool
}

type ModelInfo struct {
	ID             string
	Name           string
	Description    string
	GenerationTool string
	Capabilities   Capabilities
}

// Variable describes one model variable. Default is meaningful only when
// HasDefault is set, and then its kind equals Kind.
type Variable struct {
	ID          VarID
	Name        string
	Description string
	Kind        Kind
	Causality   Causality
	HasDefault  bool
	Default     Value
}

// ModelDescription is the read-only catalog obtained once per loaded model.
type ModelDescription struct {
	Model     ModelInfo
	Variables []Variable
}

// Validate checks identifier uniqueness and default kinds.
func (d *ModelDescription) Validate() error {
	seen := make(map[VarID]string, len(d.Variables))
	for _, v := range d.Variables {
		if prev, ok := seen[v.ID]; ok {
			return fmt.Errorf("%w: id %d used by %q and %q", ErrInvalidDescription, v.ID, prev, v.Name)
		}
		seen[v.ID] = v.Name
		if !v.Kind.Valid() {
			return fmt.Errorf("%w: variable %q has unknown kind %d", ErrInvalidDescription, v.Name, v.Kind)
		}
		if v.HasDefault && v.Default.Kind() != v.Kind {
			return fmt.Errorf("%w: variable %q declared %s with %s default", ErrInvalidDescription, v.Name, v.Kind, v.Default.Kind())
		}
	}
	return nil
}

// Lookup returns the descriptor for id.
func (d *ModelDescription) Lookup(id VarID) (Variable, bool) {
	for _, v := range d.Variables {
		if v.ID == id {
			return v, true
		}
	}
	return Variable{}, false
}

func (d *ModelDescription) filter(keep func(Variable) bool) []Variable {
	out := make([]Variable, 0, len(d.Variables))
	for _, v := range d.Variables {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Observable returns the Output and Local variables in declaration order.
func (d *ModelDescription) Observable() []Variable {
	return d.filter(func(v Variable) bool { return v.Causality.Observable() })
}

// DefaultDrivable returns the Input variables that declare a default.
func (d *ModelDescription) DefaultDrivable() []Variable {
	return d.filter(func(v Variable) bool { return v.Causality == CausalityInput && v.HasDefault })
}

// Defaults builds a store of every variable with a declared default,
// regardless of causality.
func (d *ModelDescription) Defaults() (*Store, error) {
	return defaultsStore(d.filter(func(v Variable) bool { return v.HasDefault }))
}

// InputDefaults builds a store of the default-drivable set.
func (d *ModelDescription) InputDefaults() (*Store, error) {
	return defaultsStore(d.DefaultDrivable())
}

func defaultsStore(vars []Variable) (*Store, error) {
	s := NewStore(SchemaOf(vars))
	for _, v := range vars {
		if err := s.Set(v.ID, v.Default); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SchemaOf maps the given variables to their declared kinds.
func SchemaOf(vars []Variable) Schema {
	schema := make(Schema, len(vars))
	for _, v := range vars {
		schema[v.ID] = v.Kind
	}
	return schema
}

func IDs(vars []Variable) []VarID {
	ids := make([]VarID, len(vars))
	for i, v := range vars {
		ids[i] = v.ID
	}
	return ids
}

func Names(vars []Variable) []string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return names
}

// InitRequest carries the arguments of the initialize call.
type InitRequest struct {
	Values       *Store
	StartTime    float64
	HasStopTime  bool
	StopTime     float64
	HasTolerance bool
	Tolerance    float64
	LogLevel     LogLevel
	Interactive  bool
}

// StepResponse is what the model reports for one step call. SuggestedStep is
// optional and only read when Status is Discard.
type StepResponse struct {
	Status        Status
	CurrentTime   float64
	SuggestedStep float64
}

type GetValuesResponse struct {
	Status      Status
	CurrentTime float64
	Values      *Store
}

// Model is the call contract of a loaded simulation model. A non-nil error
// means the call itself failed (trap, codec or transport failure) and is
// treated as a Fatal outcome by callers.
type Model interface {
	Describe(ctx context.Context) (*ModelDescription, error)
	Initialize(ctx context.Context, req InitRequest) (Status, error)
	Step(ctx context.Context, currentTime, stepSize float64) (StepResponse, error)
	GetValues(ctx context.Context, ids []VarID) (GetValuesResponse, error)
	SetValues(ctx context.Context, values *Store) (Status, error)
	Close(ctx context.Context) error
}
