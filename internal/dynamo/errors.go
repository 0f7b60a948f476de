package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for model and store operations.
var (
	// ErrLookup indicates a variable identifier that was never populated.
	ErrLookup = errors.New("dynamo: variable not populated")

	// ErrKindMismatch indicates a value written or read under the wrong kind.
	ErrKindMismatch = errors.New("dynamo: variable kind mismatch")

	// ErrInvalidDescription indicates a model description that breaks its own invariants.
	ErrInvalidDescription = errors.New("dynamo: invalid model description")

	// ErrInvalidTransition indicates a lifecycle call made in the wrong phase.
	ErrInvalidTransition = errors.New("dynamo: invalid lifecycle transition")

	// ErrModelFailed indicates the model can no longer be called after a fatal outcome.
	ErrModelFailed = errors.New("dynamo: model instance is no longer usable")

	// ErrStepTooSmall indicates a rejected step could not be shrunk any further.
	ErrStepTooSmall = errors.New("dynamo: step size below minimum after rejection")
)

// Severity sentinels matched by [OutcomeError.Is].
var (
	ErrDiscard = errors.New("dynamo: discard")
	ErrWarning = errors.New("dynamo: warning")
	ErrError   = errors.New("dynamo: error")
	ErrFatal   = errors.New("dynamo: fatal")
)

// OutcomeError reports a non-OK outcome together with the operation that produced it.
type OutcomeError struct {
	Op     string
	Status Status
	Time   float64
}

func (e *OutcomeError) Error() string {
	return fmt.Sprintf("%s returned status: %s", e.Op, e.Status)
}

// Is matches the severity sentinels so callers can write errors.Is(err, ErrFatal).
func (e *OutcomeError) Is(target error) bool {
	switch target {
	case ErrDiscard:
		return e.Status == StatusDiscard
	case ErrWarning:
		return e.Status == StatusWarning
	case ErrError:
		return e.Status == StatusError
	case ErrFatal:
		return e.Status == StatusFatal
	}
	return false
}

// VariableError wraps a store failure with the offending identifier.
type VariableError struct {
	ID      VarID
	Want    Kind
	Got     Kind
	Wrapped error
}

func (e *VariableError) Error() string {
	if errors.Is(e.Wrapped, ErrKindMismatch) {
		return fmt.Sprintf("%v: variable %d declared %s, got %s", e.Wrapped, e.ID, e.Want, e.Got)
	}
	return fmt.Sprintf("%v: variable %d", e.Wrapped, e.ID)
}

func (e *VariableError) Unwrap() error {
	return e.Wrapped
}
