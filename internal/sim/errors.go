package sim

import "fmt"

// SimulationError wraps a halting error with the step it happened in.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
