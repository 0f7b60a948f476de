package sim

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/dynamo"
)

// StepSizer decides the size of each step and how to react to a rejection.
type StepSizer interface {
	Next(t float64, remaining int) float64
	// Shrink returns a smaller step after the model discarded h, or false when
	// no retry is possible.
	Shrink(h, suggested float64) (float64, bool)
	Mode() StepMode
}

type fixedStep struct {
	h float64
}

func (f fixedStep) Next(float64, int) float64               { return f.h }
func (f fixedStep) Shrink(float64, float64) (float64, bool) { return 0, false }
func (f fixedStep) Mode() StepMode                          { return StepFixed }

type variableStep struct {
	stop    float64
	minStep float64
}

func (v variableStep) Next(t float64, remaining int) float64 {
	return (v.stop - t) / float64(remaining)
}

func (v variableStep) Shrink(h, suggested float64) (float64, bool) {
	next := h / 2
	if suggested > 0 && suggested < h {
		next = suggested
	}
	if next < v.minStep {
		return 0, false
	}
	return next, true
}

func (v variableStep) Mode() StepMode { return StepVariable }

// selectStepper is the capability decision point: variable stepping is only
// used when the model declares it can handle it.
func selectStepper(caps dynamo.Capabilities, cfg Config, t0 float64, logger zerolog.Logger) (StepSizer, error) {
	h := (cfg.StopTime - t0) / float64(cfg.Steps)
	if h <= 0 {
		return nil, fmt.Errorf("model time %g is not before stop time %g", t0, cfg.StopTime)
	}

	if cfg.StepMode != StepVariable {
		return fixedStep{h: h}, nil
	}
	if !caps.CanHandleVariableStepSize {
		logger.Warn().
			Float64("step", h).
			Msg("model cannot handle variable step size, using fixed increment")
		return fixedStep{h: h}, nil
	}
	return variableStep{stop: cfg.StopTime, minStep: cfg.MinStep}, nil
}

// StepOutcome tags the result of one step call.
type StepOutcome int

const (
	StepAccepted StepOutcome = iota
	StepRejected
	StepFailed
)

// StepResult is the tagged view of a step response:
// Accepted(NewTime), Rejected(Suggested) or Failed(Status).
type StepResult struct {
	Outcome   StepOutcome
	NewTime   float64
	Suggested float64
	Status    dynamo.Status
	Err       error
}

func classify(resp dynamo.StepResponse, err error) StepResult {
	switch {
	case err != nil:
		return StepResult{Outcome: StepFailed, Status: dynamo.StatusFatal, Err: err}
	case !resp.Status.Valid():
		return StepResult{Outcome: StepFailed, Status: dynamo.StatusFatal,
			Err: fmt.Errorf("unknown status code %d", int(resp.Status))}
	case resp.Status.Proceed():
		return StepResult{Outcome: StepAccepted, NewTime: resp.CurrentTime, Status: resp.Status}
	case resp.Status == dynamo.StatusDiscard:
		return StepResult{Outcome: StepRejected, Suggested: resp.SuggestedStep, Status: resp.Status}
	}
	return StepResult{Outcome: StepFailed, Status: resp.Status}
}
