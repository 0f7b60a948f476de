package sim

import (
	"github.com/san-kum/wasmsim/internal/dynamo"
)

// StepMode selects how the driver sizes steps.
type StepMode string

const (
	// StepFixed precomputes one increment (stop - t0) / steps for the whole run.
	StepFixed StepMode = "fixed"
	// StepVariable recomputes the increment every step and shrinks it when the
	// model discards a step. Requires a model that can handle variable steps.
	StepVariable StepMode = "variable"
)

type Config struct {
	StartTime    float64
	StopTime     float64
	HasStopTime  bool
	Steps        int
	Tolerance    float64
	HasTolerance bool
	LogLevel     dynamo.LogLevel
	Interactive  bool
	StepMode     StepMode
	MaxRetries   int
	MinStep      float64
	// WarningsProceed keeps the step loop going when doStep, getValues or
	// setValues return Warning. Initialize always proceeds on Warning.
	WarningsProceed bool
}

func DefaultConfig() Config {
	return Config{
		StartTime:   0,
		StopTime:    10,
		HasStopTime: true,
		Steps:       100,
		LogLevel:    dynamo.LogInfo,
		StepMode:    StepFixed,
		MaxRetries:  8,
		MinStep:     1e-9,
	}
}

// Reporter receives the observable values of every row. It is purely
// observational: its failures never change how the model is driven.
type Reporter interface {
	Header(names []string) error
	Row(t float64, values []dynamo.Value) error
}

type nopReporter struct{}

func (nopReporter) Header([]string) error             { return nil }
func (nopReporter) Row(float64, []dynamo.Value) error { return nil }

// Phase is a lifecycle state of the driver.
type Phase int

const (
	PhaseLoaded Phase = iota
	PhaseDescribed
	PhaseInitialized
	PhaseStepping
	PhaseTerminated
)

var phaseNames = [...]string{"loaded", "described", "initialized", "stepping", "terminated"}

func (p Phase) String() string {
	if p < PhaseLoaded || p > PhaseTerminated {
		return "unknown"
	}
	return phaseNames[p]
}

// Result summarizes a run. It is returned even when the run halts early.
type Result struct {
	Model        string
	Names        []string
	Rows         int
	Steps        int
	Retries      int
	Warnings     int
	ReportErrors int
	StartTime    float64
	EndTime      float64
	StepMode     StepMode
	Status       dynamo.Status
}
