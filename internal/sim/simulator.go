package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/dynamo"
)

// Driver runs one loaded model through describe, initialize and the step loop.
// Every model call is made from the calling goroutine, one at a time.
type Driver struct {
	model    dynamo.Model
	reporter Reporter
	logger   zerolog.Logger

	phase  Phase
	failed bool
	closed bool
	desc   *dynamo.ModelDescription
	cfg    Config
}

type Option func(*Driver)

func WithReporter(r Reporter) Option {
	return func(d *Driver) { d.reporter = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

func New(model dynamo.Model, opts ...Option) *Driver {
	d := &Driver{
		model:    model,
		reporter: nopReporter{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Phase() Phase { return d.phase }

// Description returns the catalog obtained by Describe, or nil before it.
func (d *Driver) Description() *dynamo.ModelDescription { return d.desc }

func (d *Driver) enter(from, to Phase) error {
	if d.failed {
		return dynamo.ErrModelFailed
	}
	if d.phase != from {
		return fmt.Errorf("%w: %s -> %s from %s", dynamo.ErrInvalidTransition, from, to, d.phase)
	}
	d.phase = to
	return nil
}

// halt terminates the run. Fatal outcomes also forbid further model calls.
func (d *Driver) halt(status dynamo.Status) {
	d.phase = PhaseTerminated
	if status == dynamo.StatusFatal {
		d.failed = true
	}
}

// outcome turns a model call result into the driver's reaction. A nil return
// means the caller may proceed.
func (d *Driver) outcome(op string, status dynamo.Status, callErr error) error {
	if callErr != nil {
		d.halt(dynamo.StatusFatal)
		return fmt.Errorf("%w: %w", &dynamo.OutcomeError{Op: op, Status: dynamo.StatusFatal}, callErr)
	}
	if !status.Valid() {
		d.halt(dynamo.StatusFatal)
		return fmt.Errorf("%w: unknown status code %d", &dynamo.OutcomeError{Op: op, Status: dynamo.StatusFatal}, int(status))
	}
	if status.Proceed() {
		if status == dynamo.StatusWarning {
			d.logger.Warn().Str("op", op).Msg("model returned warning")
		}
		return nil
	}
	d.halt(status)
	return &dynamo.OutcomeError{Op: op, Status: status}
}

// Describe requests the model description exactly once. Any failure is fatal.
func (d *Driver) Describe(ctx context.Context) (*dynamo.ModelDescription, error) {
	if err := d.enter(PhaseLoaded, PhaseDescribed); err != nil {
		return nil, err
	}

	desc, err := d.model.Describe(ctx)
	if err == nil && desc == nil {
		err = errors.New("empty model description")
	}
	if err == nil {
		err = desc.Validate()
	}
	if err != nil {
		return nil, d.outcome("getModelDescription", dynamo.StatusFatal, err)
	}

	d.desc = desc
	caps := desc.Model.Capabilities
	d.logger.Info().
		Str("id", desc.Model.ID).
		Str("name", desc.Model.Name).
		Str("tool", desc.Model.GenerationTool).
		Int("variables", len(desc.Variables)).
		Bool("variable_step", caps.CanHandleVariableStepSize).
		Bool("interpolate_inputs", caps.CanInterpolateInputs).
		Bool("reset_step", caps.CanResetStep).
		Msg("model described")
	return desc, nil
}

// Initialize passes every declared default to the model. OK and Warning allow
// progression; anything else aborts.
func (d *Driver) Initialize(ctx context.Context, cfg Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if err := d.enter(PhaseDescribed, PhaseInitialized); err != nil {
		return err
	}
	d.cfg = cfg

	defaults, err := d.desc.Defaults()
	if err != nil {
		d.halt(dynamo.StatusFatal)
		return fmt.Errorf("building initial values: %w", err)
	}

	status, err := d.model.Initialize(ctx, dynamo.InitRequest{
		Values:       defaults,
		StartTime:    cfg.StartTime,
		HasStopTime:  cfg.HasStopTime,
		StopTime:     cfg.StopTime,
		HasTolerance: cfg.HasTolerance,
		Tolerance:    cfg.Tolerance,
		LogLevel:     cfg.LogLevel,
		Interactive:  cfg.Interactive,
	})
	if err := d.outcome("init", status, err); err != nil {
		return err
	}

	d.logger.Info().
		Int("defaults", defaults.Len()).
		Float64("start", cfg.StartTime).
		Float64("stop", cfg.StopTime).
		Msg("model initialized")
	return nil
}

// Run reads the initial observable values and then drives the step loop for
// the configured number of steps. The returned result is valid even when an
// error halts the run.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if err := d.enter(PhaseInitialized, PhaseStepping); err != nil {
		return nil, err
	}

	observed := d.desc.Observable()
	ids := dynamo.IDs(observed)
	result := &Result{
		Model:     d.desc.Model.Name,
		Names:     dynamo.Names(observed),
		StartTime: d.cfg.StartTime,
		StepMode:  d.cfg.StepMode,
	}

	inputs, err := d.desc.InputDefaults()
	if err != nil {
		d.halt(dynamo.StatusFatal)
		return result, fmt.Errorf("building input values: %w", err)
	}

	if err := d.reporter.Header(result.Names); err != nil {
		d.reportFailed(result, err)
	}

	t, err := d.read(ctx, ids, result)
	if err != nil {
		return result, err
	}
	result.StartTime = t
	result.EndTime = t

	stepper, err := selectStepper(d.desc.Model.Capabilities, d.cfg, t, d.logger)
	if err != nil {
		d.halt(dynamo.StatusError)
		return result, err
	}
	result.StepMode = stepper.Mode()

	for i := 0; i < d.cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			d.halt(dynamo.StatusError)
			return result, ctx.Err()
		default:
		}

		h := stepper.Next(t, d.cfg.Steps-i)
		newT, err := d.step(ctx, t, h, stepper, result)
		if err != nil {
			return result, &SimulationError{Step: i + 1, Time: t, Wrapped: err}
		}

		if _, err := d.read(ctx, ids, result); err != nil {
			return result, &SimulationError{Step: i + 1, Time: newT, Wrapped: err}
		}

		status, err := d.model.SetValues(ctx, inputs)
		if err := d.track(result, "setValues", status, err); err != nil {
			return result, &SimulationError{Step: i + 1, Time: newT, Wrapped: err}
		}

		t = newT
		result.Steps++
		result.EndTime = t
	}

	d.phase = PhaseTerminated
	d.logger.Info().
		Int("steps", result.Steps).
		Int("rows", result.Rows).
		Int("retries", result.Retries).
		Float64("end", result.EndTime).
		Msg("run complete")
	return result, nil
}

// read fetches the observable values and emits one row.
func (d *Driver) read(ctx context.Context, ids []dynamo.VarID, result *Result) (float64, error) {
	res, err := d.model.GetValues(ctx, ids)
	if err := d.track(result, "getValues", res.Status, err); err != nil {
		return 0, err
	}

	if res.Values == nil {
		res.Values = dynamo.NewStore(nil)
	}
	values, err := res.Values.Lookup(ids)
	if err != nil {
		d.halt(dynamo.StatusFatal)
		result.Status = dynamo.StatusFatal
		return 0, fmt.Errorf("getValues: %w", err)
	}

	if err := d.reporter.Row(res.CurrentTime, values); err != nil {
		d.reportFailed(result, err)
	}
	result.Rows++
	return res.CurrentTime, nil
}

// step performs one logical step, retrying with smaller sizes while the model
// discards it and the sizer allows shrinking.
func (d *Driver) step(ctx context.Context, t, h float64, stepper StepSizer, result *Result) (float64, error) {
	for attempt := 0; ; attempt++ {
		resp, err := d.model.Step(ctx, t, h)
		sr := classify(resp, err)

		switch sr.Outcome {
		case StepAccepted:
			if sr.NewTime < t {
				d.halt(dynamo.StatusError)
				result.Status = dynamo.Worse(result.Status, dynamo.StatusError)
				return 0, fmt.Errorf("%w: time moved backwards from %g to %g",
					&dynamo.OutcomeError{Op: "doStep", Status: dynamo.StatusError, Time: t}, t, sr.NewTime)
			}
			if err := d.track(result, "doStep", sr.Status, nil); err != nil {
				return 0, err
			}
			return sr.NewTime, nil

		case StepRejected:
			next, ok := stepper.Shrink(h, sr.Suggested)
			result.Status = dynamo.Worse(result.Status, dynamo.StatusDiscard)
			if !ok || attempt >= d.cfg.MaxRetries {
				d.halt(dynamo.StatusError)
				result.Status = dynamo.Worse(result.Status, dynamo.StatusError)
				oe := &dynamo.OutcomeError{Op: "doStep", Status: dynamo.StatusDiscard, Time: t}
				if ok {
					return 0, fmt.Errorf("%w: gave up after %d retries", oe, attempt)
				}
				if stepper.Mode() == StepVariable {
					return 0, fmt.Errorf("%w: %w (h=%g)", oe, dynamo.ErrStepTooSmall, h)
				}
				return 0, oe
			}
			d.logger.Debug().
				Float64("t", t).
				Float64("rejected", h).
				Float64("retry", next).
				Msg("step discarded, retrying with smaller step")
			result.Retries++
			h = next

		default:
			d.halt(sr.Status)
			result.Status = dynamo.Worse(result.Status, sr.Status)
			if sr.Err != nil {
				return 0, fmt.Errorf("%w: %w", &dynamo.OutcomeError{Op: "doStep", Status: sr.Status, Time: t}, sr.Err)
			}
			return 0, &dynamo.OutcomeError{Op: "doStep", Status: sr.Status, Time: t}
		}
	}
}

// track applies the status reaction of a step loop call and folds the outcome
// into the result. Unless the config says otherwise a Warning halts the loop.
func (d *Driver) track(result *Result, op string, status dynamo.Status, callErr error) error {
	if callErr == nil && status == dynamo.StatusWarning && !d.cfg.WarningsProceed {
		d.logger.Warn().Str("op", op).Msg("model returned warning, halting run")
		d.halt(status)
		result.Warnings++
		result.Status = dynamo.Worse(result.Status, status)
		return &dynamo.OutcomeError{Op: op, Status: status}
	}
	if err := d.outcome(op, status, callErr); err != nil {
		result.Status = dynamo.Worse(result.Status, d.severity(err))
		return err
	}
	result.Status = dynamo.Worse(result.Status, status)
	if status == dynamo.StatusWarning {
		result.Warnings++
	}
	return nil
}

func (d *Driver) severity(err error) dynamo.Status {
	var oe *dynamo.OutcomeError
	if errors.As(err, &oe) {
		return oe.Status
	}
	return dynamo.StatusFatal
}

func (d *Driver) reportFailed(result *Result, err error) {
	result.ReportErrors++
	d.logger.Error().Err(err).Msg("reporter failed")
}

// Close releases the model on every exit path. It is safe to call more than once.
func (d *Driver) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.phase = PhaseTerminated
	return d.model.Close(ctx)
}

func validateConfig(cfg Config) error {
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	if !cfg.HasStopTime {
		return errors.New("a stop time is required to size steps")
	}
	if cfg.StopTime <= cfg.StartTime {
		return fmt.Errorf("stop time %g must be after start time %g", cfg.StopTime, cfg.StartTime)
	}
	if cfg.HasTolerance && cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", cfg.Tolerance)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", cfg.MaxRetries)
	}
	switch cfg.StepMode {
	case StepFixed:
	case StepVariable:
		if cfg.MinStep <= 0 {
			return fmt.Errorf("min step must be positive for variable stepping, got %g", cfg.MinStep)
		}
	default:
		return fmt.Errorf("unknown step mode %q", cfg.StepMode)
	}
	return nil
}

// Execute runs the whole lifecycle and always closes the model.
func Execute(ctx context.Context, model dynamo.Model, cfg Config, opts ...Option) (res *Result, err error) {
	d := New(model, opts...)
	defer func() {
		if cerr := d.Close(ctx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing model: %w", cerr))
		}
	}()

	if _, err := d.Describe(ctx); err != nil {
		return nil, err
	}
	if err := d.Initialize(ctx, cfg); err != nil {
		return nil, err
	}
	return d.Run(ctx)
}
