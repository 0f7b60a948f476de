// Package experiment runs a model end to end: resolve it, drive it, collect
// metrics and optionally store the run.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/metrics"
	"github.com/san-kum/wasmsim/internal/report"
	"github.com/san-kum/wasmsim/internal/sim"
	"github.com/san-kum/wasmsim/internal/storage"
)

type Config struct {
	Model string
	Sim   sim.Config
	// Set overrides declared start values by variable name.
	Set       map[string]string
	Reporters []sim.Reporter
	Save      bool
}

// Outcome is everything known about a run once it ends. Result is never nil.
type Outcome struct {
	Source   Source
	Result   *sim.Result
	Metrics  map[string]float64
	Recorder *report.Recorder
	RunID    string
}

type Experiment struct {
	loader Loader
	store  *storage.Store
	logger zerolog.Logger
}

// New creates an experiment runner. store may be nil when runs are never saved.
func New(loader Loader, store *storage.Store, logger zerolog.Logger) *Experiment {
	return &Experiment{loader: loader, store: store, logger: logger}
}

// Run executes one run. The outcome is returned together with any error that
// halted the run.
func (e *Experiment) Run(ctx context.Context, cfg Config) (*Outcome, error) {
	model, src, err := e.loader.Open(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	return e.RunModel(ctx, WithStartValues(model, cfg.Set), src, cfg)
}

// RunModel is Run for a model that is already loaded. The model is always closed.
func (e *Experiment) RunModel(ctx context.Context, model dynamo.Model, src Source, cfg Config) (*Outcome, error) {
	out := &Outcome{
		Source:   src,
		Recorder: report.NewRecorder(),
	}
	collector := metrics.Standard()
	reporters := append(report.Multi{out.Recorder, collector}, cfg.Reporters...)

	logger := e.logger.With().Str("model", src.Ref).Logger()
	res, runErr := sim.Execute(ctx, model, cfg.Sim, sim.WithReporter(reporters), sim.WithLogger(logger))
	if res == nil {
		res = &sim.Result{
			Model:     src.Ref,
			StartTime: cfg.Sim.StartTime,
			EndTime:   cfg.Sim.StartTime,
			StepMode:  cfg.Sim.StepMode,
			Status:    statusOf(runErr),
		}
	}
	out.Result = res
	out.Metrics = collector.Values()

	if cfg.Save && e.store != nil && out.Recorder.Len() > 0 {
		id, err := e.store.Save(metadata(src, cfg.Sim, res, out.Metrics, runErr), out.Recorder)
		if err != nil {
			return out, errors.Join(runErr, fmt.Errorf("saving run: %w", err))
		}
		out.RunID = id
		logger.Info().Str("run", id).Msg("run saved")
	}
	return out, runErr
}

func statusOf(err error) dynamo.Status {
	var oe *dynamo.OutcomeError
	switch {
	case err == nil:
		return dynamo.StatusOK
	case errors.As(err, &oe):
		return oe.Status
	}
	return dynamo.StatusFatal
}

func metadata(src Source, cfg sim.Config, res *sim.Result, m map[string]float64, runErr error) storage.RunMetadata {
	meta := storage.RunMetadata{
		Model:     src.Ref,
		ModelID:   res.Model,
		Artifact:  src.Artifact,
		Checksum:  src.Checksum,
		StartTime: cfg.StartTime,
		StopTime:  cfg.StopTime,
		Steps:     cfg.Steps,
		StepMode:  string(res.StepMode),
		Status:    res.Status.String(),
		Retries:   res.Retries,
		Warnings:  res.Warnings,
		EndTime:   res.EndTime,
		Metrics:   make(map[string]float64, len(m)),
	}
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			meta.Metrics[k] = v
		}
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}
	return meta
}
