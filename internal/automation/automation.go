// Package automation runs scripted sequences of runs.
package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/config"
	"github.com/san-kum/wasmsim/internal/experiment"
	"github.com/san-kum/wasmsim/internal/metrics"
	"github.com/san-kum/wasmsim/internal/sim"
)

// Scenario is a named list of runs executed in order.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Runs        []ScenarioStep `yaml:"runs"`
}

// ScenarioStep starts from a preset (or the defaults) and overrides what it names.
type ScenarioStep struct {
	Name     string            `yaml:"name"`
	Preset   string            `yaml:"preset"`
	Model    string            `yaml:"model"`
	StopTime float64           `yaml:"stop_time"`
	Steps    int               `yaml:"steps"`
	StepMode string            `yaml:"step_mode"`
	Set      map[string]string `yaml:"set"`
	Save     bool              `yaml:"save"`
	// ContinueOnError keeps the scenario going when this run halts.
	ContinueOnError bool `yaml:"continue_on_error"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Runs) == 0 {
		return nil, fmt.Errorf("scenario %s has no runs", path)
	}
	return &scenario, nil
}

// Config builds the run configuration of a step.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		if cfg = config.GetPreset(s.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %q", s.Preset)
		}
	}
	if s.Model != "" {
		cfg.Model = s.Model
	}
	if s.StopTime != 0 {
		cfg.StopTime = s.StopTime
	}
	if s.Steps != 0 {
		cfg.Steps = s.Steps
	}
	if s.StepMode != "" {
		cfg.StepMode = s.StepMode
	}
	return cfg, nil
}

type StepResult struct {
	Name    string
	RunID   string
	Result  *sim.Result
	Metrics map[string]float64
	Err     error
}

// RunScenario executes every step in order. It stops at the first halted run
// unless that step allows continuing; results gathered so far are returned.
func RunScenario(ctx context.Context, scenario *Scenario, exp *experiment.Experiment, logger zerolog.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Runs))

	for i, step := range scenario.Runs {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("run-%d", i+1)
		}
		logger.Info().Str("scenario", scenario.Name).Str("run", name).
			Int("index", i+1).Int("total", len(scenario.Runs)).Msg("starting run")

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("run %s: %w", name, err)
		}
		simCfg, err := cfg.Sim()
		if err != nil {
			return results, fmt.Errorf("run %s: %w", name, err)
		}

		out, err := exp.Run(ctx, experiment.Config{
			Model: cfg.Model,
			Sim:   simCfg,
			Set:   step.Set,
			Save:  step.Save,
		})
		res := StepResult{Name: name, Err: err}
		if out != nil {
			res.RunID = out.RunID
			res.Result = out.Result
			res.Metrics = out.Metrics
		}
		results = append(results, res)

		if err != nil {
			if step.ContinueOnError && ctx.Err() == nil {
				logger.Warn().Err(err).Str("run", name).Msg("run halted, continuing")
				continue
			}
			return results, fmt.Errorf("run %s: %w", name, err)
		}
	}
	return results, nil
}

// MonteCarloConfig perturbs real start values uniformly by +-Perturbation.
type MonteCarloConfig struct {
	Base         experiment.Config
	Vars         map[string]float64
	Perturbation float64
	NumTrials    int
	Seed         int64
	// Bound is the magnitude above which any reported value counts as diverged.
	Bound float64
}

type MonteCarloResult struct {
	TrialID int
	Start   map[string]float64
	Final   map[string]float64
	// InBounds is the smallest per-column fraction of rows within the bound.
	InBounds float64
	Stable   bool
	Err      error
}

// RunMonteCarlo executes the trials sequentially. A trial that halts is
// recorded as unstable; only context cancellation aborts the batch.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, exp *experiment.Experiment, logger zerolog.Logger) ([]MonteCarloResult, error) {
	if cfg.NumTrials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", cfg.NumTrials)
	}
	bound := cfg.Bound
	if bound <= 0 {
		bound = 1e6
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	names := make([]string, 0, len(cfg.Vars))
	for name := range cfg.Vars {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]MonteCarloResult, 0, cfg.NumTrials)
	for trial := 0; trial < cfg.NumTrials; trial++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		run := cfg.Base
		run.Save = false
		run.Set = make(map[string]string, len(cfg.Base.Set)+len(names))
		for k, v := range cfg.Base.Set {
			run.Set[k] = v
		}
		start := make(map[string]float64, len(names))
		for _, name := range names {
			v := cfg.Vars[name] + (rng.Float64()-0.5)*2*cfg.Perturbation
			start[name] = v
			run.Set[name] = strconv.FormatFloat(v, 'g', -1, 64)
		}

		guard := metrics.Within(bound)
		run.Reporters = []sim.Reporter{guard}

		res := MonteCarloResult{TrialID: trial, Start: start, InBounds: 1}
		out, err := exp.Run(ctx, run)
		res.Err = err
		for _, frac := range guard.Values() {
			res.InBounds = math.Min(res.InBounds, frac)
		}
		res.Stable = err == nil && res.InBounds == 1
		if out != nil && out.Recorder.Len() > 0 {
			rec := out.Recorder
			last := rec.Rows[rec.Len()-1]
			res.Final = make(map[string]float64, len(last))
			for i, v := range last {
				res.Final[rec.Names[i]] = v.Float()
			}
		}
		results = append(results, res)

		if (trial+1)%10 == 0 {
			logger.Info().Int("done", trial+1).Int("total", cfg.NumTrials).Msg("monte carlo progress")
		}
	}
	return results, nil
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
