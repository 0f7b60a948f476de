package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/experiment"
	"github.com/san-kum/wasmsim/internal/sim"
	"github.com/san-kum/wasmsim/internal/storage"
	"github.com/san-kum/wasmsim/internal/wasm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioYAML = `
name: smoke
description: quick checks of the built-in models
runs:
  - name: echo
    preset: echo
    set:
      text_in: scripted
    save: true
  - name: broken
    model: builtin:nope
    continue_on_error: true
  - name: pendulum
    model: builtin:pendulum
    stop_time: 1
    steps: 10
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func newExperiment(t *testing.T) (*experiment.Experiment, *storage.Store) {
	store := storage.New(t.TempDir())
	loader := experiment.Loader{Options: wasm.DefaultOptions(), Logger: zerolog.Nop()}
	return experiment.New(loader, store, zerolog.Nop()), store
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)
	assert.Equal(t, "smoke", sc.Name)
	require.Len(t, sc.Runs, 3)
	assert.Equal(t, "scripted", sc.Runs[0].Set["text_in"])
	assert.True(t, sc.Runs[1].ContinueOnError)

	_, err = LoadScenario(writeScenario(t, "name: empty\n"))
	assert.Error(t, err)
	_, err = LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestStepConfig(t *testing.T) {
	cfg, err := ScenarioStep{Preset: "echo", Steps: 3, StepMode: "variable"}.Config()
	require.NoError(t, err)
	assert.Equal(t, "builtin:echo", cfg.Model)
	assert.Equal(t, 3, cfg.Steps)
	assert.Equal(t, "variable", cfg.StepMode)

	_, err = ScenarioStep{Preset: "nope"}.Config()
	assert.Error(t, err)
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)
	exp, store := newExperiment(t)

	results, err := RunScenario(context.Background(), sc, exp, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].RunID)
	assert.Error(t, results[1].Err)
	assert.Equal(t, 10, results[2].Result.Steps)

	runs, err := store.List()
	require.NoError(t, err)
	assert.Len(t, runs, 1, "only the echo run asks to be saved")
}

func TestRunScenarioStopsOnError(t *testing.T) {
	sc := &Scenario{Name: "strict", Runs: []ScenarioStep{
		{Name: "bad", Model: "builtin:nope"},
		{Name: "never", Preset: "echo"},
	}}
	exp, _ := newExperiment(t)
	results, err := RunScenario(context.Background(), sc, exp, zerolog.Nop())
	assert.ErrorContains(t, err, "run bad")
	assert.Len(t, results, 1)
}

func TestRunMonteCarlo(t *testing.T) {
	exp, _ := newExperiment(t)
	base := sim.DefaultConfig()
	base.Steps = 5
	base.StopTime = 1

	cfg := &MonteCarloConfig{
		Base:         experiment.Config{Model: "builtin:echo", Sim: base},
		Vars:         map[string]float64{"real_in": 10},
		Perturbation: 0.5,
		NumTrials:    6,
		Seed:         7,
		Bound:        100,
	}
	results, err := RunMonteCarlo(context.Background(), cfg, exp, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.InDelta(t, 10, r.Start["real_in"], 0.5)
		assert.Equal(t, r.Start["real_in"], r.Final["real_out"])
		assert.Equal(t, 1.0, r.InBounds)
	}
	stable, unstable := MonteCarloStats(results)
	assert.Equal(t, 6, stable)
	assert.Zero(t, unstable)

	cfg.Bound = 5
	results, err = RunMonteCarlo(context.Background(), cfg, exp, zerolog.Nop())
	require.NoError(t, err)
	_, unstable = MonteCarloStats(results)
	assert.Equal(t, 6, unstable, "outputs near 10 exceed a bound of 5")
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Less(t, r.InBounds, 1.0)
	}
}

func TestRunMonteCarloRejectsNoTrials(t *testing.T) {
	exp, _ := newExperiment(t)
	_, err := RunMonteCarlo(context.Background(), &MonteCarloConfig{}, exp, zerolog.Nop())
	assert.Error(t, err)
}
