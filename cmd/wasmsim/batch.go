package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/wasmsim/internal/automation"
	"github.com/san-kum/wasmsim/internal/config"
	"github.com/san-kum/wasmsim/internal/optim"
	"github.com/spf13/cobra"
)

func sweepModel(cmd *cobra.Command, args []string) error {
	if len(axes) == 0 {
		return errors.New("sweep needs at least one --axis")
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	base, err := runConfig(cfg)
	if err != nil {
		return err
	}

	var params []string
	var ranges [][]float64
	for _, a := range axes {
		name, values, err := optim.ParseAxis(a)
		if err != nil {
			return err
		}
		params = append(params, name)
		ranges = append(ranges, values)
	}
	grid := optim.NewGridSearch(params, ranges)
	logger.Info().Int("points", grid.Size()).Str("metric", metric).Msg("starting sweep")

	best, all, err := newExperiment(cfg).Sweep(cmd.Context(), base, grid, metric)
	printPoints(params, all)
	if err != nil {
		return err
	}
	fmt.Printf("\nbest %s = %.6g at %s\n", metric, best.Value, formatParams(params, best.Params))
	return nil
}

func printPoints(params []string, points []optim.Point) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(params, "\t"))+"\tVALUE")
	for _, p := range points {
		cells := make([]string, 0, len(params)+1)
		for _, name := range params {
			cells = append(cells, strconv.FormatFloat(p.Params[name], 'g', 6, 64))
		}
		if p.Err != nil {
			cells = append(cells, "failed: "+p.Err.Error())
		} else {
			cells = append(cells, strconv.FormatFloat(p.Value, 'g', 6, 64))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
}

func formatParams(params []string, values map[string]float64) string {
	parts := make([]string, len(params))
	for i, name := range params {
		parts[i] = fmt.Sprintf("%s=%g", name, values[name])
	}
	return strings.Join(parts, " ")
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if sc.Description != "" {
		fmt.Printf("%s: %s\n\n", sc.Name, sc.Description)
	}

	results, runErr := automation.RunScenario(cmd.Context(), sc, newExperiment(cfg), logger)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tSTEPS\tEND\tSAVED AS")
	for _, r := range results {
		status, stepsDone, end := "-", 0, 0.0
		if r.Result != nil {
			status, stepsDone, end = r.Result.Status.String(), r.Result.Steps, r.Result.EndTime
		}
		if r.Err != nil && r.Result == nil {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%g\t%s\n", r.Name, status, stepsDone, end, r.RunID)
	}
	if err := w.Flush(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func monteCarlo(cmd *cobra.Command, args []string) error {
	if len(perturbed) == 0 {
		return errors.New("montecarlo needs at least one --vary name=center")
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	base, err := runConfig(cfg)
	if err != nil {
		return err
	}

	vars := make(map[string]float64, len(perturbed))
	for _, pair := range perturbed {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return fmt.Errorf("--vary %q: want name=center", pair)
		}
		center, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("--vary %q: %w", pair, err)
		}
		vars[name] = center
	}

	results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
		Base:         base,
		Vars:         vars,
		Perturbation: perturb,
		NumTrials:    trials,
		Seed:         seed,
		Bound:        bound,
	}, newExperiment(cfg), logger)
	if err != nil && len(results) == 0 {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("model: %s\n", cfg.Model)
	fmt.Printf("trials: %d, stable: %d, diverged or halted: %d\n", len(results), stable, unstable)
	for _, r := range results {
		switch {
		case r.Err != nil:
			logger.Debug().Int("trial", r.TrialID).Err(r.Err).Msg("trial halted")
		case !r.Stable:
			logger.Debug().Int("trial", r.TrialID).Float64("in_bounds", r.InBounds).Msg("trial left the bound")
		}
	}
	return err
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func presetNames() string {
	return strings.Join(config.ListPresets(), ", ")
}
