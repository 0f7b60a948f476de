package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/san-kum/wasmsim/internal/config"
	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/experiment"
	"github.com/san-kum/wasmsim/internal/models"
	"github.com/san-kum/wasmsim/internal/report"
	"github.com/san-kum/wasmsim/internal/sim"
	"github.com/san-kum/wasmsim/internal/tui"
	"github.com/spf13/cobra"
)

func runModel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	runCfg, err := runConfig(cfg)
	if err != nil {
		return err
	}

	sinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	for _, s := range sinks {
		runCfg.Reporters = append(runCfg.Reporters, s)
	}

	out, runErr := newExperiment(cfg).Run(ctx, runCfg)
	closeErr := sinks.Close()
	if closeErr != nil {
		logger.Warn().Err(closeErr).Msg("closing reporters")
	}
	if out != nil {
		logSummary(out)
	}
	return runErr
}

// openSinks builds the reporters selected by the config. Sinks already opened
// are closed when a later one fails.
func openSinks(ctx context.Context, cfg *config.Config) (report.Multi, error) {
	var sinks report.Multi
	fail := func(err error) (report.Multi, error) {
		return nil, errors.Join(err, sinks.Close())
	}

	switch cfg.Output.Format {
	case "csv":
		sinks = append(sinks, report.NewCSV(os.Stdout))
	case "table":
		sinks = append(sinks, report.NewTable(os.Stdout))
	case "none", "":
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Output.Format)
	}

	if cfg.MQTT.Enabled {
		m, err := report.DialMQTT(cfg.MQTTReporter(), cfg.Model, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, m)
	}
	if cfg.ClickHouse.Enabled {
		runID := fmt.Sprintf("%s-%d", cfg.Model, time.Now().UnixNano())
		ch, err := report.DialClickHouse(ctx, cfg.ClickHouseReporter(), runID, cfg.Model, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, ch)
	}
	return sinks, nil
}

func logSummary(out *experiment.Outcome) {
	res := out.Result
	ev := logger.Info().
		Str("model", res.Model).
		Str("status", res.Status.String()).
		Int("rows", out.Recorder.Len()).
		Int("steps", res.Steps).
		Int("retries", res.Retries).
		Int("warnings", res.Warnings).
		Float64("end_time", res.EndTime).
		Str("step_mode", string(res.StepMode))
	if res.ReportErrors > 0 {
		ev = ev.Int("report_errors", res.ReportErrors)
	}
	if out.RunID != "" {
		ev = ev.Str("run", out.RunID)
	}
	ev.Msg("run finished")
}

func liveRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	runCfg, err := runConfig(cfg)
	if err != nil {
		return err
	}
	exp := newExperiment(cfg)

	var outcome *experiment.Outcome
	_, err = tui.Run(cmd.Context(), cfg.Model, cfg.StartTime, cfg.StopTime, pace,
		func(ctx context.Context, feed *tui.Feed) (sim.Result, error) {
			c := runCfg
			c.Reporters = []sim.Reporter{feed}
			out, err := exp.Run(ctx, c)
			if out == nil {
				return sim.Result{Model: cfg.Model}, err
			}
			outcome = out
			return *out.Result, err
		})
	if outcome != nil {
		logSummary(outcome)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func describeModel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	set, err := parseSet(setValues)
	if err != nil {
		return err
	}

	loader := experiment.Loader{Options: cfg.WasmOptions(), Logger: logger}
	model, src, err := loader.Open(ctx, cfg.Model)
	if err != nil {
		return err
	}
	driver := sim.New(experiment.WithStartValues(model, set), sim.WithLogger(logger))
	defer driver.Close(ctx)

	desc, err := driver.Describe(ctx)
	if err != nil {
		return err
	}
	if src.Checksum != "" {
		fmt.Printf("artifact %s (sha256 %s)\n\n", src.Artifact, src.Checksum)
	}
	fmt.Println(report.Describe(desc))
	return nil
}

func benchModel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	runCfg, err := runConfig(cfg)
	if err != nil {
		return err
	}
	runCfg.Save = false
	exp := newExperiment(cfg)

	fmt.Printf("benchmarking %s over %g..%g s\n\n", cfg.Model, cfg.StartTime, cfg.StopTime)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEPS\tRETRIES\tTIME\tSTEPS/SEC\tSTATUS")
	for _, n := range benchSteps {
		c := runCfg
		c.Sim.Steps = n
		start := time.Now()
		out, err := exp.Run(ctx, c)
		elapsed := time.Since(start)
		if out == nil {
			return err
		}
		res := out.Result
		fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\t%s\n",
			res.Steps, res.Retries, elapsed.Round(time.Microsecond),
			float64(res.Steps)/elapsed.Seconds(), res.Status)
		if err != nil && ctx.Err() != nil {
			break
		}
	}
	return w.Flush()
}

func listModels(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tDESCRIPTION\tVARIABLE STEP\tOBSERVABLE")
	for _, name := range models.Names() {
		m, err := models.Lookup(name)
		if err != nil {
			return err
		}
		desc, err := m.Describe(ctx)
		m.Close(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		caps := "no"
		if desc.Model.Capabilities.CanHandleVariableStepSize {
			caps = "yes"
		}
		observable := dynamo.Names(desc.Observable())
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", models.Scheme, name, desc.Model.Description, caps, strings.Join(observable, ","))
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	names := config.ListPresets()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tMODEL\tSTOP\tSTEPS\tMODE")
	for _, name := range names {
		cfg := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%g\t%d\t%s\n", name, cfg.Model, cfg.StopTime, cfg.Steps, cfg.StepMode)
	}
	return w.Flush()
}
