package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/san-kum/wasmsim/internal/config"
	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/experiment"
	"github.com/san-kum/wasmsim/internal/storage"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string

	startTime   float64
	stopTime    float64
	steps       int
	tolerance   float64
	stepMode    string
	maxRetries  int
	minStep     float64
	interactive bool
	warnGoOn    bool
	memoryPages uint32
	setValues   []string

	format      string
	save        bool
	useMQTT     bool
	useCH       bool
	pace        time.Duration
	columns     []string
	xVar        string
	yVar        string
	section     string
	outFile     string
	spectrumVar string

	axes       []string
	metric     string
	perturbed  []string
	perturb    float64
	trials     int
	seed       int64
	bound      float64
	benchSteps []int

	logger = newLogger(os.Stderr, zerolog.InfoLevel)
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "wasmsim",
		Short:         "co-simulation host for sandboxed wasm models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("log level %q: %w", logLevel, err)
			}
			logger = newLogger(os.Stderr, lvl)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "run store directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "host and model log level: debug, info, warn, error")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a model and report every row",
		Long:  "run a model from start to stop time. model is a wasm artifact path or builtin:<name>.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runModel,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&format, "format", "csv", "row output: csv, table or none")
	runCmd.Flags().BoolVar(&save, "save", false, "store the run")
	runCmd.Flags().BoolVar(&useMQTT, "mqtt", false, "publish rows to the mqtt broker")
	runCmd.Flags().BoolVar(&useCH, "clickhouse", false, "insert rows into clickhouse")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "watch a run in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  liveRun,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().BoolVar(&save, "save", false, "store the run")
	liveCmd.Flags().DurationVar(&pace, "pace", 20*time.Millisecond, "delay between displayed rows")

	describeCmd := &cobra.Command{
		Use:   "describe [model]",
		Short: "print model info and variables",
		Args:  cobra.MaximumNArgs(1),
		RunE:  describeModel,
	}
	addConfigFlags(describeCmd)
	describeCmd.Flags().StringArrayVar(&setValues, "set", nil, "override a start value, name=value (repeatable)")

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "measure step throughput",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchModel,
	}
	addConfigFlags(benchCmd)
	benchCmd.Flags().IntSliceVar(&benchSteps, "steps", []int{100, 1000, 10000}, "step counts to time")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list built-in models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list run presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
	addConfigFlags(listCmd)

	plotCmd := &cobra.Command{
		Use:   "plot [run-id]",
		Short: "plot stored columns in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to plot (default all numeric)")

	phaseCmd := &cobra.Command{
		Use:   "phase [run-id]",
		Short: "phase portrait of two stored columns",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().StringVar(&xVar, "x", "", "x column (default first)")
	phaseCmd.Flags().StringVar(&yVar, "y", "", "y column (default second)")
	phaseCmd.Flags().StringVar(&section, "section", "", "poincare section, column=threshold crossed upward")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run-id]",
		Short: "column statistics and power spectrum",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&spectrumVar, "var", "", "column for the spectrum (default first numeric)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run-id]",
		Short: "export stored rows as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run-id]",
		Short: "export a stored run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run-id]",
		Short: "render stored columns or a phase portrait as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to draw (default all numeric)")
	exportSVGCmd.Flags().StringVar(&xVar, "x", "", "phase portrait x column")
	exportSVGCmd.Flags().StringVar(&yVar, "y", "", "phase portrait y column")
	exportSVGCmd.Flags().StringVar(&section, "section", "", "draw a poincare section, column=threshold")
	for _, c := range []*cobra.Command{exportCSVCmd, exportJSONCmd, exportSVGCmd} {
		c.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")
	}
	for _, c := range []*cobra.Command{plotCmd, phaseCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd} {
		addConfigFlags(c)
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "grid search over start values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepModel,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&axes, "axis", nil, "grid axis, name=lo:hi:n or name=v1,v2 (repeatable)")
	sweepCmd.Flags().StringVar(&metric, "metric", "energy.drift", "metric to minimize")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	addConfigFlags(scenarioCmd)

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "perturb start values and count diverged runs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  monteCarlo,
	}
	addRunFlags(monteCarloCmd)
	monteCarloCmd.Flags().StringArrayVar(&perturbed, "vary", nil, "real start value to perturb, name=center (repeatable)")
	monteCarloCmd.Flags().Float64Var(&perturb, "perturbation", 0.01, "uniform perturbation half width")
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	monteCarloCmd.Flags().Float64Var(&bound, "bound", 1e6, "magnitude counted as diverged")

	rootCmd.AddCommand(runCmd, liveCmd, describeCmd, benchCmd, modelsCmd, presetsCmd,
		listCmd, plotCmd, phaseCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd,
		sweepCmd, scenarioCmd, monteCarloCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func newLogger(out *os.File, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

// reportError names the failing operation and its severity when the run
// halted on a model status.
func reportError(err error) {
	var oe *dynamo.OutcomeError
	if errors.As(err, &oe) {
		logger.Error().
			Str("op", oe.Op).
			Str("severity", oe.Status.String()).
			Float64("t", oe.Time).
			Msg("run halted")
	}
	fmt.Fprintln(os.Stderr, "error:", err)
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "run config file (yaml)")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "start from a named preset: "+presetNames())
}

func addRunFlags(cmd *cobra.Command) {
	addConfigFlags(cmd)
	f := cmd.Flags()
	f.Float64Var(&startTime, "start", 0, "start time")
	f.Float64Var(&stopTime, "stop", config.DefaultStopTime, "stop time")
	f.IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	f.Float64Var(&tolerance, "tolerance", 0, "tolerance passed to the model (0 means unset)")
	f.StringVar(&stepMode, "step-mode", "fixed", "fixed or variable")
	f.IntVar(&maxRetries, "max-retries", config.DefaultMaxRetries, "discarded step retries in variable mode")
	f.Float64Var(&minStep, "min-step", config.DefaultMinStep, "smallest step a retry may shrink to")
	f.BoolVar(&interactive, "interactive", false, "tell the model it runs interactively")
	f.BoolVar(&warnGoOn, "warnings-proceed", false, "keep stepping when the model returns Warning")
	f.Uint32Var(&memoryPages, "memory-pages", config.DefaultMemoryPages, "wasm memory limit in 64 KiB pages")
	f.StringArrayVar(&setValues, "set", nil, "override a start value, name=value (repeatable)")
}

// loadConfig layers defaults, preset, config file, environment and flags, in
// increasing precedence. The model argument wins over everything.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %s)", preset, presetNames())
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.LoadOver(configFile, cfg); err != nil {
			return nil, err
		}
	}
	config.ApplyEnv(cfg, logger)

	flags := cmd.Flags()
	if flags.Changed("start") {
		cfg.StartTime = startTime
	}
	if flags.Changed("stop") {
		cfg.StopTime = stopTime
	}
	if flags.Changed("steps") && flags.Lookup("steps").Value.Type() == "int" {
		cfg.Steps = steps
	}
	if flags.Changed("tolerance") {
		cfg.Tolerance = tolerance
	}
	if flags.Changed("step-mode") {
		cfg.StepMode = stepMode
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = maxRetries
	}
	if flags.Changed("min-step") {
		cfg.MinStep = minStep
	}
	if flags.Changed("interactive") {
		cfg.Interactive = interactive
	}
	if flags.Changed("warnings-proceed") {
		cfg.WarningsProceed = warnGoOn
	}
	if flags.Changed("memory-pages") {
		cfg.Runtime.MemoryPages = memoryPages
	}
	if flags.Changed("format") {
		cfg.Output.Format = format
	}
	if flags.Changed("save") {
		cfg.Output.Save = save
	}
	if flags.Changed("mqtt") {
		cfg.MQTT.Enabled = useMQTT
	}
	if flags.Changed("clickhouse") {
		cfg.ClickHouse.Enabled = useCH
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	} else if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}
	if dataDir != "" {
		cfg.Output.StoreDir = dataDir
	}
	if len(args) > 0 {
		cfg.Model = args[0]
	}
	return cfg, nil
}

// parseSet reads repeated name=value flags.
func parseSet(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	set := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: want name=value", pair)
		}
		set[name] = value
	}
	return set, nil
}

func newExperiment(cfg *config.Config) *experiment.Experiment {
	loader := experiment.Loader{Options: cfg.WasmOptions(), Logger: logger}
	return experiment.New(loader, storage.New(cfg.Output.StoreDir), logger)
}

// runConfig builds the experiment settings shared by the run commands.
func runConfig(cfg *config.Config) (experiment.Config, error) {
	simCfg, err := cfg.Sim()
	if err != nil {
		return experiment.Config{}, err
	}
	set, err := parseSet(setValues)
	if err != nil {
		return experiment.Config{}, err
	}
	return experiment.Config{
		Model: cfg.Model,
		Sim:   simCfg,
		Set:   set,
		Save:  cfg.Output.Save,
	}, nil
}

func openStore(cmd *cobra.Command) (*storage.Store, error) {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.Output.StoreDir), nil
}

func output() (*os.File, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
