package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/wasmsim/internal/storage"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCommand builds a command with the run flags and resets the shared
// flag variables afterwards.
func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	t.Chdir(t.TempDir())
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "")
	cmd.Flags().BoolVar(&save, "save", false, "")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "")
	cmd.Flags().StringVar(&dataDir, "data", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		configFile, preset, dataDir = "", "", ""
		setValues = nil
	})
	return cmd
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stop_time: 5\nsteps: 50\nstep_mode: variable\n"), 0644))
	t.Setenv("WASMSIM_STEPS", "70")

	cmd := newTestCommand(t, "--preset", "lorenz", "--config", path, "--stop", "3")
	cfg, err := loadConfig(cmd, nil)
	require.NoError(t, err)

	assert.Equal(t, "builtin:lorenz", cfg.Model, "preset")
	assert.Equal(t, "variable", cfg.StepMode, "file over preset")
	assert.Equal(t, 70, cfg.Steps, "env over file")
	assert.Equal(t, 3.0, cfg.StopTime, "flag over everything")
}

func TestLoadConfigModelArgument(t *testing.T) {
	cmd := newTestCommand(t, "--data", "elsewhere")
	cfg, err := loadConfig(cmd, []string{"builtin:echo"})
	require.NoError(t, err)
	assert.Equal(t, "builtin:echo", cfg.Model)
	assert.Equal(t, "elsewhere", cfg.Output.StoreDir)
}

func TestLoadConfigUnknownPreset(t *testing.T) {
	cmd := newTestCommand(t, "--preset", "nope")
	_, err := loadConfig(cmd, nil)
	assert.ErrorContains(t, err, "unknown preset")
}

func TestParseSet(t *testing.T) {
	set, err := parseSet([]string{"theta1=0.5", "label=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"theta1": "0.5", "label": "a=b"}, set)

	_, err = parseSet([]string{"novalue"})
	assert.Error(t, err)

	set, err = parseSet(nil)
	require.NoError(t, err)
	assert.Nil(t, set)
}

func TestRunSavesToStore(t *testing.T) {
	dir := t.TempDir()
	cmd := newTestCommand(t, "--format", "none", "--save", "--data", dir,
		"--stop", "1", "--steps", "10", "--set", "int_in=3")
	require.NoError(t, runModel(cmd, []string{"builtin:echo"}))

	runs, err := storage.New(dir).List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "builtin:echo", runs[0].Model)
	assert.Equal(t, "OK", runs[0].Status)
	assert.Equal(t, 11, runs[0].Rows)

	series, err := storage.New(dir).LoadSeries(runs[0].ID)
	require.NoError(t, err)
	col, err := series.Column("int_out")
	require.NoError(t, err)
	assert.Equal(t, 3.0, col[len(col)-1])
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	cmd := newTestCommand(t, "--format", "xml")
	err := runModel(cmd, []string{"builtin:echo"})
	assert.ErrorContains(t, err, "unknown output format")
}

func TestPortraitSection(t *testing.T) {
	rows := "t,theta,omega\n0,-1,0\n1,1,10\n2,-1,0\n3,1,20\n"
	series, err := storage.ReadSeries(strings.NewReader(rows))
	require.NoError(t, err)

	full, err := portrait(series, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "theta", full.XName)
	assert.Len(t, full.Points, 4)

	sec, err := portrait(series, "omega", "theta", "theta=0")
	require.NoError(t, err)
	assert.Equal(t, "omega", sec.XName)
	assert.Equal(t, "theta", sec.YName)
	require.Len(t, sec.Points, 2, "two upward crossings of theta=0")
	assert.Equal(t, 5.0, sec.Points[0].X)
	assert.Equal(t, 10.0, sec.Points[1].X)

	_, err = portrait(series, "", "", "theta")
	assert.ErrorContains(t, err, "want column=threshold")
	_, err = portrait(series, "", "", "ghost=0")
	assert.ErrorContains(t, err, "unknown column")
}
