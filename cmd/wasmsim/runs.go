package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/wasmsim/internal/analysis"
	"github.com/san-kum/wasmsim/internal/export"
	"github.com/san-kum/wasmsim/internal/storage"
	"github.com/spf13/cobra"
)

const maxPlotted = 6

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIMESTAMP\tSTATUS\tMODE\tROWS\tEND")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%g\n",
			r.ID, r.Model, r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Status, r.StepMode, r.Rows, r.EndTime)
	}
	return w.Flush()
}

// loadRun reads the metadata and rows of a stored run.
func loadRun(cmd *cobra.Command, runID string) (*storage.RunMetadata, *storage.Series, error) {
	st, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return nil, nil, err
	}
	if series.Len() == 0 {
		return nil, nil, fmt.Errorf("run %s has no rows", runID)
	}
	return meta, series, nil
}

// numericColumns returns the requested columns, or every column holding at
// least one number.
func numericColumns(series *storage.Series, requested []string) (map[string][]float64, []string, error) {
	names := requested
	if len(names) == 0 {
		names = series.Names
	}
	cols := make(map[string][]float64, len(names))
	var kept []string
	for _, name := range names {
		col, err := series.Column(name)
		if err != nil {
			return nil, nil, err
		}
		if len(requested) == 0 && analysis.Summarize(col).Skipped == len(col) {
			continue
		}
		cols[name] = col
		kept = append(kept, name)
	}
	if len(kept) == 0 {
		return nil, nil, errors.New("no numeric columns")
	}
	return cols, kept, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	cols, names, err := numericColumns(series, columns)
	if err != nil {
		return err
	}
	if len(names) > maxPlotted {
		logger.Info().Int("columns", len(names)).Msgf("plotting the first %d columns", maxPlotted)
		names = names[:maxPlotted]
	}

	fmt.Printf("run: %s\nmodel: %s\nstatus: %s\n\n", meta.ID, meta.Model, meta.Status)
	for _, name := range names {
		data := finite(cols[name])
		if len(data) == 0 {
			continue
		}
		caption := fmt.Sprintf("%s over t = %g..%g", name, series.Times[0], series.Times[series.Len()-1])
		fmt.Println(asciigraph.Plot(data, asciigraph.Height(10), asciigraph.Width(80), asciigraph.Caption(caption)))
		fmt.Println()
	}
	return nil
}

func finite(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// portrait picks the phase axes, defaulting to the first two numeric columns.
// A section of the form col=threshold keeps only the points where col crosses
// threshold upward.
func portrait(series *storage.Series, x, y, section string) (*analysis.PhasePortrait, error) {
	if x == "" || y == "" {
		_, names, err := numericColumns(series, nil)
		if err != nil {
			return nil, err
		}
		if len(names) < 2 {
			return nil, errors.New("phase portrait needs two numeric columns")
		}
		if x == "" {
			x = names[0]
		}
		if y == "" {
			y = names[1]
		}
	}
	xs, err := series.Column(x)
	if err != nil {
		return nil, err
	}
	ys, err := series.Column(y)
	if err != nil {
		return nil, err
	}
	if section == "" {
		return analysis.NewPhasePortrait(x, xs, y, ys)
	}

	name, threshold, err := parseSection(section)
	if err != nil {
		return nil, err
	}
	cross, err := series.Column(name)
	if err != nil {
		return nil, err
	}
	p, err := analysis.NewPoincareSection(cross, xs, ys, threshold)
	if err != nil {
		return nil, err
	}
	p.XName, p.YName = x, y
	return p, nil
}

func parseSection(section string) (string, float64, error) {
	name, value, ok := strings.Cut(section, "=")
	if !ok || name == "" {
		return "", 0, fmt.Errorf("--section %q: want column=threshold", section)
	}
	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "", 0, fmt.Errorf("--section %q: %w", section, err)
	}
	return name, threshold, nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	p, err := portrait(series, xVar, yVar, section)
	if err != nil {
		return err
	}

	fmt.Printf("phase space plot: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("x-axis: %s, y-axis: %s\n", p.XName, p.YName)
	if section != "" {
		fmt.Printf("section: %s, %d crossings\n", section, len(p.Points))
		if len(p.Points) == 0 {
			return nil
		}
	}
	fmt.Println()
	fmt.Println(p.ASCII(70, 20))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	cols, names, err := numericColumns(series, nil)
	if err != nil {
		return err
	}

	fmt.Printf("analysis of run: %s\n", meta.ID)
	fmt.Printf("model: %s, status: %s, rows: %d\n\n", meta.Model, meta.Status, series.Len())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tMIN\tMAX\tMEAN\tRMS\tFINAL")
	for _, name := range names {
		s := analysis.Summarize(cols[name])
		fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\n", name, s.Min, s.Max, s.Mean, s.RMS, s.Final)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(meta.Metrics) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "METRIC\tVALUE")
		for _, name := range sortedKeys(meta.Metrics) {
			fmt.Fprintf(w, "%s\t%.6g\n", name, meta.Metrics[name])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	target := spectrumVar
	if target == "" {
		target = names[0]
	}
	col, err := series.Column(target)
	if err != nil {
		return err
	}
	dt, ok := analysis.Uniform(series.Times, 1e-6)
	if !ok {
		fmt.Println("\nrow times are not uniformly spaced, skipping spectrum")
		return nil
	}
	ps, err := analysis.PowerSpectrum(col, dt)
	if err != nil {
		fmt.Printf("\nno spectrum for %s: %v\n", target, err)
		return nil
	}

	fmt.Printf("\nspectrum of %s\n", target)
	if f := ps.DominantFrequency(); f > 0 {
		fmt.Printf("dominant frequency: %.3f hz\n", f)
		fmt.Printf("period: %.3f s\n", 1/f)
	}
	if len(ps.Power) > 2 {
		fmt.Println(asciigraph.Plot(ps.Power[1:], asciigraph.Height(8), asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("power, 0..%.3g hz", ps.Freqs[len(ps.Freqs)-1]))))
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	out, done, err := output()
	if err != nil {
		return err
	}
	return errors.Join(st.ExportCSV(out, args[0]), done())
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, series, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	out, done, err := output()
	if err != nil {
		return err
	}
	return errors.Join(storage.ExportJSON(out, meta, series), done())
}

func exportSVG(cmd *cobra.Command, args []string) error {
	_, series, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}

	var svg string
	if xVar != "" || yVar != "" || section != "" {
		p, err := portrait(series, xVar, yVar, section)
		if err != nil {
			return err
		}
		if svg, err = export.PortraitSVG(p, 600, 600, "#00d4aa"); err != nil {
			return err
		}
	} else {
		cols, names, err := numericColumns(series, columns)
		if err != nil {
			return err
		}
		lines := make([]export.Line, 0, len(names))
		for _, name := range names {
			lines = append(lines, export.Line{Name: name, Values: cols[name]})
		}
		if svg, err = export.TimeSeriesSVG(series.Times, lines, 800, 400); err != nil {
			return err
		}
	}

	out, done, err := output()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, svg)
	return errors.Join(err, done())
}
