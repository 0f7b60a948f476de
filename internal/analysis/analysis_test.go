package analysis

import (
	"math"
	"strings"
	"testing"
)

func sine(freq, dt float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 3 + math.Sin(2*math.Pi*freq*float64(i)*dt)
	}
	return out
}

func TestPowerSpectrumFindsFrequency(t *testing.T) {
	ps, err := PowerSpectrum(sine(2, 0.01, 500), 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps.Freqs) != 251 {
		t.Fatalf("expected 251 bins, got %d", len(ps.Freqs))
	}
	if got := ps.DominantFrequency(); math.Abs(got-2) > 1e-9 {
		t.Errorf("expected 2 Hz, got %f", got)
	}
	if ps.Power[0] > 1e-9 {
		t.Errorf("mean should be removed, DC power %g", ps.Power[0])
	}
}

func TestPowerSpectrumRejects(t *testing.T) {
	if _, err := PowerSpectrum([]float64{1}, 0.1); err != ErrTooShort {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
	if _, err := PowerSpectrum([]float64{1, 2}, 0); err != ErrTooShort {
		t.Errorf("expected ErrTooShort for dt=0, got %v", err)
	}
	if _, err := PowerSpectrum([]float64{1, math.NaN(), 2}, 0.1); err != ErrTooShort {
		t.Errorf("expected ErrTooShort for NaN samples, got %v", err)
	}
}

func TestUniform(t *testing.T) {
	dt, ok := Uniform([]float64{0, 0.1, 0.2, 0.3}, 1e-6)
	if !ok || math.Abs(dt-0.1) > 1e-12 {
		t.Errorf("expected uniform 0.1, got %g %v", dt, ok)
	}
	if _, ok := Uniform([]float64{0, 0.1, 0.15, 0.3}, 1e-6); ok {
		t.Error("expected non-uniform")
	}
	if _, ok := Uniform([]float64{0}, 1e-6); ok {
		t.Error("a single sample has no interval")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, math.NaN(), -3, 2})
	if s.Min != -3 || s.Max != 2 || s.Final != 2 || s.Skipped != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.Mean != 0 {
		t.Errorf("expected mean 0, got %g", s.Mean)
	}
	if math.Abs(s.RMS-math.Sqrt(14.0/3)) > 1e-12 {
		t.Errorf("unexpected rms %g", s.RMS)
	}

	empty := Summarize([]float64{math.NaN()})
	if !math.IsNaN(empty.Mean) || empty.Skipped != 1 {
		t.Errorf("text-only column should summarize to NaN, got %+v", empty)
	}
}

func TestPhasePortrait(t *testing.T) {
	x := []float64{-1, 0, 1, math.NaN()}
	y := []float64{0, 1, 0, 2}
	p, err := NewPhasePortrait("theta", x, "omega", y)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Points) != 3 {
		t.Fatalf("expected NaN sample skipped, got %d points", len(p.Points))
	}

	art := p.ASCII(21, 11)
	lines := strings.Split(strings.TrimRight(art, "\n"), "\n")
	if len(lines) != 11 {
		t.Fatalf("expected 11 lines, got %d", len(lines))
	}
	if strings.Count(art, "•") != 3 {
		t.Errorf("expected 3 plotted points:\n%s", art)
	}
	if !strings.Contains(art, "│") || !strings.Contains(art, "─") {
		t.Errorf("expected both axes:\n%s", art)
	}

	if _, err := NewPhasePortrait("a", x, "b", y[:2]); err == nil {
		t.Error("expected length mismatch error")
	}
	if (*PhasePortrait)(nil).ASCII(10, 10) != "" {
		t.Error("nil portrait should render empty")
	}
}

func TestPoincareSection(t *testing.T) {
	cross := []float64{-1, 1, -1, 1}
	x := []float64{0, 10, 0, 20}
	y := []float64{5, 5, 5, 5}
	s, err := NewPoincareSection(cross, x, y, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Points) != 2 {
		t.Fatalf("expected 2 upward crossings, got %d", len(s.Points))
	}
	if s.Points[0].X != 5 || s.Points[1].X != 10 {
		t.Errorf("crossings not interpolated: %+v", s.Points)
	}
}
