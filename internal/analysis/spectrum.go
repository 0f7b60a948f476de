package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var ErrTooShort = errors.New("analysis: need at least two finite samples")

type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum returns |X(f)|^2 / n for f in [0, 1/(2 dt)]. The mean is
// removed first so the DC bin reflects only the offset left by rounding.
func PowerSpectrum(samples []float64, dt float64) (*Spectrum, error) {
	n := len(samples)
	if n < 2 || dt <= 0 {
		return nil, ErrTooShort
	}

	mean := 0.0
	for _, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrTooShort
		}
		mean += v
	}
	mean /= float64(n)

	centered := make([]float64, n)
	for i, v := range samples {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	half := n/2 + 1
	ps := &Spectrum{
		Freqs: make([]float64, half),
		Power: make([]float64, half),
	}
	for k := 0; k < half; k++ {
		ps.Freqs[k] = float64(k) / (float64(n) * dt)
		a := cmplx.Abs(coeffs[k])
		ps.Power[k] = a * a / float64(n)
	}
	return ps, nil
}

// DominantFrequency returns the frequency of the strongest bin above DC.
func (s *Spectrum) DominantFrequency() float64 {
	best, at := -1.0, 0.0
	for k := 1; k < len(s.Power); k++ {
		if s.Power[k] > best {
			best, at = s.Power[k], s.Freqs[k]
		}
	}
	return at
}

// Uniform returns the sampling interval of times and whether every interval
// matches it within a relative tolerance.
func Uniform(times []float64, tol float64) (float64, bool) {
	if len(times) < 2 {
		return 0, false
	}
	dt := (times[len(times)-1] - times[0]) / float64(len(times)-1)
	if dt <= 0 {
		return 0, false
	}
	for i := 1; i < len(times); i++ {
		if math.Abs(times[i]-times[i-1]-dt) > tol*dt {
			return dt, false
		}
	}
	return dt, true
}

type Summary struct {
	Min   float64
	Max   float64
	Mean  float64
	RMS   float64
	Final float64
	// Skipped counts NaN cells (text columns or missing values).
	Skipped int
}

func Summarize(col []float64) Summary {
	s := Summary{Min: math.Inf(1), Max: math.Inf(-1), Final: math.NaN()}
	n, sq := 0, 0.0
	for _, v := range col {
		if math.IsNaN(v) {
			s.Skipped++
			continue
		}
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		s.Mean += v
		sq += v * v
		s.Final = v
		n++
	}
	if n == 0 {
		return Summary{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), RMS: math.NaN(), Final: math.NaN(), Skipped: s.Skipped}
	}
	s.Mean /= float64(n)
	s.RMS = math.Sqrt(sq / float64(n))
	return s
}
