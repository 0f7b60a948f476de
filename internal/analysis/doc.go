// Package analysis inspects the recorded output of a run.
//
// Every function works on plain columns taken from a stored series, so it
// applies to any model regardless of what runs inside it:
//
//   - [PowerSpectrum]: one-sided power spectrum of a uniformly sampled column
//   - [DominantFrequency]: strongest non-DC component
//   - [Summarize]: min, max, mean, RMS and final value of a column
//   - [NewPhasePortrait]: two columns plotted against each other
//   - [NewPoincareSection]: points where one column crosses a threshold
//
// # Oscillation period
//
//	ps, _ := analysis.PowerSpectrum(theta, dt)
//	f := ps.DominantFrequency()
//	period := 1 / f
package analysis
