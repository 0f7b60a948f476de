package integrators

import (
	"testing"

	"github.com/san-kum/wasmsim/internal/dynamo"
)

func benchmarkStep(b *testing.B, integ dynamo.Integrator) {
	x := dynamo.State{1.0, 0.0}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integ.Step(oscillator{}, x, nil, 0, 0.01)
	}
}

func BenchmarkEuler(b *testing.B) { benchmarkStep(b, NewEuler()) }
func BenchmarkRK4(b *testing.B)   { benchmarkStep(b, NewRK4()) }
func BenchmarkRK45(b *testing.B)  { benchmarkStep(b, NewRK45()) }

func BenchmarkAdvanceRK45(b *testing.B) {
	integ := NewRK45()
	for i := 0; i < b.N; i++ {
		Advance(integ, oscillator{}, dynamo.State{1, 0}, nil, 0, 0.1, 0.01)
	}
}
