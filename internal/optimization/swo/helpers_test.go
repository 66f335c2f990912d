package swo

import (
	"math"
	"testing"

	"github.com/copyleftdev/spiderwasp/internal/optimization"
)

// sphere is a simple quadratic objective function for testing
func sphere() optimization.Objective {
	return optimization.NewObjective("sphere", func(x []float64) (float64, error) {
		sum := 0.0
		for _, v := range x {
			sum += v * v
		}
		return sum, nil
	})
}

// testConfig returns a 2-D sphere configuration over [-512, 512].
func testConfig(seed int64) optimization.OptimizerConfig {
	return optimization.OptimizerConfig{
		Objective:      sphere(),
		Space:          optimization.NewBoxSpace(2, -512, 512),
		PopulationSize: 30,
		MaxIterations:  200,
		RandomSeed:     seed,
	}
}

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// assertPopulationInBounds checks every stored agent, frozen ones included.
func assertPopulationInBounds(t *testing.T, o *SpiderWaspOptimizer) {
	t.Helper()

	for i := 0; i < o.pop.capacity(); i++ {
		if !o.config.Space.Contains(o.pop.row(i)) {
			t.Fatalf("agent %d out of bounds after iteration %d: %v", i, o.t, o.pop.row(i))
		}
	}
}
