package swo

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/spiderwasp/internal/benchmarks"
	"github.com/copyleftdev/spiderwasp/internal/optimization"
)

func TestNew(t *testing.T) {
	valid := testConfig(1)

	tests := []struct {
		name    string
		mutate  func(c *optimization.OptimizerConfig)
		wantErr bool
	}{
		{name: "valid configuration", mutate: func(c *optimization.OptimizerConfig) {}},
		{
			name:    "no objective function",
			mutate:  func(c *optimization.OptimizerConfig) { c.Objective = nil },
			wantErr: true,
		},
		{
			name:    "zero dimension",
			mutate:  func(c *optimization.OptimizerConfig) { c.Space = optimization.NewBoxSpace(0, -1, 1) },
			wantErr: true,
		},
		{
			name: "inverted bounds",
			mutate: func(c *optimization.OptimizerConfig) {
				c.Space = optimization.NewSearchSpace([]float64{0, 5}, []float64{1, 4})
			},
			wantErr: true,
		},
		{
			name: "bounds length mismatch",
			mutate: func(c *optimization.OptimizerConfig) {
				c.Space = optimization.SearchSpace{Dim: 2, Lower: []float64{0}, Upper: []float64{1, 1}}
			},
			wantErr: true,
		},
		{
			name:    "population below minimum",
			mutate:  func(c *optimization.OptimizerConfig) { c.PopulationSize = MinPopulation - 1 },
			wantErr: true,
		},
		{
			name:   "population at minimum",
			mutate: func(c *optimization.OptimizerConfig) { c.PopulationSize = MinPopulation },
		},
		{
			name:    "no iterations",
			mutate:  func(c *optimization.OptimizerConfig) { c.MaxIterations = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			optimizer, err := New(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, optimization.ErrConfiguration), "want configuration error, got %v", err)
				assert.Nil(t, optimizer)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, optimizer)
			assert.Equal(t, StateInitializing, optimizer.State())
		})
	}
}

func TestNewDefaults(t *testing.T) {
	optimizer, err := New(testConfig(1))
	require.NoError(t, err)

	assert.Equal(t, DefaultTol, optimizer.config.Tol)
	assert.Equal(t, DefaultMaxStall, optimizer.config.MaxStall)
	assert.Equal(t, map[string]int{"sphere": 0}, optimizer.evalsPer)
	assert.Equal(t, 0, len(optimizer.trace))
	assert.Equal(t, 200, cap(optimizer.trace))
}

func TestNextActiveSize(t *testing.T) {
	tests := []struct {
		n, t, maxIter int
		want          int
	}{
		{30, 1, 1000, 30},
		{30, 500, 1000, 25},
		{30, 1000, 1000, MinPopulation},
		{100, 1, 10, 92},
		{100, 999, 1000, MinPopulation},
		{MinPopulation, 1, 1000, MinPopulation},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, nextActiveSize(tt.n, tt.t, tt.maxIter), "n=%d t=%d T=%d", tt.n, tt.t, tt.maxIter)
	}
}

func TestShrinkIsRecursive(t *testing.T) {
	// Starting from 100 over 10 iterations the compounding schedule reaches
	// the floor well before the closed form 20 + 80*(T-t)/T would.
	n := 100
	sizes := []int{n}
	for step := 1; step <= 10; step++ {
		n = nextActiveSize(n, step, 10)
		sizes = append(sizes, n)
	}
	assert.Equal(t, []int{100, 92, 78, 61, 45, 33, 25, 22, 20, 20, 20}, sizes)
}

func TestOptimizeSphere(t *testing.T) {
	cfg := testConfig(42)
	cfg.MaxIterations = 1000

	result, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Less(t, result.BestSolution.Value, 1e-3, "should converge near the minimum")
	assert.Less(t, floats.Norm(result.BestSolution.Parameters, 2), 0.1, "should find x near the origin")
	assert.Len(t, result.Convergence, result.Iterations)
	assert.Equal(t, result.Evaluations, result.EvaluationsPerObjective["sphere"])
}

func TestOptimizeBukinN6(t *testing.T) {
	fn, err := benchmarks.Default().Lookup("bukin_function_n6")
	require.NoError(t, err)

	result, err := Run(context.Background(), optimization.OptimizerConfig{
		Objective:      fn,
		Space:          optimization.NewBoxSpace(2, -512, 512),
		PopulationSize: 30,
		MaxIterations:  1000,
		RandomSeed:     7,
	})
	require.NoError(t, err)
	assert.Less(t, result.BestSolution.Value, 1.0)
}

func TestOptimizeDimensionMismatch(t *testing.T) {
	fn, err := benchmarks.Default().Lookup("eggholder_function")
	require.NoError(t, err)

	result, err := Run(context.Background(), optimization.OptimizerConfig{
		Objective:      fn,
		Space:          optimization.NewBoxSpace(3, -512, 512),
		PopulationSize: 30,
		MaxIterations:  10,
		RandomSeed:     1,
	})
	require.Error(t, err)
	assert.Nil(t, result, "an evaluation failure should not return a result")
	assert.True(t, errors.Is(err, optimization.ErrEvaluation), "want evaluation error, got %v", err)

	var dimErr *optimization.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Want)
	assert.Equal(t, 3, dimErr.Got)
}

func TestRunProperties(t *testing.T) {
	cfg := testConfig(5)
	cfg.Space = optimization.NewSearchSpace([]float64{-5, 0, -100}, []float64{5, 3, 100})
	cfg.PopulationSize = 60
	cfg.MaxIterations = 150

	var stats []IterationStats
	result, err := Run(context.Background(), cfg, WithObserver(func(s IterationStats) {
		stats = append(stats, s)
	}))
	require.NoError(t, err)
	require.Len(t, stats, result.Iterations)

	t.Run("monotonic best", func(t *testing.T) {
		for i := 1; i < len(result.Convergence); i++ {
			assert.LessOrEqual(t, result.Convergence[i], result.Convergence[i-1], "trace must not worsen at %d", i)
		}
		assert.Equal(t, result.BestSolution.Value, result.Convergence[len(result.Convergence)-1])
	})

	t.Run("active size shrinks within bounds", func(t *testing.T) {
		prev := cfg.PopulationSize
		for _, s := range stats {
			assert.LessOrEqual(t, s.ActiveSize, prev)
			assert.GreaterOrEqual(t, s.ActiveSize, MinPopulation)
			prev = s.ActiveSize
		}
		assert.Equal(t, cfg.PopulationSize, stats[0].ActiveSize, "first iteration uses the full population")
	})

	t.Run("evaluation accounting", func(t *testing.T) {
		want := cfg.PopulationSize
		for _, s := range stats {
			want += s.ActiveSize
			assert.Equal(t, want, s.Evaluations, "running total after iteration %d", s.Iteration)
		}
		assert.Equal(t, want, result.Evaluations)
		assert.Equal(t, map[string]int{"sphere": want}, result.EvaluationsPerObjective)
	})

	t.Run("best solution is feasible", func(t *testing.T) {
		assert.True(t, cfg.Space.Contains(result.BestSolution.Parameters))
		f, err := cfg.Objective.Evaluate(result.BestSolution.Parameters)
		require.NoError(t, err)
		assert.Equal(t, result.BestSolution.Value, f)
	})
}

func TestBoundInvariant(t *testing.T) {
	// A shifted sphere whose minimum lies outside the box keeps agents
	// pressed against the bounds.
	cfg := testConfig(11)
	cfg.Objective = optimization.NewObjective("shifted", func(x []float64) (float64, error) {
		return (x[0]-2000)*(x[0]-2000) + (x[1]+2000)*(x[1]+2000), nil
	})
	cfg.MaxIterations = 100

	o, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, o.initialize())
	assertPopulationInBounds(t, o)

	for o.t < cfg.MaxIterations {
		require.NoError(t, o.iterate())
		assertPopulationInBounds(t, o)
	}
	assertFloat64SlicesEqual(t, o.best, []float64{512, -512}, 5)
}

func TestFrozenAgentsUntouched(t *testing.T) {
	cfg := testConfig(3)
	cfg.PopulationSize = 50
	cfg.MaxIterations = 20

	o, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, o.initialize())

	var frozen *mat.Dense
	var frozenFrom int
	for o.t < cfg.MaxIterations {
		require.NoError(t, o.iterate())
		if frozen == nil && o.pop.active < cfg.PopulationSize {
			frozenFrom = o.pop.active
			frozen = mat.DenseCopyOf(o.pop.positions.Slice(frozenFrom, cfg.PopulationSize, 0, 2))
		}
	}
	require.NotNil(t, frozen, "population should shrink within the run")
	assert.Equal(t, cfg.PopulationSize, o.pop.capacity(), "frozen agents stay in storage")
	assert.True(t, mat.Equal(frozen, o.pop.positions.Slice(frozenFrom, cfg.PopulationSize, 0, 2)),
		"agents beyond the active size must not move")
}

func TestDeterminism(t *testing.T) {
	run := func(cfg optimization.OptimizerConfig) *optimization.OptimizationResult {
		result, err := Run(context.Background(), cfg)
		require.NoError(t, err)
		return result
	}

	t.Run("seed", func(t *testing.T) {
		a := run(testConfig(42))
		b := run(testConfig(42))
		assert.Equal(t, a.BestSolution, b.BestSolution)
		assert.Equal(t, a.Convergence, b.Convergence)
		assert.Equal(t, a.Evaluations, b.Evaluations)
	})

	t.Run("injected source", func(t *testing.T) {
		cfgA := testConfig(0)
		cfgA.Source = rand.NewPCG(100, 200)
		cfgB := testConfig(0)
		cfgB.Source = rand.NewPCG(100, 200)

		a, b := run(cfgA), run(cfgB)
		assert.Equal(t, a.BestSolution, b.BestSolution)
		assert.Equal(t, a.Convergence, b.Convergence)
	})

	t.Run("zero seed source", func(t *testing.T) {
		cfgA := testConfig(0)
		cfgA.Source = NewSource(0)
		cfgB := testConfig(0)
		cfgB.Source = NewSource(0)

		a, b := run(cfgA), run(cfgB)
		assert.Equal(t, a.BestSolution, b.BestSolution)
		assert.Equal(t, a.Convergence, b.Convergence)
	})

	t.Run("source matches seed", func(t *testing.T) {
		cfg := testConfig(0)
		cfg.Source = NewSource(42)
		assert.Equal(t, run(testConfig(42)).Convergence, run(cfg).Convergence)
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		a := run(testConfig(1))
		b := run(testConfig(2))
		assert.NotEqual(t, a.Convergence, b.Convergence)
	})
}

func TestTermination(t *testing.T) {
	flat := optimization.NewObjective("flat", func(x []float64) (float64, error) { return 1, nil })

	tests := []struct {
		name       string
		maxIter    int
		maxStall   int
		wantIter   int
		wantReason optimization.StopReason
	}{
		{"stall ends the run early", 1000, 5, 5, optimization.StopStalled},
		{"iteration budget ends the run", 8, 50, 8, optimization.StopMaxIterations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(1)
			cfg.Objective = flat
			cfg.MaxIterations = tt.maxIter
			cfg.MaxStall = tt.maxStall

			result, err := Run(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIter, result.Iterations)
			assert.Len(t, result.Convergence, tt.wantIter)
			assert.Equal(t, tt.wantReason, result.StopReason)
		})
	}
}

func TestStallCounterResets(t *testing.T) {
	cfg := testConfig(9)
	cfg.MaxIterations = 300
	cfg.MaxStall = 1000

	var stalls []int
	result, err := Run(context.Background(), cfg, WithObserver(func(s IterationStats) {
		stalls = append(stalls, s.StallCount)
	}))
	require.NoError(t, err)
	assert.Equal(t, optimization.StopMaxIterations, result.StopReason)

	for i := 1; i < len(stalls); i++ {
		if math.Abs(result.Convergence[i-1]-result.Convergence[i]) < DefaultTol {
			assert.Equal(t, stalls[i-1]+1, stalls[i], "stall count should grow at iteration %d", i+1)
		} else {
			assert.Equal(t, 0, stalls[i], "stall count should reset at iteration %d", i+1)
		}
	}
}

// The three reference agents of an iteration are shared by every agent that
// iteration: two agents with identical state and identical random draws move
// identically when mating, whatever their index.
func TestMatingSharesReferenceAgents(t *testing.T) {
	build := func() *SpiderWaspOptimizer {
		o, err := New(testConfig(0))
		require.NoError(t, err)
		o.pop = newPopulation(NewPositions(MinPopulation, o.config.Space, rand.NewPCG(4, 4)))
		for i := 0; i < MinPopulation; i++ {
			f, _ := o.config.Objective.Evaluate(o.pop.row(i))
			o.pop.fitness[i] = f
		}
		// agents 5 and 6 are clones
		copy(o.pop.row(6), o.pop.row(5))
		o.pop.fitness[6] = o.pop.fitness[5]
		o.best = append([]float64(nil), o.pop.row(o.pop.best())...)
		return o
	}
	jk := []int{9, 1, 2, 3, 19, 18, 17, 16, 15, 14, 13, 12, 11, 10, 8, 7, 6, 5, 4, 0}

	a := build()
	a.rng = rand.New(rand.NewPCG(77, 77))
	a.mate(5, jk, -1.3)

	b := build()
	b.rng = rand.New(rand.NewPCG(77, 77))
	b.mate(6, jk, -1.3)

	assertFloat64SlicesEqual(t, a.pop.row(5), b.pop.row(6), 0)
}

func TestCancel(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		cfg := testConfig(1)
		cfg.Objective = optimization.NewObjective("sphere", func(x []float64) (float64, error) {
			calls++
			return x[0] * x[0], nil
		})

		result, err := Run(ctx, cfg)
		require.Error(t, err, "should return error when context is cancelled")
		assert.Nil(t, result, "should not return result when cancelled before start")
		assert.Equal(t, 0, calls)
	})

	t.Run("between iterations", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		result, err := Run(ctx, testConfig(1), WithObserver(func(s IterationStats) {
			if s.Iteration == 3 {
				cancel()
			}
		}))
		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, result, "cancellation keeps the best solution so far")
		assert.Equal(t, 3, result.Iterations)
		assert.Len(t, result.Convergence, 3)
		assert.Equal(t, optimization.StopCancelled, result.StopReason)
	})

	t.Run("stop", func(t *testing.T) {
		var o *SpiderWaspOptimizer
		o, err := New(testConfig(1), WithObserver(func(s IterationStats) {
			if s.Iteration == 2 {
				o.Stop()
			}
		}))
		require.NoError(t, err)

		result, err := o.Optimize(context.Background())
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, result.Iterations)
		assert.Equal(t, StateTerminated, o.State())
	})
}

func TestOptimizeSingleUse(t *testing.T) {
	cfg := testConfig(1)
	cfg.MaxIterations = 3

	o, err := New(cfg)
	require.NoError(t, err)
	_, err = o.Optimize(context.Background())
	require.NoError(t, err)

	_, err = o.Optimize(context.Background())
	require.Error(t, err)
}

func TestEvaluationErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	cfg := testConfig(1)
	cfg.Objective = optimization.NewObjective("fragile", func(x []float64) (float64, error) {
		calls++
		if calls > 45 {
			return 0, boom
		}
		return x[0] * x[0], nil
	})

	result, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, optimization.ErrEvaluation)
	assert.Equal(t, 46, calls, "the run stops at the first failure")
}

func TestNonFiniteFitness(t *testing.T) {
	// NaN on the right half of the box
	halfNaN := optimization.NewObjective("half_nan", func(x []float64) (float64, error) {
		if x[0] > 0 {
			return math.NaN(), nil
		}
		return x[0]*x[0] + x[1]*x[1], nil
	})

	t.Run("rejected by default", func(t *testing.T) {
		cfg := testConfig(13)
		cfg.Objective = halfNaN

		result, err := Run(context.Background(), cfg)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(result.BestSolution.Value))
		assert.LessOrEqual(t, result.BestSolution.Parameters[0], 0.0)
	})

	t.Run("strict aborts", func(t *testing.T) {
		cfg := testConfig(13)
		cfg.Objective = halfNaN

		result, err := Run(context.Background(), cfg, WithStrictNumerics())
		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, optimization.ErrNumerical)
	})
}

func TestClipRepairsNaNCoordinates(t *testing.T) {
	space := optimization.NewBoxSpace(3, -1, 1)
	x := []float64{math.NaN(), math.Inf(1), math.Inf(-1)}
	space.Clip(x, []float64{0.5, 0, 0})
	assert.Equal(t, []float64{0.5, 1, -1}, x)
}
