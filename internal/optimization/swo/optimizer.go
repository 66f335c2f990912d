// Package swo implements the Spider Wasp Optimizer, a population-based
// minimizer alternating a hunting and a mating strategy over a shrinking
// population.
package swo

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/spiderwasp/internal/optimization"
)

const (
	// huntingProbability is the chance an iteration uses the hunting strategy.
	huntingProbability = 0.5
	// crossoverProbability is the per-dimension acceptance rate when mating.
	crossoverProbability = 0.3

	// MinPopulation is the floor of the active population size.
	MinPopulation = 20
	// DefaultTol is the stall threshold used when the config leaves it unset.
	DefaultTol = 1e-10
	// DefaultMaxStall is the stall limit used when the config leaves it unset.
	DefaultMaxStall = 300

	pcgStream = 0x9e3779b97f4a7c15
)

// State is the lifecycle phase of an optimizer.
type State int

const (
	StateInitializing State = iota
	StateIterating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateIterating:
		return "iterating"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Strategy is the update rule chosen for a whole iteration.
type Strategy int

const (
	Hunting Strategy = iota
	Mating
)

func (s Strategy) String() string {
	if s == Hunting {
		return "hunting"
	}
	return "mating"
}

// IterationStats describes one completed iteration.
type IterationStats struct {
	Iteration   int
	BestScore   float64
	ActiveSize  int
	Strategy    Strategy
	StallCount  int
	Evaluations int
}

// Option configures a SpiderWaspOptimizer.
type Option func(*SpiderWaspOptimizer)

// WithObserver registers fn to be called after every iteration, on the
// optimizing goroutine.
func WithObserver(fn func(IterationStats)) Option {
	return func(o *SpiderWaspOptimizer) { o.observer = fn }
}

// WithLogger sets the logger used for run and iteration events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *SpiderWaspOptimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStrictNumerics makes a non-finite fitness abort the run with a
// numerical degeneracy error instead of rejecting the agent.
func WithStrictNumerics() Option {
	return func(o *SpiderWaspOptimizer) { o.strict = true }
}

// SpiderWaspOptimizer runs a single optimization. Instances are not reusable.
type SpiderWaspOptimizer struct {
	config optimization.OptimizerConfig

	// Random number generator; the Lévy sampler shares its source
	src  rand.Source
	rng  *rand.Rand
	levy *LevySampler

	pop       *population
	best      []float64
	bestScore float64
	prevBest  float64

	t          int
	stall      int
	trace      []float64
	evals      int
	evalsPer   map[string]int
	state      State
	stopReason optimization.StopReason

	observer func(IterationStats)
	logger   *zap.Logger
	strict   bool

	// For cancellation
	mu     sync.Mutex
	cancel context.CancelFunc

	// per-agent scratch
	snapshot []float64
	step     []float64
	vc       []float64
	v1       []float64
	v2       []float64
}

// New validates config and returns an optimizer ready to run.
func New(config optimization.OptimizerConfig, opts ...Option) (*SpiderWaspOptimizer, error) {
	if config.Objective == nil {
		return nil, optimization.NewError(optimization.KindConfiguration, "objective function is required").
			WithComponent("swo")
	}
	if err := config.Space.Validate(); err != nil {
		return nil, err
	}
	if config.PopulationSize < MinPopulation {
		return nil, optimization.NewErrorf(optimization.KindConfiguration,
			"population size must be at least %d, got %d", MinPopulation, config.PopulationSize).
			WithComponent("swo")
	}
	if config.MaxIterations < 1 {
		return nil, optimization.NewErrorf(optimization.KindConfiguration,
			"max iterations must be positive, got %d", config.MaxIterations).
			WithComponent("swo")
	}
	if config.Tol <= 0 {
		config.Tol = DefaultTol
	}
	if config.MaxStall <= 0 {
		config.MaxStall = DefaultMaxStall
	}

	src := config.Source
	if src == nil {
		seed := config.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		src = NewSource(seed)
	}

	dim := config.Space.Dim
	o := &SpiderWaspOptimizer{
		config:   config,
		src:      src,
		rng:      rand.New(src),
		levy:     NewLevySampler(src),
		trace:    make([]float64, 0, config.MaxIterations),
		evalsPer: map[string]int{config.Objective.Name(): 0},
		logger:   zap.NewNop(),
		snapshot: make([]float64, dim),
		step:     make([]float64, dim),
		vc:       make([]float64, dim),
		v1:       make([]float64, dim),
		v2:       make([]float64, dim),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// NewSource returns the PCG source a run seeded with seed uses. Unlike
// RandomSeed, a zero seed is taken literally.
func NewSource(seed int64) rand.Source {
	return rand.NewPCG(uint64(seed), pcgStream)
}

// Run is shorthand for New followed by Optimize.
func Run(ctx context.Context, config optimization.OptimizerConfig, opts ...Option) (*optimization.OptimizationResult, error) {
	o, err := New(config, opts...)
	if err != nil {
		return nil, err
	}
	return o.Optimize(ctx)
}

// Optimize runs the optimizer to termination. When ctx is cancelled between
// iterations the partial result is returned along with the context error.
// An objective failure aborts the run and returns no result.
func (o *SpiderWaspOptimizer) Optimize(ctx context.Context) (*optimization.OptimizationResult, error) {
	if o.state != StateInitializing {
		return nil, optimization.NewError(optimization.KindConfiguration, "optimizer has already run").
			WithComponent("swo").WithOperation("optimize")
	}

	// Create a cancellable context
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	if err := ctx.Err(); err != nil {
		o.state = StateTerminated
		return nil, err
	}

	name := o.config.Objective.Name()
	o.logger.Info("optimization started",
		zap.String("objective", name),
		zap.Int("dim", o.config.Space.Dim),
		zap.Int("population", o.config.PopulationSize),
		zap.Int("max_iterations", o.config.MaxIterations),
	)

	if err := o.initialize(); err != nil {
		o.state = StateTerminated
		return nil, err
	}

	for o.t < o.config.MaxIterations && o.stall < o.config.MaxStall {
		if err := ctx.Err(); err != nil {
			o.terminate(optimization.StopCancelled)
			return o.result(), err
		}
		if err := o.iterate(); err != nil {
			o.state = StateTerminated
			o.logger.Error("optimization aborted", zap.String("objective", name), zap.Error(err))
			return nil, err
		}
	}

	reason := optimization.StopMaxIterations
	if o.stall >= o.config.MaxStall && o.t < o.config.MaxIterations {
		reason = optimization.StopStalled
	}
	o.terminate(reason)
	return o.result(), nil
}

// Stop cancels a running Optimize at its next iteration boundary.
func (o *SpiderWaspOptimizer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// State returns the lifecycle phase. It must not be called concurrently
// with Optimize.
func (o *SpiderWaspOptimizer) State() State {
	return o.state
}

func (o *SpiderWaspOptimizer) terminate(reason optimization.StopReason) {
	o.state = StateTerminated
	o.stopReason = reason
	o.logger.Info("optimization finished",
		zap.String("objective", o.config.Objective.Name()),
		zap.String("reason", string(reason)),
		zap.Int("iterations", o.t),
		zap.Int("evaluations", o.evals),
		zap.Float64("best_score", o.bestScore),
	)
}

// initialize builds and evaluates the starting population.
func (o *SpiderWaspOptimizer) initialize() error {
	o.pop = newPopulation(NewPositions(o.config.PopulationSize, o.config.Space, o.src))
	for i := 0; i < o.pop.capacity(); i++ {
		f, err := o.evaluate(o.pop.row(i))
		if err != nil {
			return err
		}
		o.pop.fitness[i] = f
	}

	bi := o.pop.best()
	o.bestScore = o.pop.fitness[bi]
	o.best = append([]float64(nil), o.pop.row(bi)...)
	o.prevBest = o.bestScore
	o.state = StateIterating
	return nil
}

// iterate performs one full iteration including end-of-iteration
// bookkeeping.
func (o *SpiderWaspOptimizer) iterate() error {
	n := o.pop.active
	progress := float64(o.t) / float64(o.config.MaxIterations)
	a := 2 - 2*progress
	a2 := -1 - progress
	k := 1 - progress

	jk := o.rng.Perm(n)
	strategy := Mating
	if o.rng.Float64() < huntingProbability {
		strategy = Hunting
	}

	for i := 0; i < n; i++ {
		copy(o.snapshot, o.pop.row(i))
		if strategy == Hunting {
			o.hunt(i, jk, a, a2, k)
		} else {
			o.mate(i, jk, a2)
		}
		if err := o.settle(i); err != nil {
			return err
		}
	}

	o.t++
	o.trace = append(o.trace, o.bestScore)
	if math.Abs(o.prevBest-o.bestScore) < o.config.Tol {
		o.stall++
	} else {
		o.stall = 0
	}
	o.prevBest = o.bestScore
	o.pop.shrink(nextActiveSize(n, o.t, o.config.MaxIterations))

	stats := IterationStats{
		Iteration:   o.t,
		BestScore:   o.bestScore,
		ActiveSize:  n,
		Strategy:    strategy,
		StallCount:  o.stall,
		Evaluations: o.evals,
	}
	if ce := o.logger.Check(zap.DebugLevel, "iteration completed"); ce != nil {
		ce.Write(
			zap.Int("iteration", stats.Iteration),
			zap.Float64("best_score", stats.BestScore),
			zap.Int("active", stats.ActiveSize),
			zap.Stringer("strategy", stats.Strategy),
			zap.Int("stall", stats.StallCount),
		)
	}
	if o.observer != nil {
		o.observer(stats)
	}
	return nil
}

// settle clips agent i, evaluates it and keeps the move only if it improved
// the agent's fitness.
func (o *SpiderWaspOptimizer) settle(i int) error {
	x := o.pop.row(i)
	o.config.Space.Clip(x, o.snapshot)

	f, err := o.evaluate(x)
	if err != nil {
		return err
	}
	if f < o.pop.fitness[i] {
		o.pop.fitness[i] = f
		if f < o.bestScore {
			o.bestScore = f
			copy(o.best, x)
		}
		return nil
	}
	copy(x, o.snapshot)
	return nil
}

// evaluate calls the objective and keeps the evaluation counters.
func (o *SpiderWaspOptimizer) evaluate(x []float64) (float64, error) {
	name := o.config.Objective.Name()
	v, err := o.config.Objective.Evaluate(x)
	o.evals++
	o.evalsPer[name]++
	if err != nil {
		return 0, optimization.WrapErrorf(optimization.KindEvaluation, err, "objective %q failed", name).
			WithComponent("swo").WithOperation("evaluate")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		if o.strict {
			return 0, optimization.NewErrorf(optimization.KindNumerical, "objective %q returned %v", name, v).
				WithComponent("swo").WithOperation("evaluate")
		}
		if math.IsNaN(v) {
			v = math.Inf(1)
		}
	}
	return v, nil
}

// result snapshots the current state into a caller-owned result.
func (o *SpiderWaspOptimizer) result() *optimization.OptimizationResult {
	per := make(map[string]int, len(o.evalsPer))
	for k, v := range o.evalsPer {
		per[k] = v
	}
	return &optimization.OptimizationResult{
		BestSolution: &optimization.Solution{
			Parameters: append([]float64(nil), o.best...),
			Value:      o.bestScore,
		},
		Convergence:             append([]float64(nil), o.trace...),
		Iterations:              o.t,
		Evaluations:             o.evals,
		EvaluationsPerObjective: per,
		StopReason:              o.stopReason,
	}
}

// nextActiveSize applies one step of the compounding shrink schedule to the
// current active size n after t of maxIter iterations.
func nextActiveSize(n, t, maxIter int) int {
	frac := float64(maxIter-t) / float64(maxIter)
	size := int(math.Round(MinPopulation + float64(n-MinPopulation)*frac))
	return max(MinPopulation, size)
}
