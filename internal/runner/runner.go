// Package runner executes a batch of spider wasp runs, one per named
// benchmark function, with bounded concurrency.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/spiderwasp/internal/benchmarks"
	"github.com/copyleftdev/spiderwasp/internal/logging"
	"github.com/copyleftdev/spiderwasp/internal/metrics"
	"github.com/copyleftdev/spiderwasp/internal/optimization"
	"github.com/copyleftdev/spiderwasp/internal/optimization/swo"
)

// Request describes a batch. Every function is optimized over the same box.
type Request struct {
	Functions      []string
	Space          optimization.SearchSpace
	PopulationSize int
	MaxIterations  int
	Tol            float64
	MaxStall       int
	// Seed is the batch seed; function i runs with Seed+i. 0 picks a seed
	// from the clock once for the whole batch.
	Seed int64
	// StrictNumerics aborts on non-finite fitness instead of rejecting.
	StrictNumerics bool
}

// Report is the outcome of one function's run.
type Report struct {
	Function    string                  `json:"function" yaml:"function"`
	Dim         int                     `json:"dim" yaml:"dim"`
	Seed        int64                   `json:"seed" yaml:"seed"`
	Best        optimization.Solution   `json:"best" yaml:"best"`
	Optimum     *optimization.Solution  `json:"known_optimum,omitempty" yaml:"known_optimum,omitempty"`
	Iterations  int                     `json:"iterations" yaml:"iterations"`
	Evaluations int                     `json:"evaluations" yaml:"evaluations"`
	StopReason  optimization.StopReason `json:"stop_reason" yaml:"stop_reason"`
	Convergence []float64               `json:"convergence" yaml:"convergence"`
	Duration    time.Duration           `json:"duration_ns" yaml:"duration"`

	// Result is the engine output the report was built from.
	Result *optimization.OptimizationResult `json:"-" yaml:"-"`
}

// Batch collects the reports in request order.
type Batch struct {
	Reports []Report `json:"reports" yaml:"reports"`
	// Evaluations is the total over every run.
	Evaluations int `json:"evaluations" yaml:"evaluations"`
	// EvaluationsPerFunction merges the per-objective counters of all runs.
	EvaluationsPerFunction map[string]int `json:"evaluations_per_function" yaml:"evaluations_per_function"`
}

// Progress receives per-iteration stats tagged with the function name. It
// may be called from several goroutines at once.
type Progress func(function string, stats swo.IterationStats)

// Runner runs batches against a registry.
type Runner struct {
	registry *benchmarks.Registry
	workers  int
	logger   *logging.Logger
	metrics  *metrics.Collector
	progress Progress
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers bounds the number of concurrent runs.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the logger handed to each run.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records every finished run in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithProgress registers fn as the per-iteration observer.
func WithProgress(fn Progress) Option {
	return func(r *Runner) { r.progress = fn }
}

// New returns a Runner over registry, or over benchmarks.Default when nil.
func New(registry *benchmarks.Registry, opts ...Option) *Runner {
	if registry == nil {
		registry = benchmarks.Default()
	}
	r := &Runner{
		registry: registry,
		workers:  1,
		logger:   logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run optimizes every requested function. Names are resolved before any run
// starts. The first failing run cancels the rest and its error is returned.
// When ctx is cancelled the batch holds whatever partial results the
// interrupted runs produced, along with the context error.
func (r *Runner) Run(ctx context.Context, req Request) (*Batch, error) {
	if len(req.Functions) == 0 {
		return nil, optimization.NewError(optimization.KindConfiguration, "no functions requested").
			WithComponent("runner")
	}
	funcs := make([]*benchmarks.Function, len(req.Functions))
	for i, name := range req.Functions {
		f, err := r.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		funcs[i] = f
	}

	seed := req.Seed
	if seed == 0 {
		seed = r.now().UnixNano()
	}

	reports := make([]Report, len(funcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, f := range funcs {
		g.Go(func() error {
			rep, err := r.runOne(gctx, f, req, seed+int64(i))
			if rep != nil {
				reports[i] = *rep
			}
			return err
		})
	}
	err := g.Wait()

	if err != nil && !isCancellation(err) {
		return nil, err
	}

	batch := &Batch{EvaluationsPerFunction: make(map[string]int)}
	for _, rep := range reports {
		if rep.Result == nil {
			continue
		}
		batch.Reports = append(batch.Reports, rep)
		batch.Evaluations += rep.Evaluations
		for name, n := range rep.Result.EvaluationsPerObjective {
			batch.EvaluationsPerFunction[name] += n
		}
	}
	return batch, err
}

func (r *Runner) runOne(ctx context.Context, f *benchmarks.Function, req Request, seed int64) (*Report, error) {
	log := r.logger.WithFields(map[string]interface{}{"function": f.Name(), "seed": seed})
	opts := []swo.Option{swo.WithLogger(log.Zap())}
	if req.StrictNumerics {
		opts = append(opts, swo.WithStrictNumerics())
	}
	if r.progress != nil {
		name := f.Name()
		opts = append(opts, swo.WithObserver(func(s swo.IterationStats) { r.progress(name, s) }))
	}

	cfg := optimization.OptimizerConfig{
		Objective:      f,
		Space:          req.Space,
		PopulationSize: req.PopulationSize,
		MaxIterations:  req.MaxIterations,
		Tol:            req.Tol,
		MaxStall:       req.MaxStall,
		RandomSeed:     seed,
		// Derived seeds may land on 0, which RandomSeed would read as unset.
		Source:         swo.NewSource(seed),
	}
	o, err := swo.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}

	done := r.metrics.RunStarted()
	start := r.now()
	res, err := o.Optimize(ctx)
	elapsed := r.now().Sub(start)
	done()

	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case isCancellation(err):
		outcome = metrics.OutcomeCancelled
	default:
		outcome = metrics.OutcomeFailed
	}
	run := metrics.Run{Function: f.Name(), Outcome: outcome, Duration: elapsed}

	if res == nil {
		r.metrics.ObserveRun(run)
		if err != nil && !isCancellation(err) {
			log.Zap().Warn("run failed", zap.Error(err))
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}
		return nil, err
	}

	run.Iterations = res.Iterations
	run.Evaluations = res.Evaluations
	run.BestScore = res.BestSolution.Value
	run.HasResult = true
	r.metrics.ObserveRun(run)

	rep := &Report{
		Function:    f.Name(),
		Dim:         req.Space.Dim,
		Seed:        seed,
		Best:        *res.BestSolution,
		Iterations:  res.Iterations,
		Evaluations: res.Evaluations,
		StopReason:  res.StopReason,
		Convergence: res.Convergence,
		Duration:    elapsed,
		Result:      res,
	}
	if f.Optimum != nil {
		rep.Optimum = f.Optimum(req.Space.Dim)
	}
	return rep, err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
