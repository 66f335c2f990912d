package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/spiderwasp/internal/benchmarks"
	"github.com/copyleftdev/spiderwasp/internal/config"
	"github.com/copyleftdev/spiderwasp/internal/export"
	"github.com/copyleftdev/spiderwasp/internal/optimization"
	"github.com/copyleftdev/spiderwasp/internal/runner"
)

type runOptions struct {
	functions []string
	dim       int
	pop       int
	iters     int
	lower     float64
	upper     float64
	seed      int64
	tol       float64
	maxStall  int
	workers   int
	strict    bool
	out       string
	trace     string
	plot      string
	landscape string
	proj      string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Optimize one or more benchmark functions",
		Long: `Run the spider wasp optimizer on each function given with --function.
Unset flags take their values from the SWO_* environment variables.`,
		Example: `  swo run --function sphere --dim 2 --seed 42
  swo run --function ackley,rastrigin --dim 10 --out report.yaml --plot convergence.png
  swo run --function eggholder_function --landscape plots --projection heatmap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.applyConfig(cmd); err != nil {
				return err
			}
			if _, err := export.ParseProjection(opts.proj); err != nil {
				return err
			}
			return runBatch(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.functions, "function", "f", nil, "Benchmark function names, comma separated (required)")
	f.IntVar(&opts.dim, "dim", 2, "Problem dimension")
	f.IntVar(&opts.pop, "pop", 30, "Initial population size")
	f.IntVar(&opts.iters, "iters", 1000, "Maximum iterations")
	f.Float64Var(&opts.lower, "lower", -512, "Lower bound on every axis")
	f.Float64Var(&opts.upper, "upper", 512, "Upper bound on every axis")
	f.Int64Var(&opts.seed, "seed", 0, "Batch seed; function i uses seed+i (0 seeds from the clock)")
	f.Float64Var(&opts.tol, "tol", 1e-10, "Stall tolerance on the best score")
	f.IntVar(&opts.maxStall, "max-stall", 300, "Stalled iterations before stopping early")
	f.IntVar(&opts.workers, "workers", 0, "Concurrent runs (default OPT_WORKER_COUNT)")
	f.BoolVar(&opts.strict, "strict", false, "Fail on non-finite objective values")
	f.StringVar(&opts.out, "out", "", "Write a report to this .json or .yaml file")
	f.StringVar(&opts.trace, "trace", "", "Write the convergence traces to this CSV file")
	f.StringVar(&opts.plot, "plot", "", "Save a convergence plot (png, svg or pdf)")
	f.StringVar(&opts.landscape, "landscape", "", "Save a <function>_<projection>.png landscape per function into this directory")
	f.StringVar(&opts.proj, "projection", string(export.ProjectionContour), "Landscape projection: contour or heatmap")
	_ = cmd.MarkFlagRequired("function")

	return cmd
}

// applyConfig fills flags the user did not set from the environment.
func (o *runOptions) applyConfig(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	d := cfg.Optimization
	f := cmd.Flags()
	if !f.Changed("dim") {
		o.dim = d.Dim
	}
	if !f.Changed("pop") {
		o.pop = d.PopulationSize
	}
	if !f.Changed("iters") {
		o.iters = d.MaxIterations
	}
	if !f.Changed("lower") {
		o.lower = d.LowerBound
	}
	if !f.Changed("upper") {
		o.upper = d.UpperBound
	}
	if !f.Changed("seed") {
		o.seed = d.Seed
	}
	if !f.Changed("tol") {
		o.tol = d.Tol
	}
	if !f.Changed("max-stall") {
		o.maxStall = d.MaxStall
	}
	if o.workers <= 0 {
		o.workers = d.WorkerCount
	}
	return nil
}

func runBatch(cmd *cobra.Command, opts *runOptions) error {
	logger, err := cmdLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	space := optimization.NewBoxSpace(opts.dim, opts.lower, opts.upper)
	r := runner.New(nil, runner.WithWorkers(opts.workers), runner.WithLogger(logger))
	batch, err := r.Run(ctx, runner.Request{
		Functions:      opts.functions,
		Space:          space,
		PopulationSize: opts.pop,
		MaxIterations:  opts.iters,
		Tol:            opts.tol,
		MaxStall:       opts.maxStall,
		Seed:           opts.seed,
		StrictNumerics: opts.strict,
	})
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return err
	}

	if err := writeOutputs(batch, space, opts); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		if err := writeJSON(out, batch); err != nil {
			return err
		}
	} else {
		printBatch(out, batch)
	}

	if interrupted {
		return fmt.Errorf("interrupted, partial results shown: %w", err)
	}
	return nil
}

func writeOutputs(batch *runner.Batch, space optimization.SearchSpace, opts *runOptions) error {
	if opts.out != "" {
		if err := export.WriteReport(opts.out, batch); err != nil {
			return err
		}
	}
	if opts.trace != "" {
		if err := export.WriteTraceFile(opts.trace, batch.Reports); err != nil {
			return err
		}
	}
	if opts.plot != "" && len(batch.Reports) > 0 {
		if err := export.PlotConvergence(opts.plot, batch.Reports); err != nil {
			return err
		}
	}
	if opts.landscape != "" && len(batch.Reports) > 0 {
		if err := plotLandscapes(opts.landscape, batch, space, opts.proj); err != nil {
			return err
		}
	}
	return nil
}

func plotLandscapes(dir string, batch *runner.Batch, space optimization.SearchSpace, projection string) error {
	proj, err := export.ParseProjection(projection)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	reg := benchmarks.Default()
	for _, rep := range batch.Reports {
		fn, err := reg.Lookup(rep.Function)
		if err != nil {
			return err
		}
		path := export.LandscapePath(dir, rep.Function, proj)
		if err := export.PlotLandscape(path, fn, space, rep.Best.Parameters, proj); err != nil {
			return err
		}
	}
	return nil
}

func printBatch(w io.Writer, batch *runner.Batch) {
	for _, rep := range batch.Reports {
		fmt.Fprintf(w, "%s\n", rep.Function)
		fmt.Fprintf(w, "  fmin:        %.10g\n", rep.Best.Value)
		fmt.Fprintf(w, "  xmin:        %v\n", rep.Best.Parameters)
		if rep.Optimum != nil {
			fmt.Fprintf(w, "  known fmin:  %.10g\n", rep.Optimum.Value)
		}
		fmt.Fprintf(w, "  iterations:  %d (%s)\n", rep.Iterations, rep.StopReason)
		fmt.Fprintf(w, "  evaluations: %d\n", batch.EvaluationsPerFunction[rep.Function])
		fmt.Fprintf(w, "  seed:        %d\n", rep.Seed)
		fmt.Fprintf(w, "  elapsed:     %s\n", rep.Duration)
	}
	fmt.Fprintf(w, "total evaluations: %d\n", batch.Evaluations)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
