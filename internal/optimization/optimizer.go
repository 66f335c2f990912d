package optimization

import (
	"context"
	"math/rand/v2"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process until it terminates or ctx is
	// cancelled.
	Optimize(ctx context.Context) (*OptimizationResult, error)

	// Stop gracefully stops the optimization process at the next iteration
	// boundary.
	Stop()
}

// OptimizerConfig contains configuration for the optimizer
type OptimizerConfig struct {
	// Objective function to minimize
	Objective Objective

	// Space is the search box
	Space SearchSpace

	// PopulationSize is the initial number of active agents
	PopulationSize int

	// Maximum number of iterations
	MaxIterations int

	// Tol is the stall threshold on the change of the best score
	Tol float64

	// MaxStall is the number of consecutive stalled iterations that ends a run
	MaxStall int

	// Source is the random source for the run. When nil, a source is built
	// from RandomSeed.
	Source rand.Source

	// Random seed for reproducibility (0 means seeded from the clock)
	RandomSeed int64
}

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64 `json:"parameters" yaml:"parameters"`
	Value      float64   `json:"value" yaml:"value"`
}

// StopReason tells why a run terminated.
type StopReason string

const (
	StopMaxIterations StopReason = "max_iterations"
	StopStalled       StopReason = "stalled"
	StopCancelled     StopReason = "cancelled"
)

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution

	// Convergence holds the best score after each completed iteration.
	Convergence []float64

	Iterations int

	// Evaluations is the total number of objective calls.
	Evaluations int

	// EvaluationsPerObjective is keyed by Objective.Name().
	EvaluationsPerObjective map[string]int

	StopReason StopReason
}

// Converged reports whether the run ended because the best score stalled.
func (r *OptimizationResult) Converged() bool {
	return r != nil && r.StopReason == StopStalled
}
