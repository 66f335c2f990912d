package server

import (
	"context"
	"math"
	"time"

	"github.com/copyleftdev/spiderwasp/internal/config"
	"github.com/copyleftdev/spiderwasp/internal/optimization"
	"github.com/copyleftdev/spiderwasp/internal/optimization/swo"
	"github.com/copyleftdev/spiderwasp/internal/runner"
)

// Status is the lifecycle state of an optimization job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// OptimizeRequest is the body of POST /api/v1/optimize and the params of
// optimization.start. Zero values fall back to the server configuration.
type OptimizeRequest struct {
	// Functions names registry entries. Function is accepted for a single one.
	Functions []string `json:"functions,omitempty"`
	Function  string   `json:"function,omitempty"`

	// Bounds gives per-axis [lo, hi] pairs and overrides Dim, Lower and Upper.
	Bounds [][2]float64 `json:"bounds,omitempty"`
	Dim    int          `json:"dim,omitempty"`
	Lower  *float64     `json:"lower,omitempty"`
	Upper  *float64     `json:"upper,omitempty"`

	PopulationSize int     `json:"population_size,omitempty"`
	MaxIterations  int     `json:"max_iterations,omitempty"`
	Tol            float64 `json:"tol,omitempty"`
	MaxStall       int     `json:"max_stall,omitempty"`
	Seed           int64   `json:"seed,omitempty"`
	StrictNumerics bool    `json:"strict_numerics,omitempty"`
}

// toRunnerRequest fills defaults from cfg and validates everything that can
// be checked before a run starts.
func (r OptimizeRequest) toRunnerRequest(cfg *config.Config) (runner.Request, error) {
	defaults := cfg.Optimization
	req := runner.Request{
		Functions:      r.Functions,
		PopulationSize: orInt(r.PopulationSize, defaults.PopulationSize),
		MaxIterations:  orInt(r.MaxIterations, defaults.MaxIterations),
		Tol:            r.Tol,
		MaxStall:       orInt(r.MaxStall, defaults.MaxStall),
		Seed:           r.Seed,
		StrictNumerics: r.StrictNumerics,
	}
	if req.Tol == 0 {
		req.Tol = defaults.Tol
	}
	if r.Function != "" {
		req.Functions = append([]string{r.Function}, req.Functions...)
	}
	if len(req.Functions) == 0 {
		return req, optimization.NewError(optimization.KindConfiguration, "at least one function is required")
	}
	seen := make(map[string]bool, len(req.Functions))
	for _, name := range req.Functions {
		if seen[name] {
			return req, optimization.NewErrorf(optimization.KindConfiguration, "function %q requested twice", name)
		}
		seen[name] = true
	}

	if len(r.Bounds) > 0 {
		req.Space = optimization.SpaceFromBounds(r.Bounds)
	} else {
		lo, hi := defaults.LowerBound, defaults.UpperBound
		if r.Lower != nil {
			lo = *r.Lower
		}
		if r.Upper != nil {
			hi = *r.Upper
		}
		req.Space = optimization.NewBoxSpace(orInt(r.Dim, defaults.Dim), lo, hi)
	}
	if err := req.Space.Validate(); err != nil {
		return req, err
	}

	switch {
	case req.PopulationSize < swo.MinPopulation:
		return req, optimization.NewErrorf(optimization.KindConfiguration,
			"population_size must be at least %d, got %d", swo.MinPopulation, req.PopulationSize)
	case req.MaxIterations <= 0:
		return req, optimization.NewErrorf(optimization.KindConfiguration,
			"max_iterations must be positive, got %d", req.MaxIterations)
	}
	return req, nil
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// OptimizationState represents the state of an optimization job. It is
// guarded by the server's lock.
type OptimizationState struct {
	ID          string
	Status      Status
	Request     runner.Request
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	CancelFunc  context.CancelFunc

	// iterations completed per function, for progress
	iterations map[string]int
	// best score per function while running
	current map[string]float64

	Batch *runner.Batch
	Error string
}

func newState(id string, req runner.Request, cancel context.CancelFunc, now time.Time) *OptimizationState {
	return &OptimizationState{
		ID:          id,
		Status:      StatusPending,
		Request:     req,
		StartTime:   now,
		LastUpdated: now,
		CancelFunc:  cancel,
		iterations:  make(map[string]int),
		current:     make(map[string]float64),
	}
}

// Progress is the fraction of the iteration budget used so far.
func (st *OptimizationState) Progress() float64 {
	if st.Status == StatusCompleted {
		return 1
	}
	budget := len(st.Request.Functions) * st.Request.MaxIterations
	if budget == 0 {
		return 0
	}
	done := 0
	for _, n := range st.iterations {
		done += n
	}
	return float64(done) / float64(budget)
}

func (st *OptimizationState) observe(function string, stats swo.IterationStats, now time.Time) {
	st.iterations[function] = stats.Iteration
	st.current[function] = stats.BestScore
	st.LastUpdated = now
}

// finish records the batch outcome. A job cancelled through the API keeps
// its cancelled status but still gets whatever partial results exist.
func (st *OptimizationState) finish(batch *runner.Batch, err error, cancelled bool, now time.Time) {
	st.Batch = batch
	switch {
	case st.Status == StatusCancelled:
	case cancelled:
		st.Status = StatusCancelled
	case err != nil:
		st.Status = StatusFailed
		st.Error = err.Error()
	default:
		st.Status = StatusCompleted
	}
	if st.EndTime == nil {
		st.EndTime = &now
	}
	st.LastUpdated = now
}

// FunctionStatus is the per-function part of a status response.
type FunctionStatus struct {
	Function    string                  `json:"function"`
	Iterations  int                     `json:"iterations"`
	// BestScore is null until the run has a finite best score.
	BestScore   *float64                `json:"best_score"`
	Best        []float64               `json:"best_parameters,omitempty"`
	Evaluations int                     `json:"evaluations,omitempty"`
	StopReason  optimization.StopReason `json:"stop_reason,omitempty"`
}

// StatusResponse is returned by GET /api/v1/status/{id} and
// optimization.status.
type StatusResponse struct {
	ID          string           `json:"optimization_id"`
	Status      Status           `json:"status"`
	Progress    float64          `json:"progress"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     *time.Time       `json:"end_time,omitempty"`
	LastUpdated time.Time        `json:"last_update"`
	Functions   []FunctionStatus `json:"functions"`
	Evaluations int              `json:"evaluations"`
	Error       string           `json:"error,omitempty"`
}

func (st *OptimizationState) snapshot() StatusResponse {
	resp := StatusResponse{
		ID:          st.ID,
		Status:      st.Status,
		Progress:    st.Progress(),
		StartTime:   st.StartTime,
		EndTime:     st.EndTime,
		LastUpdated: st.LastUpdated,
		Error:       st.Error,
	}

	finished := make(map[string]runner.Report)
	if st.Batch != nil {
		resp.Evaluations = st.Batch.Evaluations
		for _, rep := range st.Batch.Reports {
			finished[rep.Function] = rep
		}
	}

	for _, name := range st.Request.Functions {
		fs := FunctionStatus{Function: name, Iterations: st.iterations[name]}
		if rep, ok := finished[name]; ok {
			fs.Iterations = rep.Iterations
			fs.BestScore = finiteScore(rep.Best.Value)
			fs.Best = rep.Best.Parameters
			fs.Evaluations = rep.Evaluations
			fs.StopReason = rep.StopReason
		} else if v, ok := st.current[name]; ok {
			fs.BestScore = finiteScore(v)
		}
		resp.Functions = append(resp.Functions, fs)
	}
	return resp
}

func finiteScore(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
