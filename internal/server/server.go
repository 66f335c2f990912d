package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/copyleftdev/spiderwasp/internal/benchmarks"
	"github.com/copyleftdev/spiderwasp/internal/config"
	apierrors "github.com/copyleftdev/spiderwasp/internal/errors"
	"github.com/copyleftdev/spiderwasp/internal/logging"
	"github.com/copyleftdev/spiderwasp/internal/metrics"
	"github.com/copyleftdev/spiderwasp/internal/optimization/swo"
	"github.com/copyleftdev/spiderwasp/internal/runner"
)

var (
	errNotFound     = apierrors.NotFound("optimization not found")
	errAlreadyEnded = errors.New("optimization already finished")
)

// Server implements the HTTP and JSON-RPC server for the optimization service.
// It manages optimization jobs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *benchmarks.Registry
	metrics  *metrics.Collector

	optimizations   map[string]*OptimizationState
	optimizationsMu sync.RWMutex

	// slots bounds the number of jobs executing at once
	slots chan struct{}
	wg    sync.WaitGroup

	newID func() string
	now   func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry replaces the default benchmark registry.
func WithRegistry(r *benchmarks.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// WithMetrics records runs in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new server instance with the given config and logger.
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		cfg:           cfg,
		logger:        logger,
		registry:      benchmarks.Default(),
		optimizations: make(map[string]*OptimizationState),
		slots:         make(chan struct{}, max(1, cfg.Optimization.MaxConcurrentRuns)),
		newID:         func() string { return "opt_" + uuid.NewString() },
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/functions", s.handleFunctions)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Start validates req and launches the job in the background.
func (s *Server) Start(req OptimizeRequest) (*StatusResponse, error) {
	rreq, err := req.toRunnerRequest(s.cfg)
	if err != nil {
		return nil, apierrors.BadRequest("invalid optimization request", err)
	}
	for _, name := range rreq.Functions {
		if _, err := s.registry.Lookup(name); err != nil {
			return nil, apierrors.BadRequest("invalid optimization request", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := newState(s.newID(), rreq, cancel, s.now())

	s.optimizationsMu.Lock()
	s.optimizations[state.ID] = state
	resp := state.snapshot()
	s.optimizationsMu.Unlock()

	s.wg.Add(1)
	go s.runOptimization(ctx, state)

	s.logger.Info("Optimization started", map[string]interface{}{
		"optimization_id": state.ID,
		"functions":       rreq.Functions,
		"dim":             rreq.Space.Dim,
	})
	return &resp, nil
}

// Status returns a snapshot of job id.
func (s *Server) Status(id string) (*StatusResponse, error) {
	s.optimizationsMu.RLock()
	defer s.optimizationsMu.RUnlock()

	state, exists := s.optimizations[id]
	if !exists {
		return nil, errNotFound
	}
	resp := state.snapshot()
	return &resp, nil
}

// Cancel stops job id. Finished jobs cannot be cancelled.
func (s *Server) Cancel(id string) error {
	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	state, exists := s.optimizations[id]
	if !exists {
		return errNotFound
	}
	if state.Status.Terminal() {
		return apierrors.Wrap(errAlreadyEnded, http.StatusConflict,
			fmt.Sprintf("cannot cancel optimization with status %s", state.Status))
	}

	state.CancelFunc()
	now := s.now()
	state.Status = StatusCancelled
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// FunctionInfo describes a registry entry.
type FunctionInfo struct {
	Name        string `json:"name"`
	Dim         int    `json:"dim,omitempty"`
	Description string `json:"description,omitempty"`
}

// Functions lists the registry.
func (s *Server) Functions() []FunctionInfo {
	names := s.registry.Names()
	out := make([]FunctionInfo, 0, len(names))
	for _, name := range names {
		f, err := s.registry.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, FunctionInfo{Name: name, Dim: f.Dim, Description: f.Description})
	}
	return out
}

// runOptimization executes the job once a slot is free.
func (s *Server) runOptimization(ctx context.Context, state *OptimizationState) {
	defer s.wg.Done()
	defer state.CancelFunc()

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		s.optimizationsMu.Lock()
		state.finish(nil, ctx.Err(), true, s.now())
		s.optimizationsMu.Unlock()
		return
	}

	s.optimizationsMu.Lock()
	if state.Status == StatusPending {
		state.Status = StatusRunning
		state.LastUpdated = s.now()
	}
	s.optimizationsMu.Unlock()

	r := runner.New(s.registry,
		runner.WithWorkers(s.cfg.Optimization.WorkerCount),
		runner.WithLogger(s.logger.WithField("optimization_id", state.ID)),
		runner.WithMetrics(s.metrics),
		runner.WithProgress(func(function string, stats swo.IterationStats) {
			s.optimizationsMu.Lock()
			state.observe(function, stats, s.now())
			s.optimizationsMu.Unlock()
		}),
	)
	batch, err := r.Run(ctx, state.Request)

	cancelled := errors.Is(err, context.Canceled)
	s.optimizationsMu.Lock()
	state.finish(batch, err, cancelled, s.now())
	status := state.Status
	s.optimizationsMu.Unlock()

	fields := map[string]interface{}{
		"optimization_id": state.ID,
		"status":          string(status),
	}
	if err != nil && !cancelled {
		fields["error"] = err.Error()
		s.logger.Error("Optimization failed", fields)
		return
	}
	s.logger.Info("Optimization finished", fields)
}

// Close cancels every job and waits for them to stop.
func (s *Server) Close() error {
	s.optimizationsMu.RLock()
	for _, opt := range s.optimizations {
		opt.CancelFunc()
	}
	s.optimizationsMu.RUnlock()

	s.wg.Wait()
	return nil
}

// writeJSON encodes v before writing the header, so an encoding failure
// becomes a 500 instead of a truncated body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err})
		apierrors.WriteJSON(w, apierrors.Wrap(err, http.StatusInternalServerError, "encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// handleOptimize handles POST /api/v1/optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		apierrors.WriteJSON(w, apierrors.BadRequest("invalid request body", err))
		return
	}

	resp, err := s.Start(req)
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Status(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.Cancel(chi.URLParam(r, "id")); err != nil {
		apierrors.WriteJSON(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "cancellation requested",
	})
}

// handleFunctions handles GET /api/v1/functions.
func (s *Server) handleFunctions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Functions())
}
