// Package metrics exposes Prometheus collectors for optimization runs and
// the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "swo"

// Run outcomes used as the outcome label.
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Collector groups the collectors. A nil *Collector is valid and records
// nothing.
type Collector struct {
	runs        *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	iterations  *prometheus.HistogramVec
	duration    *prometheus.HistogramVec
	bestScore   *prometheus.GaugeVec
	active      prometheus.Gauge
	panics      prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which is what tests that read values directly want.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Optimization runs by objective and outcome.",
		}, []string{"function", "outcome"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Objective evaluations performed.",
		}, []string{"function"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_iterations",
			Help:      "Iterations completed per run.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"function"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time per run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function"}),
		bestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_score",
			Help:      "Best objective value of the most recent run.",
		}, []string{"function"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently executing.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panics_recovered_total",
			Help:      "Panics recovered by the HTTP middleware.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.runs, c.evaluations, c.iterations, c.duration, c.bestScore, c.active, c.panics)
	}
	return c
}

// Run describes a finished run.
type Run struct {
	Function    string
	Outcome     string
	Iterations  int
	Evaluations int
	BestScore   float64
	Duration    time.Duration
	// HasResult is set when the run returned a result, possibly partial.
	HasResult bool
}

// ObserveRun records a finished run. Best score and iterations are only
// recorded when the run produced a result.
func (c *Collector) ObserveRun(r Run) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(r.Function, r.Outcome).Inc()
	c.evaluations.WithLabelValues(r.Function).Add(float64(r.Evaluations))
	c.duration.WithLabelValues(r.Function).Observe(r.Duration.Seconds())
	if r.HasResult {
		c.iterations.WithLabelValues(r.Function).Observe(float64(r.Iterations))
		c.bestScore.WithLabelValues(r.Function).Set(r.BestScore)
	}
}

// RunStarted increments the active run gauge and returns the matching
// decrement.
func (c *Collector) RunStarted() func() {
	if c == nil {
		return func() {}
	}
	c.active.Inc()
	return c.active.Dec
}

// PanicRecovered counts a recovered handler panic.
func (c *Collector) PanicRecovered() {
	if c == nil {
		return
	}
	c.panics.Inc()
}
