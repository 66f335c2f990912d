package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/spiderwasp/internal/optimization/swo"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		PopulationSize int     `env:"SWO_POPULATION_SIZE" envDefault:"30"`
		MaxIterations  int     `env:"SWO_MAX_ITERATIONS" envDefault:"1000"`
		Dim            int     `env:"SWO_DIM" envDefault:"2"`
		LowerBound     float64 `env:"SWO_LOWER_BOUND" envDefault:"-512"`
		UpperBound     float64 `env:"SWO_UPPER_BOUND" envDefault:"512"`
		Tol            float64 `env:"SWO_TOL" envDefault:"1e-10"`
		MaxStall       int     `env:"SWO_MAX_STALL" envDefault:"300"`
		Seed           int64   `env:"SWO_SEED" envDefault:"0"`
		WorkerCount    int     `env:"OPT_WORKER_COUNT" envDefault:"10"`
		// MaxConcurrentRuns caps the runs the server executes at once.
		MaxConcurrentRuns int `env:"SWO_MAX_CONCURRENT_RUNS" envDefault:"4"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the optimization defaults. Engine-level checks still run
// per request.
func (c *Config) Validate() error {
	o := c.Optimization
	switch {
	case o.Dim <= 0:
		return fmt.Errorf("SWO_DIM must be positive, got %d", o.Dim)
	case o.LowerBound > o.UpperBound:
		return fmt.Errorf("SWO_LOWER_BOUND %v exceeds SWO_UPPER_BOUND %v", o.LowerBound, o.UpperBound)
	case o.PopulationSize < swo.MinPopulation:
		return fmt.Errorf("SWO_POPULATION_SIZE must be at least %d, got %d", swo.MinPopulation, o.PopulationSize)
	case o.MaxIterations <= 0:
		return fmt.Errorf("SWO_MAX_ITERATIONS must be positive, got %d", o.MaxIterations)
	case o.WorkerCount <= 0:
		return fmt.Errorf("OPT_WORKER_COUNT must be positive, got %d", o.WorkerCount)
	case o.MaxConcurrentRuns <= 0:
		return fmt.Errorf("SWO_MAX_CONCURRENT_RUNS must be positive, got %d", o.MaxConcurrentRuns)
	}
	return nil
}
