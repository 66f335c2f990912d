// Package benchmarks provides the standard test objectives and a registry
// that resolves them by name.
package benchmarks

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/copyleftdev/spiderwasp/internal/optimization"
)

// ErrUnknownFunction is returned by Lookup for unregistered names.
var ErrUnknownFunction = errors.New("unknown objective function")

// Function is a registered objective together with what is known about it.
type Function struct {
	name string
	eval optimization.ObjectiveFunction

	// Dim is the only accepted input length, or 0 when any length works.
	Dim int

	// Optimum returns the known global minimum for a dimension, or nil.
	Optimum func(dim int) *optimization.Solution

	// Description is a one-line summary.
	Description string
}

// NewFunction builds a Function. dim 0 means any dimension is accepted;
// otherwise Evaluate rejects other input lengths with a
// *optimization.DimensionError.
func NewFunction(name string, dim int, fn optimization.ObjectiveFunction) *Function {
	return &Function{name: name, eval: fn, Dim: dim}
}

// Name implements optimization.Objective.
func (f *Function) Name() string { return f.name }

// Evaluate implements optimization.Objective.
func (f *Function) Evaluate(x []float64) (float64, error) {
	if f.Dim > 0 && len(x) != f.Dim {
		return 0, &optimization.DimensionError{Function: f.name, Want: f.Dim, Got: len(x)}
	}
	return f.eval(x)
}

// Supports reports whether the function accepts dim-dimensional input.
func (f *Function) Supports(dim int) bool {
	return dim > 0 && (f.Dim == 0 || f.Dim == dim)
}

// Registry maps names to functions. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]*Function
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*Function)}
}

// Register adds f. Names must be unique.
func (r *Registry) Register(f *Function) error {
	if f == nil || f.name == "" {
		return fmt.Errorf("function must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[f.name]; exists {
		return fmt.Errorf("function %q already registered", f.name)
	}
	r.funcs[f.name] = f
	return nil
}

// Lookup resolves name.
func (r *Registry) Lookup(name string) (*Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return f, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry holding the standard functions.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, f := range Standard() {
			if err := defaultRegistry.Register(f); err != nil {
				panic(err)
			}
		}
	})
	return defaultRegistry
}
