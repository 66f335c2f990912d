package optimization

import "fmt"

// Objective is a named scalar function to be minimized. Evaluate must be
// deterministic for a fixed input and free of side effects.
type Objective interface {
	Name() string
	Evaluate(x []float64) (float64, error)
}

// ObjectiveFunction is the plain function form of an objective.
type ObjectiveFunction func([]float64) (float64, error)

type namedObjective struct {
	name string
	fn   ObjectiveFunction
}

// NewObjective attaches a name to fn.
func NewObjective(name string, fn ObjectiveFunction) Objective {
	return &namedObjective{name: name, fn: fn}
}

func (o *namedObjective) Name() string { return o.name }

func (o *namedObjective) Evaluate(x []float64) (float64, error) { return o.fn(x) }

// DimensionError is returned by objectives that only accept a fixed input
// length.
type DimensionError struct {
	Function string
	Want     int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s is defined only for %d-dimensional input, got %d", e.Function, e.Want, e.Got)
}
