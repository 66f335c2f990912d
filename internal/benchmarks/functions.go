package benchmarks

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/spiderwasp/internal/optimization"
)

// Standard returns fresh instances of the built-in test functions.
func Standard() []*Function {
	return []*Function{
		Ackley(),
		BukinN6(),
		Eggholder(),
		Himmelblau(),
		Rastrigin(),
		Rosenbrock(),
		Schwefel(),
		Sphere(),
	}
}

// at returns an Optimum func placing value at the constant point c.
func at(value, c float64) func(int) *optimization.Solution {
	return func(dim int) *optimization.Solution {
		x := make([]float64, dim)
		for i := range x {
			x[i] = c
		}
		return &optimization.Solution{Parameters: x, Value: value}
	}
}

// fixed returns an Optimum func for a 2-D only function.
func fixed(value float64, x ...float64) func(int) *optimization.Solution {
	return func(dim int) *optimization.Solution {
		if dim != len(x) {
			return nil
		}
		return &optimization.Solution{Parameters: append([]float64(nil), x...), Value: value}
	}
}

// Sphere is f(x) = Σ xᵢ².
func Sphere() *Function {
	f := NewFunction("sphere", 0, func(x []float64) (float64, error) {
		return floats.Dot(x, x), nil
	})
	f.Description = "convex quadratic bowl"
	f.Optimum = at(0, 0)
	return f
}

// Ackley uses a = 20, b = 0.2, c = 2π.
func Ackley() *Function {
	const a, b, c = 20.0, 0.2, 2 * math.Pi
	f := NewFunction("ackley", 0, func(x []float64) (float64, error) {
		d := float64(len(x))
		var sumSq, sumCos float64
		for _, v := range x {
			sumSq += v * v
			sumCos += math.Cos(c * v)
		}
		return a + math.E - a*math.Exp(-b*math.Sqrt(sumSq/d)) - math.Exp(sumCos/d), nil
	})
	f.Description = "nearly flat outer region with a deep central hole"
	f.Optimum = at(0, 0)
	return f
}

// BukinN6 has its global minimum f = 0 at (-10, 1) on a curved ridge.
func BukinN6() *Function {
	f := NewFunction("bukin_function_n6", 2, func(x []float64) (float64, error) {
		x1, x2 := x[0], x[1]
		return 100*math.Sqrt(math.Abs(x2-0.01*x1*x1)) + 0.01*math.Abs(x1+10), nil
	})
	f.Description = "many local minima along a parabolic ridge"
	f.Optimum = fixed(0, -10, 1)
	return f
}

// Eggholder has its global minimum f ≈ -959.6407 at (512, 404.2319).
func Eggholder() *Function {
	f := NewFunction("eggholder_function", 2, func(x []float64) (float64, error) {
		x1, x2 := x[0], x[1]
		term1 := -(x2 + 47) * math.Sin(math.Sqrt(math.Abs(x2+x1/2+47)))
		term2 := -x1 * math.Sin(math.Sqrt(math.Abs(x1-(x2+47))))
		return term1 + term2, nil
	})
	f.Description = "highly multimodal, minimum on the domain edge"
	f.Optimum = fixed(-959.6407, 512, 404.2319)
	return f
}

// Himmelblau has four global minima with f = 0; (3, 2) is reported.
func Himmelblau() *Function {
	f := NewFunction("himmelblau", 2, func(x []float64) (float64, error) {
		a := x[0]*x[0] + x[1] - 11
		b := x[0] + x[1]*x[1] - 7
		return a*a + b*b, nil
	})
	f.Description = "four identical global minima"
	f.Optimum = fixed(0, 3, 2)
	return f
}

// Rastrigin is 10d + Σ (xᵢ² − 10 cos 2πxᵢ).
func Rastrigin() *Function {
	f := NewFunction("rastrigin", 0, func(x []float64) (float64, error) {
		sum := 10 * float64(len(x))
		for _, v := range x {
			sum += v*v - 10*math.Cos(2*math.Pi*v)
		}
		return sum, nil
	})
	f.Description = "regular grid of local minima"
	f.Optimum = at(0, 0)
	return f
}

// Rosenbrock is Σ 100(xᵢ₊₁ − xᵢ²)² + (1 − xᵢ)².
func Rosenbrock() *Function {
	f := NewFunction("rosenbrock", 0, func(x []float64) (float64, error) {
		var sum float64
		for i := 0; i+1 < len(x); i++ {
			d := x[i+1] - x[i]*x[i]
			e := 1 - x[i]
			sum += 100*d*d + e*e
		}
		return sum, nil
	})
	f.Description = "narrow curved valley"
	f.Optimum = at(0, 1)
	return f
}

// Schwefel is 418.9829d − Σ xᵢ sin √|xᵢ|.
func Schwefel() *Function {
	f := NewFunction("schwefel_function", 0, func(x []float64) (float64, error) {
		sum := 418.9829 * float64(len(x))
		for _, v := range x {
			sum -= v * math.Sin(math.Sqrt(math.Abs(v)))
		}
		return sum, nil
	})
	f.Description = "deceptive, best minimum far from the next best"
	f.Optimum = func(dim int) *optimization.Solution {
		s := at(0, 420.9687)(dim)
		v, _ := f.eval(s.Parameters)
		s.Value = v
		return s
	}
	return f
}
