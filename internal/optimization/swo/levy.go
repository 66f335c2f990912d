package swo

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// levyBeta is the stability exponent of the Lévy-stable step.
	levyBeta = 1.5
	// levyScale multiplies every step.
	levyScale = 0.05
)

// levySigma is the Mantegna scale of the numerator normal for levyBeta.
var levySigma = math.Pow(
	math.Gamma(1+levyBeta)*math.Sin(math.Pi*levyBeta/2)/
		(math.Gamma((1+levyBeta)/2)*levyBeta*math.Pow(2, (levyBeta-1)/2)),
	1/levyBeta,
)

// LevySampler draws heavy-tailed step vectors with Mantegna's algorithm.
// It holds no state besides the random source.
type LevySampler struct {
	u distuv.Normal
	v distuv.Normal
}

// NewLevySampler returns a sampler drawing from src.
func NewLevySampler(src rand.Source) *LevySampler {
	return &LevySampler{
		u: distuv.Normal{Mu: 0, Sigma: levySigma, Src: src},
		v: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
}

// Step returns a new dim-length step vector.
func (s *LevySampler) Step(dim int) []float64 {
	step := make([]float64, dim)
	s.StepInto(step)
	return step
}

// StepInto fills dst with a step. All numerator draws precede all
// denominator draws. Values may be arbitrarily large, or infinite when a
// denominator draw is zero.
func (s *LevySampler) StepInto(dst []float64) {
	for j := range dst {
		dst[j] = s.u.Rand()
	}
	for j := range dst {
		dst[j] = levyScale * dst[j] / math.Pow(math.Abs(s.v.Rand()), 1/levyBeta)
	}
}
