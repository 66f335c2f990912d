package optimization

import "math"

// SearchSpace is an axis-aligned box of dimension Dim.
type SearchSpace struct {
	Dim   int
	Lower []float64
	Upper []float64
}

// NewSearchSpace builds a space from per-dimension bounds. The slices are
// copied.
func NewSearchSpace(lower, upper []float64) SearchSpace {
	return SearchSpace{
		Dim:   len(lower),
		Lower: append([]float64(nil), lower...),
		Upper: append([]float64(nil), upper...),
	}
}

// NewBoxSpace builds a dim-dimensional space with the same bounds on every
// axis.
func NewBoxSpace(dim int, lo, hi float64) SearchSpace {
	if dim < 0 {
		dim = 0
	}
	s := SearchSpace{
		Dim:   dim,
		Lower: make([]float64, dim),
		Upper: make([]float64, dim),
	}
	for i := 0; i < dim; i++ {
		s.Lower[i] = lo
		s.Upper[i] = hi
	}
	return s
}

// SpaceFromBounds converts [min, max] pairs into a SearchSpace.
func SpaceFromBounds(bounds [][2]float64) SearchSpace {
	s := SearchSpace{
		Dim:   len(bounds),
		Lower: make([]float64, len(bounds)),
		Upper: make([]float64, len(bounds)),
	}
	for i, b := range bounds {
		s.Lower[i] = b[0]
		s.Upper[i] = b[1]
	}
	return s
}

// Validate checks the box invariants.
func (s SearchSpace) Validate() error {
	if s.Dim <= 0 {
		return NewErrorf(KindConfiguration, "dimension must be positive, got %d", s.Dim).
			WithComponent("search_space")
	}
	if len(s.Lower) != s.Dim || len(s.Upper) != s.Dim {
		return NewErrorf(KindConfiguration, "bounds length mismatch: dim=%d lower=%d upper=%d",
			s.Dim, len(s.Lower), len(s.Upper)).WithComponent("search_space")
	}
	for i := 0; i < s.Dim; i++ {
		lo, hi := s.Lower[i], s.Upper[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
			return NewErrorf(KindConfiguration, "bounds must be finite at index %d", i).
				WithComponent("search_space")
		}
		if lo > hi {
			return NewErrorf(KindConfiguration, "lower bound %v exceeds upper bound %v at index %d", lo, hi, i).
				WithComponent("search_space")
		}
	}
	return nil
}

// Contains reports whether x lies inside the box.
func (s SearchSpace) Contains(x []float64) bool {
	if len(x) != s.Dim {
		return false
	}
	for j, v := range x {
		if !(v >= s.Lower[j] && v <= s.Upper[j]) {
			return false
		}
	}
	return true
}

// Clip clamps x into the box in place. A NaN coordinate is replaced by the
// matching coordinate of fallback, which must itself lie in the box.
func (s SearchSpace) Clip(x, fallback []float64) {
	for j := range x {
		v := x[j]
		if math.IsNaN(v) {
			x[j] = fallback[j]
			continue
		}
		x[j] = math.Max(s.Lower[j], math.Min(v, s.Upper[j]))
	}
}
