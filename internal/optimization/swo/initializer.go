package swo

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/spiderwasp/internal/optimization"
)

// InitializePositions fills every row of dst with a point drawn uniformly
// from the box, one independent draw per coordinate in row-major order.
// dst must have space.Dim columns.
func InitializePositions(dst *mat.Dense, space optimization.SearchSpace, src rand.Source) {
	rows, cols := dst.Dims()
	axes := make([]distuv.Uniform, cols)
	for j := range axes {
		axes[j] = distuv.Uniform{Min: space.Lower[j], Max: space.Upper[j], Src: src}
	}
	for i := 0; i < rows; i++ {
		row := dst.RawRowView(i)
		for j := range row {
			row[j] = axes[j].Rand()
		}
	}
}

// NewPositions allocates n points of the given space and initializes them.
func NewPositions(n int, space optimization.SearchSpace, src rand.Source) *mat.Dense {
	m := mat.NewDense(n, space.Dim, nil)
	InitializePositions(m, space, src)
	return m
}
