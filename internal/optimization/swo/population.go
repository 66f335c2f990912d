package swo

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// population is a fixed-capacity arena of agents. Rows at or beyond active
// are frozen: kept in storage but never updated or evaluated again.
type population struct {
	positions *mat.Dense
	fitness   []float64
	active    int
}

func newPopulation(positions *mat.Dense) *population {
	n, _ := positions.Dims()
	return &population{
		positions: positions,
		fitness:   make([]float64, n),
		active:    n,
	}
}

// capacity is the number of stored agents, frozen ones included.
func (p *population) capacity() int {
	n, _ := p.positions.Dims()
	return n
}

// row returns agent i's position backed by the arena.
func (p *population) row(i int) []float64 {
	return p.positions.RawRowView(i)
}

// best returns the index of the lowest fitness among active agents.
func (p *population) best() int {
	return floats.MinIdx(p.fitness[:p.active])
}

// shrink lowers the active size to n. It never grows the population.
func (p *population) shrink(n int) {
	if n < p.active {
		p.active = n
	}
}
