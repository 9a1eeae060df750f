package models

import (
	"fmt"
	"math"

	"github.com/san-kum/queuesim/internal/dynamo"
)

// RowSumTolerance bounds |Σ_j M[i][j]| for every row of a built generator.
const RowSumTolerance = 1e-9

// Generator is the transition-rate matrix of the birth–death chain on states
// 0..S. Row i holds the outflow rates of state i: M[i][i+1] is the birth
// rate, M[i][i-1] the death rate and the diagonal their negated sum.
type Generator struct {
	n    int
	data []float64
}

// NewGenerator builds the generator for s. State S is blocking: it has no
// birth transition, an arrival there is discarded.
func NewGenerator(s Scenario) (*Generator, error) {
	if s.channels < 1 || s.capacity < 0 || !(s.arrivalRate > 0) || !(s.serviceRate > 0) {
		return nil, &dynamo.ParameterError{Field: "scenario", Value: float64(s.channels), Reason: "not built by NewScenario"}
	}

	n := s.NumStates()
	g := &Generator{n: n, data: make([]float64, n*n)}

	for i := 0; i < n; i++ {
		birth := BirthRate(s, i)
		death := DeathRate(s, i)
		if i+1 < n {
			g.data[i*n+i+1] = birth
		}
		if i > 0 {
			g.data[i*n+i-1] = death
		}
		g.data[i*n+i] = -(birth + death)
	}

	if err := g.checkRows(); err != nil {
		return nil, err
	}
	return g, nil
}

// BirthRate is the rate of i → i+1: λ below the blocking state, 0 at S.
func BirthRate(s Scenario, i int) float64 {
	if i < s.MaxState() {
		return s.arrivalRate
	}
	return 0
}

// DeathRate is the rate of i → i−1: each busy channel serves at μ, and once
// all c channels are busy the extra occupants only wait.
func DeathRate(s Scenario, i int) float64 {
	if i < s.channels {
		return float64(i) * s.serviceRate
	}
	return float64(s.channels) * s.serviceRate
}

func (g *Generator) checkRows() error {
	for i := 0; i < g.n; i++ {
		sum := 0.0
		for j := 0; j < g.n; j++ {
			sum += g.data[i*g.n+j]
		}
		if math.Abs(sum) > RowSumTolerance {
			return fmt.Errorf("%w: row %d sums to %g", dynamo.ErrInvariant, i, sum)
		}
	}
	return nil
}

// Dim returns S+1.
func (g *Generator) Dim() int { return g.n }

// At returns M[i][j].
func (g *Generator) At(i, j int) float64 { return g.data[i*g.n+j] }

// Rows returns a copy of the matrix as ordered rows of signed rates.
func (g *Generator) Rows() [][]float64 {
	rows := make([][]float64, g.n)
	for i := range rows {
		rows[i] = make([]float64, g.n)
		copy(rows[i], g.data[i*g.n:(i+1)*g.n])
	}
	return rows
}

// ApplyTransposeInto writes Mᵗ·p into dst: dst[j] = Σ_i M[i][j]·p[i].
func (g *Generator) ApplyTransposeInto(dst, p dynamo.State) {
	for j := 0; j < g.n; j++ {
		dst[j] = 0
	}
	for i := 0; i < g.n; i++ {
		pi := p[i]
		if pi == 0 {
			continue
		}
		row := g.data[i*g.n : (i+1)*g.n]
		for j, m := range row {
			dst[j] += m * pi
		}
	}
}
