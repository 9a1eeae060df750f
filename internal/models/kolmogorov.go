package models

import "github.com/san-kum/queuesim/internal/dynamo"

// Kolmogorov is the forward master equation of a birth–death chain.
//
// The generator's rows are outflow rates from each state while the
// probability vector indexes target states, so the equation reads
//
//	dp/dt = Mᵗ·p,  (dp/dt)_j = Σ_i M[i][j]·p_i
//
// This is the only place the direction is fixed; integrators and analysis
// code go through Derive.
type Kolmogorov struct {
	gen *Generator
}

func NewKolmogorov(g *Generator) *Kolmogorov {
	return &Kolmogorov{gen: g}
}

func (k *Kolmogorov) Generator() *Generator { return k.gen }

func (k *Kolmogorov) StateDim() int { return k.gen.Dim() }

func (k *Kolmogorov) Derive(p dynamo.State, t float64) dynamo.State {
	dp := make(dynamo.State, k.gen.Dim())
	k.gen.ApplyTransposeInto(dp, p)
	return dp
}
