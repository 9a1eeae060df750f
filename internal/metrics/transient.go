package metrics

import (
	"math"

	"github.com/san-kum/queuesim/internal/dynamo"
)

// MeanOccupancy averages the expected number of requests in the system over
// every observed vector.
type MeanOccupancy struct {
	name    string
	total   float64
	samples int
}

func NewMeanOccupancy() *MeanOccupancy {
	return &MeanOccupancy{name: "mean_occupancy"}
}

func (m *MeanOccupancy) Name() string { return m.name }

func (m *MeanOccupancy) Observe(p dynamo.State, t float64) {
	m.total += p.Mean()
	m.samples++
}

func (m *MeanOccupancy) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.total / float64(m.samples)
}

func (m *MeanOccupancy) Reset() {
	m.total = 0
	m.samples = 0
}

// PeakBlocking tracks the largest probability of the blocking state seen
// during a run.
type PeakBlocking struct {
	name string
	peak float64
}

func NewPeakBlocking() *PeakBlocking {
	return &PeakBlocking{name: "peak_blocking"}
}

func (b *PeakBlocking) Name() string { return b.name }

func (b *PeakBlocking) Observe(p dynamo.State, t float64) {
	if len(p) == 0 {
		return
	}
	b.peak = math.Max(b.peak, p[len(p)-1])
}

func (b *PeakBlocking) Value() float64 { return b.peak }

func (b *PeakBlocking) Reset() { b.peak = 0 }

// BlockingExceedance is the fraction of observed vectors whose blocking
// probability is above threshold.
type BlockingExceedance struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewBlockingExceedance(threshold float64) *BlockingExceedance {
	return &BlockingExceedance{
		name:      "blocking_exceedance",
		threshold: threshold,
	}
}

func (b *BlockingExceedance) Name() string { return b.name }

func (b *BlockingExceedance) Observe(p dynamo.State, t float64) {
	if len(p) == 0 {
		return
	}
	b.samples++
	if p[len(p)-1] > b.threshold {
		b.violations++
	}
}

func (b *BlockingExceedance) Value() float64 {
	if b.samples == 0 {
		return 0
	}
	return float64(b.violations) / float64(b.samples)
}

func (b *BlockingExceedance) Reset() {
	b.violations = 0
	b.samples = 0
}

// SteadyStateGap reports the entrywise distance between the last observed
// vector and a reference distribution.
type SteadyStateGap struct {
	name      string
	reference dynamo.State
	gap       float64
	samples   int
}

func NewSteadyStateGap(reference dynamo.State) *SteadyStateGap {
	return &SteadyStateGap{
		name:      "steady_state_gap",
		reference: reference.Clone(),
	}
}

func (g *SteadyStateGap) Name() string { return g.name }

func (g *SteadyStateGap) Observe(p dynamo.State, t float64) {
	g.gap = p.MaxAbsDiff(g.reference)
	g.samples++
}

func (g *SteadyStateGap) Value() float64 {
	if g.samples == 0 {
		return math.NaN()
	}
	return g.gap
}

func (g *SteadyStateGap) Reset() {
	g.gap = 0
	g.samples = 0
}
