package analysis

import (
	"math"

	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/sim"
)

// gapFloor is the smallest gap used when fitting the relaxation rate; below
// it round-off dominates the signal.
const gapFloor = 1e-10

// ConvergenceReport describes how a trajectory approaches a reference vector.
type ConvergenceReport struct {
	FinalGap float64
	// SettlingTime is the earliest time from which every later vector stays
	// within tolerance. Only meaningful when Settled is true.
	SettlingTime   float64
	Settled        bool
	RelaxationRate float64
}

// Convergence measures the entrywise distance of every vector in tr from ref.
func Convergence(tr *dynamo.Trajectory, ref dynamo.State, tol float64) ConvergenceReport {
	var report ConvergenceReport
	if tr == nil || tr.Len() == 0 {
		return report
	}

	gaps := make([]float64, tr.Len())
	settle := -1
	for k, p := range tr.States {
		gaps[k] = p.MaxAbsDiff(ref)
		if gaps[k] > tol {
			settle = -1
		} else if settle < 0 {
			settle = k
		}
	}

	report.FinalGap = gaps[len(gaps)-1]
	if settle >= 0 {
		report.Settled = true
		report.SettlingTime = tr.Times[settle]
	}
	report.RelaxationRate = relaxationRate(tr.Times, gaps)
	return report
}

// relaxationRate fits ln(gap) = a - r·t by least squares over the gaps above
// gapFloor and returns r.
func relaxationRate(times, gaps []float64) float64 {
	var n, sumT, sumY, sumTT, sumTY float64
	for k, g := range gaps {
		if g <= gapFloor {
			continue
		}
		y := math.Log(g)
		t := times[k]
		n++
		sumT += t
		sumY += y
		sumTT += t * t
		sumTY += t * y
	}
	if n < 2 {
		return 0
	}
	den := n*sumTT - sumT*sumT
	if den == 0 {
		return 0
	}
	return -(n*sumTY - sumT*sumY) / den
}

// SettlingTime integrates from p0 without storing the trajectory and reports
// the earliest time from which the gap to ref stays within tol.
func SettlingTime(s *sim.Simulator, p0 dynamo.State, cfg sim.Config, ref dynamo.State, tol float64) (float64, bool, error) {
	settled := false
	at := 0.0
	err := s.RunWithCallback(p0, cfg, func(p dynamo.State, t float64) bool {
		if p.MaxAbsDiff(ref) > tol {
			settled = false
		} else if !settled {
			settled = true
			at = t
		}
		return true
	})
	if err != nil {
		return 0, false, err
	}
	return at, settled, nil
}
