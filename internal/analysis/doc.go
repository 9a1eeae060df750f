// Package analysis inspects transient trajectories against the closed-form
// steady state of a queuing system.
//
//   - [Convergence]: final gap, settling time and relaxation rate of a trajectory
//   - [SettlingTime]: streaming variant that does not keep the trajectory
//   - [ResponseCurve]: a steady-state metric swept over the arrival rate
//   - [NewPortrait]: two state probabilities plotted against each other
//
// # Convergence
//
// A trajectory of an ergodic chain approaches the stationary vector
// exponentially; the decay constant is reported as the relaxation rate:
//
//	ss, _ := metrics.Analyze(scenario)
//	report := analysis.Convergence(tr, ss.Probabilities(), 1e-6)
//	if report.Settled {
//	    fmt.Println(report.SettlingTime)
//	}
package analysis
