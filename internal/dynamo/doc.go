// Package dynamo provides core primitives for birth–death queueing models.
//
// The package defines the fundamental interfaces and types shared by the
// model, integrator and analysis packages:
//
//   - [State]: occupancy probability vector indexed by state number
//   - [System]: master equation dp/dt = f(p)
//   - [Integrator]: advances a vector by one output step
//   - [Metric], [Observer]: hooks notified with every emitted vector
//   - [Trajectory]: ordered (time, vector) pairs from one run
//
// # Errors
//
// Failures are reported as sentinel errors ([ErrParameterBounds],
// [ErrDimensionMismatch], [ErrUndefinedResult], [ErrInvalidState],
// [ErrInvariant]) or as typed errors wrapping them; test with errors.Is.
//
// # Thread Safety
//
// States, scenarios and generators are read-only once built. Integrators keep
// scratch buffers and must not be shared between goroutines.
package dynamo
