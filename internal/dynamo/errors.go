package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for queueing model operations.
var (
	// ErrInvalidState indicates a probability vector with NaN, Inf or negative
	// entries, or with no mass to normalize.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN, Inf, negative or zero mass)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates a vector whose length does not match the
	// generator dimension.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrUndefinedResult indicates a closed-form characteristic has no finite value.
	ErrUndefinedResult = errors.New("dynamo: closed-form result undefined")

	// ErrInvariant indicates a built generator violates the zero row-sum property.
	ErrInvariant = errors.New("dynamo: generator invariant violated")
)

// ParameterError reports which scenario field failed validation.
type ParameterError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("dynamo: invalid %s=%g: %s", e.Field, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return ErrParameterBounds
}

// DomainError reports a steady-state characteristic that cannot be evaluated.
type DomainError struct {
	Metric string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("dynamo: %s undefined: %s", e.Metric, e.Reason)
}

func (e *DomainError) Unwrap() error {
	return ErrUndefinedResult
}

// SimulationError wraps an error with integration context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
