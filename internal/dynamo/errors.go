package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation and control synthesis.
var (
	// ErrInvalidState indicates a state vector holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrInvalidHorizon indicates duration/dt is not a positive whole number of steps.
	ErrInvalidHorizon = errors.New("dynamo: duration is not a whole number of steps")

	// ErrHorizonTooShort indicates a horizon too short to hold a gain sequence.
	ErrHorizonTooShort = errors.New("dynamo: horizon must span at least two steps")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates non-conformable vectors or matrices.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrSingular indicates R + BᵗPB could not be inverted.
	ErrSingular = errors.New("dynamo: singular matrix in riccati recursion")
)

// SimulationError wraps an error with the step at which it occurred.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
