package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a body with NaN or Inf position or velocity.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrNonPositiveMass indicates a body whose mass is zero or negative.
	ErrNonPositiveMass = errors.New("dynamo: mass must be positive")

	// ErrNegativeRadius indicates a body with a negative display radius.
	ErrNegativeRadius = errors.New("dynamo: radius must not be negative")

	// ErrNonFinite indicates a NaN or Inf value supplied as configuration.
	ErrNonFinite = errors.New("dynamo: value must be finite")

	// ErrNoBodies indicates an empty body sequence.
	ErrNoBodies = errors.New("dynamo: at least one body is required")

	// ErrNonPositiveStep indicates a simulated timestep that is zero or negative.
	ErrNonPositiveStep = errors.New("dynamo: timestep must be positive")

	// ErrNonPositiveInterval indicates a wall-clock update interval that is zero or negative.
	ErrNonPositiveInterval = errors.New("dynamo: update interval must be positive")

	// ErrClosed indicates a command sent to a scheduler that has been closed.
	ErrClosed = errors.New("dynamo: scheduler closed")
)

// ConfigError wraps a configuration error with the offending body.
type ConfigError struct {
	Index   int
	Name    string
	Wrapped error
}

func (e *ConfigError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("body %d: %v", e.Index, e.Wrapped)
	}
	return fmt.Sprintf("body %d (%s): %v", e.Index, e.Name, e.Wrapped)
}

func (e *ConfigError) Unwrap() error {
	return e.Wrapped
}

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Tick    uint64
	Time    float64
	Body    int
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("tick %d (t=%.4g): body %d: %v", e.Tick, e.Time, e.Body, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
