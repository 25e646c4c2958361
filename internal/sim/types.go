package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/gravsim/internal/dynamo"
)

// Defaults used when no configuration overrides them.
const (
	DefaultInterval    = 16 * time.Millisecond
	DefaultStepSeconds = 1e4
)

// State is the scheduler lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

// String returns "stopped" or "running".
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Settings are the parameters of one start/stop session.
type Settings struct {
	// Interval is the wall-clock time between ticks.
	Interval time.Duration
	// StepSeconds is the simulated time advanced per tick.
	StepSeconds float64
	// StopOnInvalid ends the session after the first snapshot containing
	// NaN or Inf. The invalid snapshot is still published.
	StopOnInvalid bool
	// MaxTicks ends the session once that many ticks have been published.
	// Zero means no limit.
	MaxTicks uint64
}

// DefaultSettings returns a 16ms interval and a 1e4 second step.
func DefaultSettings() Settings {
	return Settings{
		Interval:    DefaultInterval,
		StepSeconds: DefaultStepSeconds,
	}
}

// Validate checks that the interval and step are positive and finite.
func (s Settings) Validate() error {
	if s.Interval <= 0 {
		return fmt.Errorf("interval %v: %w", s.Interval, dynamo.ErrNonPositiveInterval)
	}
	if math.IsNaN(s.StepSeconds) || math.IsInf(s.StepSeconds, 0) {
		return fmt.Errorf("step %v: %w", s.StepSeconds, dynamo.ErrNonFinite)
	}
	if s.StepSeconds <= 0 {
		return fmt.Errorf("step %v: %w", s.StepSeconds, dynamo.ErrNonPositiveStep)
	}
	return nil
}
