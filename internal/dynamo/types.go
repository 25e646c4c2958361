package dynamo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Color is an RGB triple with channels in [0, 1].
type Color [3]float64

// Body is a point mass taking part in the gravitational interaction.
// Name, Radius and Color are cosmetic and never enter the physics.
type Body struct {
	Name   string
	Mass   float64 // kg
	Radius float64 // m
	Pos    r2.Vec  // m
	Vel    r2.Vec  // m/s
	Color  Color
}

// Validate reports the first configuration problem with b.
func (b Body) Validate() error {
	if !finite(b.Mass, b.Radius, b.Pos.X, b.Pos.Y, b.Vel.X, b.Vel.Y) {
		return ErrNonFinite
	}
	if b.Mass <= 0 {
		return ErrNonPositiveMass
	}
	if b.Radius < 0 {
		return ErrNegativeRadius
	}
	return nil
}

// IsValid reports whether position and velocity are free of NaN and Inf.
func (b Body) IsValid() bool {
	return finite(b.Pos.X, b.Pos.Y, b.Vel.X, b.Vel.Y)
}

// ValidateBodies checks every body and wraps the first failure in a ConfigError.
func ValidateBodies(bodies []Body) error {
	if len(bodies) == 0 {
		return ErrNoBodies
	}
	for i, b := range bodies {
		if err := b.Validate(); err != nil {
			return &ConfigError{Index: i, Name: b.Name, Wrapped: err}
		}
	}
	return nil
}

// CloneBodies returns an independent copy of bodies.
func CloneBodies(bodies []Body) []Body {
	c := make([]Body, len(bodies))
	copy(c, bodies)
	return c
}

// Snapshot is the state published after one completed tick.
type Snapshot struct {
	Session string  // id of the start() that produced it
	Tick    uint64  // 1-based within the session
	Time    float64 // accumulated simulated seconds
	Step    float64 // simulated seconds per tick
	Bodies  []Body
}

// Err returns a *SimulationError wrapping ErrInvalidState for the first
// body whose state is no longer finite, or nil.
func (s Snapshot) Err() error {
	for i, b := range s.Bodies {
		if !b.IsValid() {
			return &SimulationError{Tick: s.Tick, Time: s.Time, Body: i, Wrapped: ErrInvalidState}
		}
	}
	return nil
}

// Clone returns a copy of s that shares no memory with it.
func (s Snapshot) Clone() Snapshot {
	s.Bodies = CloneBodies(s.Bodies)
	return s
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
