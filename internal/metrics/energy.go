package metrics

import (
	"math"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

// EnergyDrift tracks the largest relative deviation of total energy from
// the first observed snapshot.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

// NewEnergyDrift returns the "energy_drift" metric.
func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s dynamo.Snapshot) {
	if s.Err() != nil {
		return
	}
	energy := physics.Energy(s.Bodies)

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

// Current returns the relative drift of the latest observation.
func (e *EnergyDrift) Current() float64 {
	if e.initialEnergy == 0 {
		return 0
	}
	return (e.currentEnergy - e.initialEnergy) / math.Abs(e.initialEnergy)
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// MomentumDrift tracks the largest change of total linear momentum,
// relative to the summed momentum magnitudes of the first observation.
type MomentumDrift struct {
	name     string
	initial  r2.Vec
	scale    float64
	maxDrift float64
	samples  int
}

// NewMomentumDrift returns the "momentum_drift" metric.
func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift"}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(s dynamo.Snapshot) {
	if s.Err() != nil {
		return
	}
	p := physics.Momentum(s.Bodies)

	if m.samples == 0 {
		m.initial = p
		for _, b := range s.Bodies {
			m.scale += b.Mass * r2.Norm(b.Vel)
		}
	}
	m.samples++

	if m.scale > 0 {
		drift := r2.Norm(r2.Sub(p, m.initial)) / m.scale
		m.maxDrift = math.Max(m.maxDrift, drift)
	}
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = r2.Vec{}
	m.scale = 0
	m.maxDrift = 0
	m.samples = 0
}

// AngularMomentumDrift tracks the largest change of total angular momentum
// about the origin, relative to the summed magnitudes m|r||v| of the first
// observation.
type AngularMomentumDrift struct {
	name     string
	initial  float64
	scale    float64
	maxDrift float64
	samples  int
}

// NewAngularMomentumDrift returns the "angular_momentum_drift" metric.
func NewAngularMomentumDrift() *AngularMomentumDrift {
	return &AngularMomentumDrift{name: "angular_momentum_drift"}
}

func (a *AngularMomentumDrift) Name() string { return a.name }

func (a *AngularMomentumDrift) Observe(s dynamo.Snapshot) {
	if s.Err() != nil {
		return
	}
	l := physics.AngularMomentum(s.Bodies)

	if a.samples == 0 {
		a.initial = l
		for _, b := range s.Bodies {
			a.scale += b.Mass * r2.Norm(b.Pos) * r2.Norm(b.Vel)
		}
	}
	a.samples++

	if a.scale > 0 {
		a.maxDrift = math.Max(a.maxDrift, math.Abs(l-a.initial)/a.scale)
	}
}

func (a *AngularMomentumDrift) Value() float64 { return a.maxDrift }

func (a *AngularMomentumDrift) Reset() {
	a.initial = 0
	a.scale = 0
	a.maxDrift = 0
	a.samples = 0
}
