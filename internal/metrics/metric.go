package metrics

import "github.com/san-kum/gravsim/internal/dynamo"

// Metric accumulates a scalar over the snapshots of one session.
type Metric interface {
	Name() string
	Observe(s dynamo.Snapshot)
	Value() float64
	Reset()
}

// Instant is implemented by metrics that also report the value of the
// latest observation alone, as opposed to a running extreme.
type Instant interface {
	Current() float64
}

// Defaults returns the metrics reported for every run.
func Defaults() []Metric {
	return []Metric{
		NewEnergyDrift(),
		NewMomentumDrift(),
		NewAngularMomentumDrift(),
		NewStability(),
	}
}
