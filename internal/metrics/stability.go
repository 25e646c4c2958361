package metrics

import "github.com/san-kum/gravsim/internal/dynamo"

// Stability is the fraction of observed snapshots whose state is finite.
type Stability struct {
	name       string
	violations int
	samples    int
}

// NewStability returns the "stability" metric.
func NewStability() *Stability {
	return &Stability{name: "stability"}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(snap dynamo.Snapshot) {
	s.samples++
	if snap.Err() != nil {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
