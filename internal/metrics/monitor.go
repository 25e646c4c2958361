package metrics

import (
	"sync"

	"github.com/san-kum/gravsim/internal/dynamo"
)

const historyCapacity = 600

// Monitor feeds published snapshots to a set of metrics and keeps a
// bounded history of each value along with the last snapshot. Metrics are reset whenever a snapshot
// from a new session arrives. It is safe to read from another goroutine
// while the scheduler publishes to it.
type Monitor struct {
	mu      sync.Mutex
	metrics []Metric
	last    dynamo.Snapshot
	history map[string][]float64
}

// NewMonitor returns a monitor over metrics, or Defaults() if none are given.
func NewMonitor(metrics ...Metric) *Monitor {
	if len(metrics) == 0 {
		metrics = Defaults()
	}
	return &Monitor{
		metrics: metrics,
		history: make(map[string][]float64, len(metrics)),
	}
}

// Publish observes s with every metric.
func (m *Monitor) Publish(s dynamo.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Session != m.last.Session {
		for _, metric := range m.metrics {
			metric.Reset()
		}
		clear(m.history)
	}
	m.last = s

	for _, metric := range m.metrics {
		metric.Observe(s)
		h := append(m.history[metric.Name()], metric.Value())
		if len(h) > historyCapacity {
			h = h[1:]
		}
		m.history[metric.Name()] = h
	}
}

// Values returns the current value of every metric keyed by name.
func (m *Monitor) Values() map[string]float64 {
	_, values := m.Latest()
	return values
}

// Current returns the latest-observation value of every metric that
// implements Instant.
func (m *Monitor) Current() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]float64)
	for _, metric := range m.metrics {
		if in, ok := metric.(Instant); ok {
			out[metric.Name()] = in.Current()
		}
	}
	return out
}

// History returns a copy of the recent values of the named metric.
func (m *Monitor) History(name string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.history[name]...)
}

// Latest returns the last observed snapshot together with the metric
// values as of that snapshot. Both come from the same Publish.
func (m *Monitor) Latest() (dynamo.Snapshot, map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := make(map[string]float64, len(m.metrics))
	for _, metric := range m.metrics {
		values[metric.Name()] = metric.Value()
	}
	return m.last, values
}
