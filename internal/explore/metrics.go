package explore

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports exploration progress. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	States      prometheus.Counter
	Transitions prometheus.Counter
	Expansions  prometheus.Counter
	Frontier    prometheus.Gauge
	Depth       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		States: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statespace",
			Name:      "states_total",
			Help:      "Distinct root states discovered.",
		}),
		Transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statespace",
			Name:      "transitions_total",
			Help:      "Transitions reported by the model.",
		}),
		Expansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statespace",
			Name:      "expansions_total",
			Help:      "States whose successors have been enumerated.",
		}),
		Frontier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statespace",
			Name:      "frontier_states",
			Help:      "States discovered but not yet expanded.",
		}),
		Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statespace",
			Name:      "depth",
			Help:      "Current breadth-first level (level strategy only).",
		}),
	}
	for _, c := range []prometheus.Collector{m.States, m.Transitions, m.Expansions, m.Frontier, m.Depth} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) state() {
	if m != nil {
		m.States.Inc()
	}
}

func (m *Metrics) transition() {
	if m != nil {
		m.Transitions.Inc()
	}
}

func (m *Metrics) expansion() {
	if m != nil {
		m.Expansions.Inc()
		m.Frontier.Dec()
	}
}

func (m *Metrics) pushed() {
	if m != nil {
		m.Frontier.Inc()
	}
}

func (m *Metrics) level(depth int) {
	if m != nil {
		m.Depth.Set(float64(depth))
	}
}
