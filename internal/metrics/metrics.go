// ABOUTME: Prometheus collectors for generation activity
// ABOUTME: Counts terminal outcomes and forwarded fragments, tracks active streams

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for completed generations.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Metrics holds the generation collectors on a private registry so tests
// can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	generations *prometheus.CounterVec
	fragments   prometheus.Counter
	active      prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fireside_generations_total",
			Help: "Generation streams by terminal outcome.",
		}, []string{"outcome"}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fireside_fragments_forwarded_total",
			Help: "Fragments forwarded to clients.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fireside_active_generations",
			Help: "Generation streams currently bound to a session.",
		}),
	}

	m.registry.MustRegister(m.generations, m.fragments, m.active)
	return m
}

// GenerationStarted records a stream entering the binding state.
func (m *Metrics) GenerationStarted() {
	m.active.Inc()
}

// GenerationEnded records a stream reaching a terminal state.
func (m *Metrics) GenerationEnded(outcome string) {
	m.active.Dec()
	m.generations.WithLabelValues(outcome).Inc()
}

// FragmentForwarded records one fragment delivered to a client.
func (m *Metrics) FragmentForwarded() {
	m.fragments.Inc()
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
