package devserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/wizard"
)

// Metrics holds the server's prometheus collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	created    prometheus.Counter
	rejections *prometheus.CounterVec
	answers    *prometheus.CounterVec
}

// NewMetrics registers the capsule counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecapsule",
			Name:      "capsules_created_total",
			Help:      "Capsules accepted by the create endpoint.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecapsule",
			Name:      "capsule_rejections_total",
			Help:      "Create requests rejected with a field error, by field.",
		}, []string{"field"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecapsule",
			Name:      "share_answers_total",
			Help:      "Recipient answers to shared capsules, by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.created, m.rejections, m.answers)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) capsuleCreated() {
	m.created.Inc()
}

// capsuleRejected counts a rejection once per draft field, so indexed keys
// like shared_with.7 share one label.
func (m *Metrics) capsuleRejected(fields map[string][]string) {
	seen := make(map[string]bool, len(fields))
	for key := range fields {
		field := wizard.DraftField(key)
		if seen[field] {
			continue
		}
		seen[field] = true
		m.rejections.WithLabelValues(field).Inc()
	}
}

func (m *Metrics) shareAnswered(status capsule.ShareStatus) {
	m.answers.WithLabelValues(string(status)).Inc()
}
