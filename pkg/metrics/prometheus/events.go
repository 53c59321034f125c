package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/postmaster/pkg/metrics"
)

type eventMetrics struct {
	events *prometheus.CounterVec
}

// NewEventMetrics creates Prometheus-backed event metrics, or nil when
// metrics are disabled.
func NewEventMetrics() metrics.EventMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	return &eventMetrics{
		events: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "postmaster_admin_events_total",
				Help: "Total number of administration lifecycle events by name and handler outcome",
			},
			[]string{"event", "outcome"}, // outcome: "ok", "failed"
		),
	}
}

func (m *eventMetrics) ObserveEvent(name string, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	m.events.WithLabelValues(name, outcome).Inc()
}
