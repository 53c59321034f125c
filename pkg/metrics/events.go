package metrics

// EventMetrics counts lifecycle events published on the administration bus.
type EventMetrics interface {
	ObserveEvent(name string, failed bool)
}

var newPrometheusEventMetrics func() EventMetrics

// RegisterEventMetricsConstructor registers the Prometheus implementation.
func RegisterEventMetricsConstructor(constructor func() EventMetrics) {
	newPrometheusEventMetrics = constructor
}

// NewEventMetrics returns the event metrics, or nil when metrics are
// disabled.
func NewEventMetrics() EventMetrics {
	if !IsEnabled() || newPrometheusEventMetrics == nil {
		return nil
	}
	return newPrometheusEventMetrics()
}
