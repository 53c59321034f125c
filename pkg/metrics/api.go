package metrics

import "time"

// APIMetrics instruments the control plane HTTP API.
type APIMetrics interface {
	// ObserveRequest records a completed request. route is the matched
	// route pattern, never the raw path.
	ObserveRequest(method, route string, status int, duration time.Duration)

	// ObserveLogin records a login attempt.
	ObserveLogin(success bool)

	// ObserveRateLimited records a request rejected by the login limiter.
	ObserveRateLimited()
}

var newPrometheusAPIMetrics func() APIMetrics

// RegisterAPIMetricsConstructor registers the Prometheus implementation.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterAPIMetricsConstructor(constructor func() APIMetrics) {
	newPrometheusAPIMetrics = constructor
}

// NewAPIMetrics returns the API metrics, or nil when metrics are disabled
// or no implementation is linked in.
func NewAPIMetrics() APIMetrics {
	if !IsEnabled() || newPrometheusAPIMetrics == nil {
		return nil
	}
	return newPrometheusAPIMetrics()
}

// ObserveRequest records a request when m is not nil.
func ObserveRequest(m APIMetrics, method, route string, status int, duration time.Duration) {
	if m != nil {
		m.ObserveRequest(method, route, status, duration)
	}
}

// ObserveLogin records a login attempt when m is not nil.
func ObserveLogin(m APIMetrics, success bool) {
	if m != nil {
		m.ObserveLogin(success)
	}
}

// ObserveRateLimited records a limited request when m is not nil.
func ObserveRateLimited(m APIMetrics) {
	if m != nil {
		m.ObserveRateLimited()
	}
}
