// Package prometheus registers the Prometheus implementations of the
// metrics interfaces. Import it for its side effects.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/postmaster/pkg/metrics"
)

func init() {
	metrics.RegisterAPIMetricsConstructor(NewAPIMetrics)
	metrics.RegisterEventMetricsConstructor(NewEventMetrics)
}

type apiMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	logins      *prometheus.CounterVec
	rateLimited prometheus.Counter
}

// NewAPIMetrics creates Prometheus-backed API metrics, or nil when metrics
// are disabled.
func NewAPIMetrics() metrics.APIMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}

	return &apiMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "postmaster_api_requests_total",
				Help: "Total number of API requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "postmaster_api_request_duration_milliseconds",
				Help: "Duration of API requests in milliseconds",
				Buckets: []float64{
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms
					250,  // 250ms - password hashing
					500,  // 500ms
					1000, // 1s
					5000, // 5s
				},
			},
			[]string{"method", "route"},
		),
		logins: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "postmaster_api_logins_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"}, // "success", "failure"
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "postmaster_api_rate_limited_total",
				Help: "Total number of login requests rejected by the rate limiter",
			},
		),
	}
}

func (m *apiMetrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *apiMetrics) ObserveLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *apiMetrics) ObserveRateLimited() {
	m.rateLimited.Inc()
}
