// Package health decodes the responses of the server's health endpoints.
package health

// Response is the envelope returned by GET /health and GET /health/ready.
type Response[T any] struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      T      `json:"data"`
	Error     string `json:"error,omitempty"`
}

// Liveness is the payload of GET /health.
type Liveness struct {
	Service   string `json:"service"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Readiness is the payload of GET /health/ready.
type Readiness struct {
	Database string `json:"database"`
	Latency  string `json:"latency"`
}

// Healthy reports whether the server answered "healthy".
func (r Response[T]) Healthy() bool {
	return r.Status == "healthy"
}
