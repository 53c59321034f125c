package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheckTimeout bounds the database probe of the readiness check.
const HealthCheckTimeout = 5 * time.Second

// HealthChecker is implemented by the runtime.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// HealthHandler handles the unauthenticated health endpoints.
type HealthHandler struct {
	checker   HealthChecker
	startTime time.Time
}

// NewHealthHandler creates a health handler. A nil checker makes the
// readiness probe fail.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker, startTime: time.Now()}
}

// Liveness handles GET /health. It succeeds as long as the server responds.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"service":    "postmaster",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready. It reports 503 until the runtime
// is set and the database answers.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("runtime not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	if err := h.checker.Healthcheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"database": "healthy",
		"latency":  time.Since(start).String(),
	}))
}
