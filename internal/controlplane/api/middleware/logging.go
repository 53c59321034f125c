package middleware

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/internal/telemetry"
)

// RequestLogger attaches a logger.LogContext to the request and logs its
// completion. Health probes are logged at DEBUG.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc := logger.NewLogContext(chimw.GetReqID(r.Context()), clientIP(r))
		lc.TraceID = telemetry.TraceID(r.Context())
		ctx := logger.WithContext(r.Context(), lc)

		logger.DebugCtx(ctx, "API request started", logger.KeyMethod, r.Method, logger.KeyPath, r.URL.Path)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		args := []any{
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			logger.DurationMs(lc.DurationMs()),
		}
		if isHealthPath(r.URL.Path) {
			logger.DebugCtx(ctx, "API request completed", args...)
		} else {
			logger.InfoCtx(ctx, "API request completed", args...)
		}
	})
}

func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}
