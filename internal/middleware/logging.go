package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/G1D0/routekit/internal/observe"
)

// Logging logs each request with method, path, status, latency, client IP,
// request ID and the controller that handled it. The request-scoped logger
// is also placed in the context for handlers (observe.LoggerFrom).
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := NewResponseCapture(w)

			reqLogger := observe.RequestLogger(logger, r.Method, r.URL.Path, ClientIP(r), observe.RequestIDFrom(r.Context()))
			ctx, route := observe.WithRouteInfo(observe.WithLogger(r.Context(), reqLogger))

			next.ServeHTTP(rc, r.WithContext(ctx))

			reqLogger.Info("request completed",
				"status", rc.StatusCode,
				"bytes", rc.Written,
				"latency_ms", time.Since(start).Milliseconds(),
				"controller", route.Controller,
				"route", route.Pattern,
			)
		})
	}
}
