package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/G1D0/routekit/internal/observe"
)

// Metrics records request count and latency per controller and route
// pattern. Requests no controller handled are labelled "none".
func Metrics(m *observe.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := NewResponseCapture(w)
			ctx, route := observe.WithRouteInfo(r.Context())

			next.ServeHTTP(rc, r.WithContext(ctx))

			controller, pattern := route.Controller, route.Pattern
			if controller == "" {
				controller, pattern = "none", "none"
			}
			m.RequestsTotal.WithLabelValues(controller, pattern, r.Method, strconv.Itoa(rc.StatusCode)).Inc()
			m.RequestDuration.WithLabelValues(controller).Observe(time.Since(start).Seconds())
		})
	}
}
