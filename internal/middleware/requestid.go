package middleware

import (
	"net/http"

	"github.com/G1D0/routekit/internal/observe"
)

// RequestID reuses the client's X-Request-ID or generates one, stores it in
// the context and echoes it on the response.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := observe.RequestIDFromRequest(r)

			r = r.WithContext(observe.WithRequestID(r.Context(), id))
			w.Header().Set(observe.RequestIDHeader, id)

			next.ServeHTTP(w, r)
		})
	}
}
