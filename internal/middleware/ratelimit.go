package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"

	"github.com/G1D0/routekit/internal/ratelimit"
)

// RateLimit rejects requests with 429 when the client IP exceeds its rate.
func RateLimit(limiter *ratelimit.PerClient) Middleware {
	return RateLimitWithKeyFunc(limiter, ClientIP)
}

// RateLimitWithKeyFunc is like RateLimit but uses a custom function to extract
// the client key (e.g., API key from header instead of IP).
func RateLimitWithKeyFunc(limiter *ratelimit.PerClient, keyFunc func(*http.Request) string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := limiter.Allow(keyFunc(r))
			if !ok {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", math.Ceil(retryAfter.Seconds())))
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
