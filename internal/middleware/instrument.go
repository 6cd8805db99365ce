package middleware

import "go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

// Instrument starts an OpenTelemetry server span per request using the
// globally registered tracer provider. Install it before RequestID so the
// request id follows the trace id.
func Instrument(operation string) Middleware {
	return otelhttp.NewMiddleware(operation)
}
