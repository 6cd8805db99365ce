package observe

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	// RequestIDHeader is the header carrying the request id.
	RequestIDHeader = "X-Request-ID"
)

// requestIDKey is the context key for the request id.
type requestIDKey struct{}

// NewRequestID returns a 32 char hex id. When ctx carries a valid
// OpenTelemetry span the trace id is reused so logs and traces line up.
func NewRequestID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// RequestIDFromRequest reuses the client's X-Request-ID or generates a new one.
func RequestIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return NewRequestID(r.Context())
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom retrieves the request id from context.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RouteInfo describes the route that ended up handling a request.
// Outer middleware installs an empty RouteInfo with WithRouteInfo and
// reads it back after the chain returns; the dispatcher fills it in.
type RouteInfo struct {
	Controller string
	Method     string
	Pattern    string
}

type routeInfoKey struct{}

// WithRouteInfo returns a context holding a fresh RouteInfo, plus that RouteInfo.
// If ctx already carries one it is reused.
func WithRouteInfo(ctx context.Context) (context.Context, *RouteInfo) {
	if ri, ok := ctx.Value(routeInfoKey{}).(*RouteInfo); ok {
		return ctx, ri
	}
	ri := &RouteInfo{}
	return context.WithValue(ctx, routeInfoKey{}, ri), ri
}

// MarkRoute records the matched route on the RouteInfo carried by ctx, if any.
func MarkRoute(ctx context.Context, controller, method, pattern string) {
	if ri, ok := ctx.Value(routeInfoKey{}).(*RouteInfo); ok {
		ri.Controller = controller
		ri.Method = method
		ri.Pattern = pattern
	}
}
