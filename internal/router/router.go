// Package router holds the per-controller sub-router: an ordered list of
// method routes that compiles onto httprouter when the application is built.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/G1D0/routekit/internal/kernel"
	"github.com/G1D0/routekit/internal/middleware"
	"github.com/julienschmidt/httprouter"
)

// Handler is a route handler bound to a controller. It resolves its
// controller through k. A nil result means the handler wrote the response
// itself; anything else is serialized by the assembler.
type Handler func(k kernel.Resolver, w http.ResponseWriter, r *http.Request) (any, error)

// Route is a single method route inside a controller.
type Route struct {
	Method     string // upper-case HTTP verb
	Path       string // httprouter pattern, relative to the controller mount
	Middleware []middleware.Middleware
	Handler    Handler
}

// Router aggregates the routes of one controller in registration order.
// Duplicates are kept; the first one wins when compiled.
type Router struct {
	mu     sync.RWMutex
	routes []Route
}

// New creates an empty sub-router.
func New() *Router {
	return &Router{}
}

// Handle appends a route.
func (rt *Router) Handle(route Route) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.routes = append(rt.routes, route)
}

// Routes returns a copy of the routes in registration order.
func (rt *Router) Routes() []Route {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return append([]Route(nil), rt.routes...)
}

// Len returns the number of registered routes.
func (rt *Router) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.routes)
}

// Compile builds an http.Handler for the routes. bind turns a route into the
// terminal handler; method middleware is chained in front of it. Requests
// that match no route are passed to the fallthrough handler stored in the
// request context (see WithFallthrough), or get a 404.
//
// GET routes also answer HEAD unless a HEAD route exists for the same path.
func (rt *Router) Compile(bind func(Route) http.Handler, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	hr := httprouter.New()
	hr.RedirectTrailingSlash = false
	hr.RedirectFixedPath = false
	hr.HandleMethodNotAllowed = false
	hr.HandleOPTIONS = false
	hr.NotFound = http.HandlerFunc(Fallthrough)

	seen := make(map[string]bool)
	var implicitHead []Route

	for _, route := range rt.Routes() {
		key := route.Method + " " + route.Path
		if seen[key] {
			logger.Warn("duplicate route ignored, first registration wins",
				"method", route.Method,
				"path", route.Path,
			)
			continue
		}
		seen[key] = true

		if err := register(hr, route.Method, route.Path, middleware.Then(bind(route), route.Middleware...)); err != nil {
			return nil, err
		}
		if route.Method == http.MethodGet {
			implicitHead = append(implicitHead, route)
		}
	}

	for _, route := range implicitHead {
		if seen[http.MethodHead+" "+route.Path] {
			continue
		}
		if err := register(hr, http.MethodHead, route.Path, middleware.Then(bind(route), route.Middleware...)); err != nil {
			return nil, err
		}
	}

	return hr, nil
}

// register converts httprouter's registration panics into errors.
func register(hr *httprouter.Router, method, path string, h http.Handler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("register %s %s: %v", method, path, p)
		}
	}()
	hr.Handler(method, path, h)
	return nil
}

// Params returns the path parameters matched for r: those of the mount path
// first, then those of the route.
func Params(r *http.Request) httprouter.Params {
	route := httprouter.ParamsFromContext(r.Context())
	mount := MountParams(r)
	if len(mount) == 0 {
		return route
	}
	params := make(httprouter.Params, 0, len(mount)+len(route))
	return append(append(params, mount...), route...)
}

type fallthroughKey struct{}

// WithFallthrough stores the handler to run when a sub-router misses.
func WithFallthrough(ctx context.Context, next http.Handler) context.Context {
	return context.WithValue(ctx, fallthroughKey{}, next)
}

// Fallthrough hands the request to the handler stored by WithFallthrough,
// or replies 404 when there is none.
func Fallthrough(w http.ResponseWriter, r *http.Request) {
	if next, ok := r.Context().Value(fallthroughKey{}).(http.Handler); ok && next != nil {
		next.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}
