// Package app assembles the routing table: it mounts every controller
// recorded in a registry.Registry, in registration order, behind the
// server-level middleware, and binds handlers to kernel-resolved
// controller instances.
//
// For a request reaching a route the middleware order is
//
//	server-level → controller-level → method-level → handler
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/G1D0/routekit/internal/kernel"
	"github.com/G1D0/routekit/internal/middleware"
	"github.com/G1D0/routekit/internal/observe"
	"github.com/G1D0/routekit/internal/registry"
	"github.com/G1D0/routekit/internal/router"
)

// Override changes how one controller is mounted without touching its
// description. It usually comes from configuration.
type Override struct {
	Path     string // replaces the controller path when set
	Disabled bool   // skips the controller entirely
}

// Server builds Applications from a registry and a resolver.
type Server struct {
	registry  *registry.Registry
	kernel    kernel.Resolver
	configure func(*Application)
	logger    *slog.Logger
	onError   ErrorHandler
	notFound  http.Handler
	overrides map[registry.ControllerID]Override
	metrics   *observe.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used while building and for handler errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithErrorHandler replaces the default error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Server) { s.onError = h }
}

// WithNotFound sets the handler for requests no mount handles.
func WithNotFound(h http.Handler) Option {
	return func(s *Server) { s.notFound = h }
}

// WithOverrides sets per-controller mount overrides.
func WithOverrides(overrides map[registry.ControllerID]Override) Option {
	return func(s *Server) { s.overrides = overrides }
}

// WithMetrics records mounted routes and handler errors.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server over reg, resolving controllers through k.
func New(reg *registry.Registry, k kernel.Resolver, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		kernel:   k,
		logger:   observe.Discard(),
		notFound: http.NotFoundHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.onError == nil {
		s.onError = DefaultErrorHandler(s.logger)
	}
	return s
}

// SetServerMiddleware registers the hook that installs process-wide
// middleware. It runs once per Build, before any controller is mounted.
func (s *Server) SetServerMiddleware(configure func(a *Application)) *Server {
	s.configure = configure
	return s
}

// Build mounts every controller of the registry and returns the application.
// It fails when a controller's routes cannot be compiled.
func (s *Server) Build() (*Application, error) {
	a := &Application{notFound: s.notFound}
	if s.configure != nil {
		s.configure(a)
	}

	known := make(map[registry.ControllerID]bool)
	for _, entry := range s.registry.Routes() {
		known[entry.ID] = true

		mountPath := entry.Path
		if o, ok := s.overrides[entry.ID]; ok {
			if o.Disabled {
				s.logger.Info("controller disabled by override", "controller", entry.ID)
				continue
			}
			if o.Path != "" {
				mountPath = o.Path
			}
		}

		if err := router.ValidateMount(mountPath); err != nil {
			return nil, fmt.Errorf("build controller %s: %w", entry.ID, err)
		}
		sub, err := entry.Router.Compile(s.binder(entry.ID, mountPath), s.logger)
		if err != nil {
			return nil, fmt.Errorf("build controller %s: %w", entry.ID, err)
		}

		routes := entry.Routes()
		info := MountInfo{Controller: string(entry.ID), Path: displayPath(mountPath)}
		for _, route := range routes {
			info.Routes = append(info.Routes, RouteInfo{Method: route.Method, Path: route.Path})
		}

		a.mounts = append(a.mounts, mount{
			path:    mountPath,
			handler: middleware.Then(sub, entry.Middleware...),
			info:    info,
		})

		if s.metrics != nil {
			s.metrics.MountedRoutes.WithLabelValues(string(entry.ID)).Set(float64(len(routes)))
		}
		s.logger.Debug("controller mounted",
			"controller", entry.ID,
			"path", info.Path,
			"routes", len(routes),
			"middleware", len(entry.Middleware),
		)
	}

	for _, m := range a.mounts {
		if m.info.Controller == "" {
			if err := router.ValidateMount(m.path); err != nil {
				return nil, fmt.Errorf("build: %w", err)
			}
		}
	}

	for id := range s.overrides {
		if !known[id] {
			s.logger.Warn("override for unknown controller", "controller", id)
		}
	}

	a.handler = middleware.Then(http.HandlerFunc(a.dispatch), a.middleware...)
	return a, nil
}

// binder returns the terminal handler factory for one controller.
func (s *Server) binder(id registry.ControllerID, mountPath string) func(router.Route) http.Handler {
	return func(route router.Route) http.Handler {
		pattern := joinPath(mountPath, route.Path)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			observe.MarkRoute(r.Context(), string(id), route.Method, pattern)

			v, err := route.Handler(s.kernel, w, r)
			if err == nil {
				err = Respond(w, v)
			}
			if err != nil {
				if s.metrics != nil {
					s.metrics.HandlerErrors.WithLabelValues(string(id)).Inc()
				}
				s.onError(w, r, err)
			}
		})
	}
}

func joinPath(mountPath, routePath string) string {
	if router.MatchAll(mountPath) {
		return routePath
	}
	joined := path.Join("/", mountPath, routePath)
	if strings.HasSuffix(routePath, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

func displayPath(mountPath string) string {
	if router.MatchAll(mountPath) {
		return "*"
	}
	return mountPath
}
