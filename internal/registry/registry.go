// Package registry aggregates controller routing facts: per controller, its
// mount path, controller-level middleware and a sub-router of method routes.
//
// Registration normally completes before any request is served. The
// registry locks internally, but Refresh must not race with a running
// application built from the old registry.
package registry

import (
	"sync"

	"github.com/G1D0/routekit/internal/middleware"
	"github.com/G1D0/routekit/internal/router"
)

// ControllerID is the stable key a controller author picks for a controller.
// The same string is used to bind the controller in the kernel.
type ControllerID string

// Handler is a route handler bound to its controller.
type Handler = router.Handler

// RouteEntry is one method route of a controller.
type RouteEntry = router.Route

// ControllerEntry is the aggregated routing metadata of one controller.
// Path and Middleware are updated in place; holders of the pointer observe
// the update. An empty Path mounts the controller at the root.
type ControllerEntry struct {
	ID         ControllerID
	Path       string
	Middleware []middleware.Middleware
	Router     *router.Router
}

// Routes returns the method routes in registration order.
func (e *ControllerEntry) Routes() []RouteEntry {
	return e.Router.Routes()
}

// controllerFacts are controller facts registered before any route.
type controllerFacts struct {
	path       string
	middleware []middleware.Middleware
}

// Registry maps controller identifiers to their entries, keeping the order
// in which controllers registered their first route.
type Registry struct {
	mu      sync.RWMutex
	order   []ControllerID
	entries map[ControllerID]*ControllerEntry
	pending map[ControllerID]controllerFacts
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[ControllerID]*ControllerEntry),
		pending: make(map[ControllerID]controllerFacts),
	}
}

// RegisterHandler appends a route to target's sub-router, creating the
// controller entry on first use. Duplicate (verb, path) pairs are appended
// too; the first one wins when the application is built.
func (r *Registry) RegisterHandler(verb, path string, target ControllerID, mw []middleware.Middleware, h Handler) {
	r.mu.Lock()
	entry := r.entryLocked(target)
	r.mu.Unlock()

	entry.Router.Handle(RouteEntry{
		Method:     verb,
		Path:       path,
		Middleware: append([]middleware.Middleware(nil), mw...),
		Handler:    h,
	})
}

// RegisterController sets target's mount path and controller middleware.
//
// If target has no routes yet the facts are kept aside and applied when its
// first route arrives, so the call order does not matter. A controller that
// never registers a route is never mounted.
func (r *Registry) RegisterController(path string, mw []middleware.Middleware, target ControllerID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mw = append([]middleware.Middleware(nil), mw...)
	if entry, ok := r.entries[target]; ok {
		entry.Path = path
		entry.Middleware = mw
		return
	}
	r.pending[target] = controllerFacts{path: path, middleware: mw}
}

// entryLocked returns target's entry, creating it if needed. r.mu must be held.
func (r *Registry) entryLocked(target ControllerID) *ControllerEntry {
	if entry, ok := r.entries[target]; ok {
		return entry
	}

	entry := &ControllerEntry{ID: target, Router: router.New()}
	if facts, ok := r.pending[target]; ok {
		entry.Path = facts.path
		entry.Middleware = facts.middleware
		delete(r.pending, target)
	}
	r.entries[target] = entry
	r.order = append(r.order, target)
	return entry
}

// Routes returns the controller entries in first-registration order.
// The slice is a copy; the entries are the live objects.
func (r *Registry) Routes() []*ControllerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]*ControllerEntry, 0, len(r.order))
	for _, id := range r.order {
		routes = append(routes, r.entries[id])
	}
	return routes
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(id ControllerID) (*ControllerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// Len returns the number of controllers with at least one route.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default returns the process registry for the current epoch, creating it
// on first use.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRegistry == nil {
		defaultRegistry = New()
	}
	return defaultRegistry
}

// Refresh discards the process registry and starts a new epoch. Later calls
// to Default return the new registry.
func Refresh() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = New()
	return defaultRegistry
}
