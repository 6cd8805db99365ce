// Package annotate describes controllers: which verbs and paths their
// methods answer and which middleware guards them. Descriptions are written
// into a registry.Registry; nothing is mounted until the application is built.
//
//	annotate.For[*FooController](reg, "FooController").
//		Controller("/foo", auth).
//		Get("/", (*FooController).Index).
//		Method("propfind", "/", (*FooController).Props)
package annotate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/G1D0/routekit/internal/kernel"
	"github.com/G1D0/routekit/internal/middleware"
	"github.com/G1D0/routekit/internal/registry"
)

// ErrInvalidVerb is the panic value (wrapped) for a verb that is not a
// lower-case HTTP token.
var ErrInvalidVerb = errors.New("invalid HTTP verb")

// Action is a controller method as a method expression, e.g.
// (*FooController).Index. The first argument is the resolved controller.
type Action[C any] func(c C, w http.ResponseWriter, r *http.Request) (any, error)

// Controller describes controller type C registered under id.
type Controller[C any] struct {
	id  registry.ControllerID
	reg *registry.Registry
}

// For starts describing controller type C. id is both the registry key and
// the kernel identifier the controller instance is resolved by.
func For[C any](reg *registry.Registry, id registry.ControllerID) *Controller[C] {
	return &Controller[C]{id: id, reg: reg}
}

// Default is For on the process registry.
func Default[C any](id registry.ControllerID) *Controller[C] {
	return For[C](registry.Default(), id)
}

// ID returns the controller identifier.
func (c *Controller[C]) ID() registry.ControllerID {
	return c.id
}

// Controller sets the mount path and controller-level middleware. It may be
// called before or after the method routes are described.
func (c *Controller[C]) Controller(path string, mw ...middleware.Middleware) *Controller[C] {
	c.reg.RegisterController(path, mw, c.id)
	return c
}

// Method registers fn for an arbitrary verb, given in lower case
// ("get", "propfind"). It panics with ErrInvalidVerb otherwise.
func (c *Controller[C]) Method(verb, path string, fn Action[C], mw ...middleware.Middleware) *Controller[C] {
	if err := ValidateVerb(verb); err != nil {
		panic(err)
	}
	if fn == nil {
		panic(fmt.Sprintf("annotate: nil action for %s %s on %s", verb, path, c.id))
	}
	c.reg.RegisterHandler(strings.ToUpper(verb), path, c.id, mw, bind(c.id, fn))
	return c
}

// Get registers fn for GET.
func (c *Controller[C]) Get(path string, fn Action[C], mw ...middleware.Middleware) *Controller[C] {
	return c.Method("get", path, fn, mw...)
}

// Post registers fn for POST.
func (c *Controller[C]) Post(path string, fn Action[C], mw ...middleware.Middleware) *Controller[C] {
	return c.Method("post", path, fn, mw...)
}

// Put registers fn for PUT.
func (c *Controller[C]) Put(path string, fn Action[C], mw ...middleware.Middleware) *Controller[C] {
	return c.Method("put", path, fn, mw...)
}

// Patch registers fn for PATCH.
func (c *Controller[C]) Patch(path string, fn Action[C], mw ...middleware.Middleware) *Controller[C] {
	return c.Method("patch", path, fn, mw...)
}

// Head registers fn for HEAD.
func (c *Controller[C]) Head(path string, fn Action[C], mw ...middleware.Middleware) *Controller[C] {
	return c.Method("head", path, fn, mw...)
}

// Delete registers fn for DELETE.
func (c *Controller[C]) Delete(path string, fn Action[C], mw ...middleware.Middleware) *Controller[C] {
	return c.Method("delete", path, fn, mw...)
}

// bind wraps fn so each call runs on the controller instance the kernel
// resolves for id.
func bind[C any](id registry.ControllerID, fn Action[C]) registry.Handler {
	return func(k kernel.Resolver, w http.ResponseWriter, r *http.Request) (any, error) {
		if k == nil {
			return nil, fmt.Errorf("controller %s: %w", id, kernel.ErrNotBound)
		}
		ctrl, err := kernel.ResolveAs[C](k, string(id))
		if err != nil {
			return nil, fmt.Errorf("controller %s: %w", id, err)
		}
		return fn(ctrl, w, r)
	}
}

// ValidateVerb checks that verb is a non-empty lower-case HTTP token.
func ValidateVerb(verb string) error {
	if verb == "" {
		return fmt.Errorf("annotate: %w: empty", ErrInvalidVerb)
	}
	for _, c := range verb {
		if !isTokenChar(c) || (c >= 'A' && c <= 'Z') {
			return fmt.Errorf("annotate: %w: %q", ErrInvalidVerb, verb)
		}
	}
	return nil
}

// isTokenChar reports whether c is a tchar from RFC 9110 section 5.6.2.
func isTokenChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.ContainsRune("!#$%&'*+-.^_`|~", c)
}
