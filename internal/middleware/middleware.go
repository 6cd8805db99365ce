package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
// The standard Go middleware signature: takes a handler, returns a handler.
//
// A middleware either writes the response itself or calls next exactly once.
// Server, controller and method level middleware all share this type.
type Middleware func(http.Handler) http.Handler

// Chain composes multiple middleware into one. Middleware are applied
// in the order given: Chain(a, b, c)(handler) = a(b(c(handler))).
//
// This means the first middleware in the list is the outermost wrapper
// and runs first on the request path.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] == nil {
				continue
			}
			final = middlewares[i](final)
		}
		return final
	}
}

// Then is Chain(middlewares...)(h) for the common single-use case.
func Then(h http.Handler, middlewares ...Middleware) http.Handler {
	return Chain(middlewares...)(h)
}

// Func adapts a continuation-style function into a Middleware. fn receives
// next and decides whether to call it, which mirrors how middleware is
// usually written in other stacks.
func Func(fn func(w http.ResponseWriter, r *http.Request, next http.Handler)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fn(w, r, next)
		})
	}
}
