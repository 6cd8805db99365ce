package app

import (
	"net/http"
	"net/url"

	"github.com/G1D0/routekit/internal/middleware"
	"github.com/G1D0/routekit/internal/router"
)

// Application is the assembled routing table. It is an http.Handler.
type Application struct {
	middleware []middleware.Middleware
	mounts     []mount
	notFound   http.Handler
	handler    http.Handler
}

type mount struct {
	path    string
	handler http.Handler
	info    MountInfo
}

// MountInfo describes one mounted controller, for route listings.
type MountInfo struct {
	Controller string // empty for plain handlers added with Mount
	Path       string
	Routes     []RouteInfo
}

// RouteInfo is one route of a mounted controller.
type RouteInfo struct {
	Method string
	Path   string
}

// Use installs server-level middleware. It is meant to be called from the
// SetServerMiddleware hook; calls after Build has returned have no effect.
func (a *Application) Use(mw ...middleware.Middleware) {
	a.middleware = append(a.middleware, mw...)
}

// Mount serves h under path, ahead of every controller. Like controller
// mounts it sees the path with the prefix stripped, behind the server-level
// middleware. Meant for the SetServerMiddleware hook (metrics, health).
func (a *Application) Mount(path string, h http.Handler, mw ...middleware.Middleware) {
	a.mounts = append(a.mounts, mount{
		path:    path,
		handler: middleware.Then(h, mw...),
		info:    MountInfo{Path: displayPath(path)},
	})
}

// Mounts lists the mounts in match order.
func (a *Application) Mounts() []MountInfo {
	infos := make([]MountInfo, len(a.mounts))
	for i, m := range a.mounts {
		infos[i] = m.info
	}
	return infos
}

// ServeHTTP runs the server-level middleware and then the mounts.
func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *Application) dispatch(w http.ResponseWriter, r *http.Request) {
	a.serveFrom(0, w, r)
}

// serveFrom offers r to the mounts starting at index i. The first mount
// whose prefix matches gets the request with the prefix stripped and the
// prefix's parameters in its context (router.Params); if its
// sub-router has no matching route the request continues with the next
// mount, using the original path.
func (a *Application) serveFrom(i int, w http.ResponseWriter, r *http.Request) {
	for ; i < len(a.mounts); i++ {
		m := a.mounts[i]
		rest, params, ok := router.MatchPrefix(m.path, r.URL.Path)
		if !ok {
			continue
		}

		next, original := i+1, r.URL
		cont := http.HandlerFunc(func(w http.ResponseWriter, inner *http.Request) {
			restored := inner.WithContext(inner.Context())
			restored.URL = original
			a.serveFrom(next, w, restored)
		})

		ctx := router.WithFallthrough(r.Context(), cont)
		ctx = router.WithMountParams(ctx, params)
		sub := r.WithContext(ctx)
		sub.URL = withPath(r.URL, rest)
		m.handler.ServeHTTP(w, sub)
		return
	}
	a.notFound.ServeHTTP(w, r)
}

func withPath(u *url.URL, p string) *url.URL {
	if u.Path == p {
		return u
	}
	stripped := *u
	stripped.Path = p
	stripped.RawPath = ""
	return &stripped
}
