package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/G1D0/routekit/internal/annotate"
	"github.com/G1D0/routekit/internal/kernel"
	"github.com/G1D0/routekit/internal/middleware"
	"github.com/G1D0/routekit/internal/observe"
	"github.com/G1D0/routekit/internal/registry"
	"github.com/G1D0/routekit/internal/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testController struct{}

func (testController) Get(w http.ResponseWriter, r *http.Request) (any, error) {
	return "GET", nil
}

func (testController) Post(w http.ResponseWriter, r *http.Request) (any, error) {
	return "POST", nil
}

func (testController) Put(w http.ResponseWriter, r *http.Request) (any, error) {
	return "PUT", nil
}

func (testController) Patch(w http.ResponseWriter, r *http.Request) (any, error) {
	return "PATCH", nil
}

func (testController) Head(w http.ResponseWriter, r *http.Request) (any, error) {
	return "HEAD", nil
}

func (testController) Delete(w http.ResponseWriter, r *http.Request) (any, error) {
	return "DELETE", nil
}

func (testController) Propfind(w http.ResponseWriter, r *http.Request) (any, error) {
	return "PROPFIND", nil
}

func (testController) JSON(w http.ResponseWriter, r *http.Request) (any, error) {
	return map[string]string{"hello": "world"}, nil
}

func (testController) Nothing(w http.ResponseWriter, r *http.Request) (any, error) {
	w.WriteHeader(http.StatusNoContent)
	return nil, nil
}

func (testController) Fail(w http.ResponseWriter, r *http.Request) (any, error) {
	return nil, errors.New("boom")
}

func (testController) Missing(w http.ResponseWriter, r *http.Request) (any, error) {
	return nil, Error(http.StatusNotFound, errors.New("no such thing"))
}

func (testController) Param(w http.ResponseWriter, r *http.Request) (any, error) {
	return "id=" + router.Params(r).ByName("id"), nil
}

func (testController) User(w http.ResponseWriter, r *http.Request) (any, error) {
	p := router.Params(r)
	return "uid=" + p.ByName("uid") + " pid=" + p.ByName("pid"), nil
}

func newFixture(t *testing.T) (*registry.Registry, *kernel.Kernel) {
	t.Helper()
	k := kernel.New()
	k.BindValue("TestController", testController{})
	return registry.New(), k
}

func build(t *testing.T, s *Server) *Application {
	t.Helper()
	a, err := s.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return a
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// --- Registration ---

func TestSingleRouteSingleEntry(t *testing.T) {
	reg, _ := newFixture(t)
	annotate.For[testController](reg, "TestController").
		Controller("/").
		Get("/", testController.Get)

	routes := reg.Routes()
	if len(routes) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(routes))
	}
	if routes[0].Path != "/" {
		t.Fatalf("expected path /, got %q", routes[0].Path)
	}
	if routes[0].Router == nil {
		t.Fatal("router should not be nil")
	}
}

func TestRefreshEmptiesRoutes(t *testing.T) {
	annotate.Default[testController]("TestController").Get("/", testController.Get)
	if len(registry.Default().Routes()) == 0 {
		t.Fatal("expected routes before refresh")
	}

	registry.Refresh()
	if got := len(registry.Default().Routes()); got != 0 {
		t.Fatalf("expected no routes after refresh, got %d", got)
	}
}

// --- Verbs ---

func TestVerbs(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").
		Controller("/").
		Get("/", testController.Get).
		Post("/", testController.Post).
		Put("/", testController.Put).
		Patch("/", testController.Patch).
		Head("/", testController.Head).
		Delete("/", testController.Delete)

	a := build(t, New(reg, k))

	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "HEAD", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			rec := serve(a, method, "/")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if rec.Body.String() != method {
				t.Fatalf("expected body %q, got %q", method, rec.Body.String())
			}
		})
	}
}

func TestArbitraryVerb(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").
		Method("propfind", "/", testController.Propfind)

	rec := serve(build(t, New(reg, k)), "PROPFIND", "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "PROPFIND" {
		t.Fatalf("expected PROPFIND, got %q", rec.Body.String())
	}
}

func TestImplicitHeadForGet(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").Get("/", testController.Get)

	rec := serve(build(t, New(reg, k)), http.MethodHead, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for HEAD on GET route, got %d", rec.Code)
	}
}

// --- Middleware order ---

type trace struct {
	order strings.Builder
	calls map[string]int
}

func (tr *trace) mw(name string) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tr.order.WriteString(name)
			tr.calls[name]++
			next.ServeHTTP(w, r)
		})
	}
}

type orderController struct {
	tr *trace
}

func (c *orderController) Index(w http.ResponseWriter, r *http.Request) (any, error) {
	return c.tr.order.String(), nil
}

func TestMiddlewareOrder(t *testing.T) {
	tests := []struct {
		name       string
		server     string
		controller string
		method     string
	}{
		{"all method", "", "", "abc"},
		{"all controller", "", "abc", ""},
		{"all server", "abc", "", ""},
		{"one per level", "a", "b", "c"},
		{"server and controller", "a", "bc", ""},
		{"controller and method", "", "ab", "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &trace{calls: make(map[string]int)}
			mws := func(names string) []middleware.Middleware {
				var out []middleware.Middleware
				for _, n := range names {
					out = append(out, tr.mw(string(n)))
				}
				return out
			}

			reg := registry.New()
			k := kernel.New()
			k.BindValue("Order", &orderController{tr: tr})
			annotate.For[*orderController](reg, "Order").
				Controller("/", mws(tt.controller)...).
				Get("/", (*orderController).Index, mws(tt.method)...)

			s := New(reg, k).SetServerMiddleware(func(a *Application) {
				a.Use(mws(tt.server)...)
			})
			rec := serve(build(t, s), http.MethodGet, "/")

			if rec.Body.String() != "abc" {
				t.Fatalf("expected abc, got %q", rec.Body.String())
			}
			for _, n := range []string{"a", "b", "c"} {
				if tr.calls[n] != 1 {
					t.Errorf("middleware %s called %d times, want 1", n, tr.calls[n])
				}
			}
		})
	}
}

func TestMiddlewareShortCircuit(t *testing.T) {
	reg, k := newFixture(t)
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}
	annotate.For[testController](reg, "TestController").Controller("/", deny).Get("/", testController.Get)

	rec := serve(build(t, New(reg, k)), http.MethodGet, "/")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("handler should not run, got body %q", rec.Body.String())
	}
}

// --- Responses ---

func TestJSONResponse(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").Get("/", testController.JSON)

	rec := serve(build(t, New(reg, k)), http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"hello":"world"}` {
		t.Fatalf("expected JSON body, got %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
}

func TestNilResultWritesNothing(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").Get("/", testController.Nothing)

	rec := serve(build(t, New(reg, k)), http.MethodGet, "/")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
}

func TestRespondKinds(t *testing.T) {
	type point struct {
		X int `json:"x"`
	}
	tests := []struct {
		name  string
		value any
		body  string
		ctype string
	}{
		{"string", "<p>hi</p>", "<p>hi</p>", "text/html; charset=utf-8"},
		{"bytes", []byte{1, 2}, "\x01\x02", "application/octet-stream"},
		{"int", 42, "42", "text/plain; charset=utf-8"},
		{"bool", true, "true", "text/plain; charset=utf-8"},
		{"struct", point{X: 1}, `{"x":1}`, "application/json"},
		{"pointer", &point{X: 2}, `{"x":2}`, "application/json"},
		{"slice", []int{1, 2}, `[1,2]`, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := Respond(rec, tt.value); err != nil {
				t.Fatalf("respond: %v", err)
			}
			if rec.Body.String() != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.ctype {
				t.Errorf("expected content type %q, got %q", tt.ctype, ct)
			}
		})
	}
}

func TestRespondEncodeError(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := Respond(rec, map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected encode error")
	}
	if rec.Body.Len() != 0 {
		t.Fatal("nothing should be written on encode error")
	}
}

// --- Errors ---

func TestHandlerErrorDefault(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").
		Get("/fail", testController.Fail).
		Get("/missing", testController.Missing)

	a := build(t, New(reg, k))

	rec := serve(a, http.MethodGet, "/fail")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"Internal Server Error"}` {
		t.Fatalf("server error message should be hidden, got %q", rec.Body.String())
	}

	rec = serve(a, http.MethodGet, "/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"no such thing"}` {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestUnboundControllerIsError(t *testing.T) {
	reg := registry.New()
	annotate.For[testController](reg, "TestController").Get("/", testController.Get)

	var got error
	s := New(reg, kernel.New(), WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := serve(build(t, s), http.MethodGet, "/")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected custom error status, got %d", rec.Code)
	}
	if !errors.Is(got, kernel.ErrNotBound) {
		t.Fatalf("expected ErrNotBound, got %v", got)
	}
}

// --- Mounting ---

func TestMountPrefixStripped(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").
		Controller("/things").
		Get("/:id", testController.Param).
		Get("/", testController.Get)

	a := build(t, New(reg, k))

	if rec := serve(a, http.MethodGet, "/things/7"); rec.Body.String() != "id=7" {
		t.Fatalf("expected id=7, got %q", rec.Body.String())
	}
	if rec := serve(a, http.MethodGet, "/things"); rec.Body.String() != "GET" {
		t.Fatalf("expected GET on mount root, got %q", rec.Body.String())
	}
	if rec := serve(a, http.MethodGet, "/thingsx"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 off segment boundary, got %d", rec.Code)
	}
}

func TestPatternMount(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").
		Controller("/users/:uid").
		Get("/", testController.User).
		Get("/posts/:pid", testController.User)

	a := build(t, New(reg, k))

	if rec := serve(a, http.MethodGet, "/users/5"); rec.Code != http.StatusOK || rec.Body.String() != "uid=5 pid=" {
		t.Fatalf("expected uid=5 on mount root, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(a, http.MethodGet, "/users/5/posts/9"); rec.Body.String() != "uid=5 pid=9" {
		t.Fatalf("expected uid=5 pid=9, got %q", rec.Body.String())
	}
	if rec := serve(a, http.MethodGet, "/users"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without the uid segment, got %d", rec.Code)
	}
}

func TestPatternMountFallthroughResetsParams(t *testing.T) {
	reg, k := newFixture(t)
	k.BindValue("Other", testController{})
	annotate.For[testController](reg, "TestController").Controller("/:uid").Get("/only", testController.User)
	annotate.For[testController](reg, "Other").Controller("/users").Get("/", testController.User)

	rec := serve(build(t, New(reg, k)), http.MethodGet, "/users")
	if rec.Body.String() != "uid= pid=" {
		t.Fatalf("second mount should not see the first mount's params, got %q", rec.Body.String())
	}
}

func TestBuildRejectsBadMountPath(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").Controller("/files/*rest/more").Get("/", testController.Get)

	if _, err := New(reg, k).Build(); err == nil {
		t.Fatal("expected build error for a catch-all that is not last")
	}

	reg, k = newFixture(t)
	annotate.For[testController](reg, "TestController").Get("/", testController.Get)
	s := New(reg, k).SetServerMiddleware(func(a *Application) {
		a.Mount("/status/:", http.NotFoundHandler())
	})
	if _, err := s.Build(); err == nil {
		t.Fatal("expected build error for an unnamed parameter in a plain mount")
	}
}

type otherController struct{}

func (otherController) Index(w http.ResponseWriter, r *http.Request) (any, error) {
	return "other " + r.URL.Path, nil
}

func TestFallthroughToNextMount(t *testing.T) {
	reg, k := newFixture(t)
	k.BindValue("Other", otherController{})

	annotate.For[testController](reg, "TestController").Controller("/").Get("/", testController.Get)
	annotate.For[otherController](reg, "Other").Controller("/api").Get("/ping", otherController.Index)

	a := build(t, New(reg, k))

	rec := serve(a, http.MethodGet, "/api/ping")
	if rec.Body.String() != "other /ping" {
		t.Fatalf("expected second mount to answer, got %q", rec.Body.String())
	}
	if rec := serve(a, http.MethodGet, "/nowhere"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestNotFoundHandler(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").Get("/", testController.Get)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	a := build(t, New(reg, k, WithNotFound(notFound)))

	if rec := serve(a, http.MethodGet, "/missing"); rec.Code != http.StatusTeapot {
		t.Fatalf("expected custom not-found, got %d", rec.Code)
	}
}

func TestPlainMountFirst(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").Get("/metrics", testController.Get)

	s := New(reg, k).SetServerMiddleware(func(a *Application) {
		a.Mount("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("metrics"))
		}))
	})
	a := build(t, s)

	if rec := serve(a, http.MethodGet, "/metrics"); rec.Body.String() != "metrics" {
		t.Fatalf("plain mount should win, got %q", rec.Body.String())
	}
	mounts := a.Mounts()
	if len(mounts) != 2 || mounts[0].Controller != "" || mounts[1].Controller != "TestController" {
		t.Fatalf("unexpected mounts %+v", mounts)
	}
}

func TestOverrides(t *testing.T) {
	reg, k := newFixture(t)
	k.BindValue("Other", otherController{})
	annotate.For[testController](reg, "TestController").Controller("/a").Get("/", testController.Get)
	annotate.For[otherController](reg, "Other").Controller("/b").Get("/", otherController.Index)

	a := build(t, New(reg, k, WithOverrides(map[registry.ControllerID]Override{
		"TestController": {Path: "/moved"},
		"Other":          {Disabled: true},
		"Ghost":          {Disabled: true},
	})))

	if rec := serve(a, http.MethodGet, "/moved"); rec.Body.String() != "GET" {
		t.Fatalf("expected controller at overridden path, got %q", rec.Body.String())
	}
	if rec := serve(a, http.MethodGet, "/a"); rec.Code != http.StatusNotFound {
		t.Fatalf("old path should be gone, got %d", rec.Code)
	}
	if rec := serve(a, http.MethodGet, "/b"); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled controller should not be mounted, got %d", rec.Code)
	}
	if len(a.Mounts()) != 1 {
		t.Fatalf("expected 1 mount, got %d", len(a.Mounts()))
	}
}

func TestBuildFailsOnConflictingRoutes(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").
		Get("/:id", testController.Param).
		Get("/:name", testController.Param)

	if _, err := New(reg, k).Build(); err == nil {
		t.Fatal("expected build error for conflicting wildcards")
	}
}

// --- Observability ---

func TestMetricsAndRouteInfo(t *testing.T) {
	reg, k := newFixture(t)
	annotate.For[testController](reg, "TestController").
		Controller("/t").
		Get("/", testController.Get).
		Get("/fail", testController.Fail)

	m := observe.NewMetrics(prometheus.NewRegistry())
	var info *observe.RouteInfo
	s := New(reg, k, WithMetrics(m)).SetServerMiddleware(func(a *Application) {
		a.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx, ri := observe.WithRouteInfo(r.Context())
				info = ri
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		})
	})
	a := build(t, s)

	if got := testutil.ToFloat64(m.MountedRoutes.WithLabelValues("TestController")); got != 2 {
		t.Fatalf("expected 2 mounted routes, got %v", got)
	}

	serve(a, http.MethodGet, "/t/")
	if info.Controller != "TestController" || info.Method != "GET" || info.Pattern != "/t/" {
		t.Fatalf("unexpected route info %+v", *info)
	}

	serve(a, http.MethodGet, "/t/fail")
	if got := testutil.ToFloat64(m.HandlerErrors.WithLabelValues("TestController")); got != 1 {
		t.Fatalf("expected 1 handler error, got %v", got)
	}
}
