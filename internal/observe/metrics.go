package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the routing layer's Prometheus metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	HandlerErrors    *prometheus.CounterVec
	MountedRoutes    *prometheus.GaugeVec
	RateLimitedTotal prometheus.Counter
	ConfigReloads    *prometheus.CounterVec
}

// NewMetrics creates and registers all routing metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routekit_requests_total",
				Help: "Total number of requests dispatched.",
			},
			[]string{"controller", "route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "routekit_request_duration_seconds",
				Help: "Request duration in seconds, middleware included.",
				// 5ms .. 10s
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"controller"},
		),
		HandlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routekit_handler_errors_total",
				Help: "Errors returned by controller handlers or controller resolution.",
			},
			[]string{"controller"},
		),
		MountedRoutes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "routekit_mounted_routes",
				Help: "Number of routes mounted per controller in the active application.",
			},
			[]string{"controller"},
		),
		ConfigReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routekit_config_reloads_total",
				Help: "Configuration reload attempts by result.",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.HandlerErrors,
		m.MountedRoutes,
		m.ConfigReloads,
	)

	return m
}

// Handler returns the HTTP handler for the metrics endpoint of the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
