package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/G1D0/routekit/internal/app"
	"github.com/G1D0/routekit/internal/config"
	"github.com/G1D0/routekit/internal/controllers"
	"github.com/G1D0/routekit/internal/health"
	"github.com/G1D0/routekit/internal/kernel"
	"github.com/G1D0/routekit/internal/middleware"
	"github.com/G1D0/routekit/internal/observe"
	"github.com/G1D0/routekit/internal/ratelimit"
	"github.com/G1D0/routekit/internal/registry"
	"github.com/G1D0/routekit/internal/server"
	"github.com/G1D0/routekit/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	listRoutes := flag.Bool("routes", false, "print the route table and exit")
	flag.Parse()

	if err := run(*configPath, *listRoutes, os.Stdout); err != nil {
		slog.Error("routekit failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, listRoutes bool, out io.Writer) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv(os.LookupEnv)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := observe.NewLogger(observe.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	slog.SetDefault(logger)

	k := kernel.Default()
	reg := registry.Default()
	services.Register(k)
	controllers.Register(reg, k)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observe.NewMetrics(promReg)

	checker := health.NewChecker(cfg.Health.Timeout)
	checker.Register("controllers", func(context.Context) error {
		for _, entry := range reg.Routes() {
			if !k.IsBound(string(entry.ID)) {
				return fmt.Errorf("controller %s is not bound", entry.ID)
			}
		}
		return nil
	})

	var limiter *ratelimit.PerClient
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewPerClient(cfg.RateLimit.Burst, cfg.RateLimit.Rate, cfg.RateLimit.StaleAfter)
	}

	build := func(c *config.Config) (*app.Application, error) {
		srv := app.New(reg, k,
			app.WithLogger(logger),
			app.WithMetrics(metrics),
			app.WithOverrides(app.OverridesFrom(c)),
		)
		srv.SetServerMiddleware(func(a *app.Application) {
			a.Use(
				middleware.Instrument("routekit"),
				middleware.RequestID(),
				middleware.Logging(logger),
				middleware.Metrics(metrics),
			)
			if limiter != nil {
				a.Use(middleware.RateLimit(limiter))
			}
			if c.Health.Enabled {
				a.Mount(c.Health.Path, checker.Handler())
			}
			if c.Metrics.Enabled {
				a.Mount(c.Metrics.Path, observe.Handler(promReg))
			}
		})
		return srv.Build()
	}

	if listRoutes {
		a, err := build(cfg)
		if err != nil {
			return err
		}
		return printRoutes(out, a.Mounts())
	}

	var handler http.Handler
	var reloader *app.Reloader
	if configPath != "" {
		rl, err := app.NewReloader(app.ReloaderConfig{
			Path:     configPath,
			Interval: cfg.Server.ReloadInterval,
			Build: func(c *config.Config) (http.Handler, error) {
				return build(c)
			},
			Logger:  logger,
			Metrics: metrics,
		})
		if err != nil {
			return err
		}
		handler, reloader = rl, rl
	} else {
		a, err := build(cfg)
		if err != nil {
			return err
		}
		handler = a
	}

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		DrainTimeout: cfg.Server.DrainTimeout,
		Logger:       logger,
	})
	if limiter != nil {
		srv.RegisterCloser(limiter)
	}
	if reloader != nil {
		srv.RegisterCloser(reloader)
	}

	return srv.ListenAndServe(context.Background())
}

func printRoutes(out io.Writer, mounts []app.MountInfo) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTROLLER\tMOUNT\tMETHOD\tPATH")
	for _, m := range mounts {
		controller := m.Controller
		if controller == "" {
			controller = "-"
		}
		if len(m.Routes) == 0 {
			fmt.Fprintf(tw, "%s\t%s\t*\t*\n", controller, m.Path)
			continue
		}
		for _, r := range m.Routes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", controller, m.Path, r.Method, r.Path)
		}
	}
	return tw.Flush()
}
