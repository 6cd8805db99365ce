package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/G1D0/routekit/internal/config"
	"github.com/G1D0/routekit/internal/observe"
	"github.com/G1D0/routekit/internal/registry"
)

// BuildFunc assembles the handler for a configuration.
type BuildFunc func(cfg *config.Config) (http.Handler, error)

// OverridesFrom converts the controller section of cfg into mount overrides.
func OverridesFrom(cfg *config.Config) map[registry.ControllerID]Override {
	out := make(map[registry.ControllerID]Override, len(cfg.Controllers))
	for id, cc := range cfg.Overrides() {
		out[registry.ControllerID(id)] = Override{Path: cc.Path, Disabled: cc.Disabled}
	}
	return out
}

// ReloaderConfig configures a Reloader.
type ReloaderConfig struct {
	Path     string
	Interval time.Duration
	Build    BuildFunc
	Logger   *slog.Logger
	Metrics  *observe.Metrics
}

// Reloader serves the handler built from a config file and rebuilds it when
// the file changes. The file is polled; the active handler is swapped
// atomically so in-flight requests finish on the handler they started on.
// A config that fails to load or build leaves the current handler in place.
type Reloader struct {
	path    string
	build   BuildFunc
	logger  *slog.Logger
	metrics *observe.Metrics

	current atomic.Pointer[loaded]
	modTime time.Time

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

type loaded struct {
	cfg     *config.Config
	handler http.Handler
}

// NewReloader loads and builds the config at cfg.Path. Polling starts only
// when cfg.Interval is positive.
func NewReloader(cfg ReloaderConfig) (*Reloader, error) {
	if cfg.Logger == nil {
		cfg.Logger = observe.Discard()
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	rl := &Reloader{
		path:    cfg.Path,
		build:   cfg.Build,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		modTime: info.ModTime(),
		done:    make(chan struct{}),
	}
	if err := rl.load(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl.cancel = cancel
	if cfg.Interval > 0 {
		go rl.watch(ctx, cfg.Interval)
	} else {
		close(rl.done)
	}
	return rl, nil
}

// ServeHTTP serves with the current handler.
func (rl *Reloader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rl.current.Load().handler.ServeHTTP(w, r)
}

// Config returns the configuration of the current handler.
func (rl *Reloader) Config() *config.Config {
	return rl.current.Load().cfg
}

// Close stops polling.
func (rl *Reloader) Close() error {
	rl.closeOnce.Do(func() {
		rl.cancel()
		<-rl.done
	})
	return nil
}

func (rl *Reloader) watch(ctx context.Context, interval time.Duration) {
	defer close(rl.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.checkAndReload()
		case <-ctx.Done():
			return
		}
	}
}

// checkAndReload reloads if the file's modification time moved forward.
func (rl *Reloader) checkAndReload() {
	info, err := os.Stat(rl.path)
	if err != nil {
		rl.logger.Warn("config reload: cannot stat config", "path", rl.path, "error", err)
		return
	}
	if !info.ModTime().After(rl.modTime) {
		return
	}
	rl.modTime = info.ModTime()

	rl.logger.Info("config reload: file changed", "path", rl.path)
	if err := rl.load(); err != nil {
		rl.record("error")
		rl.logger.Error("config reload: keeping previous config", "error", err)
		return
	}
	rl.record("ok")
	rl.logger.Info("config reload: applied", "controllers", len(rl.Config().Controllers))
}

func (rl *Reloader) load() error {
	cfg, err := config.Load(rl.path)
	if err != nil {
		return err
	}
	h, err := rl.build(cfg)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	rl.current.Store(&loaded{cfg: cfg, handler: h})
	return nil
}

func (rl *Reloader) record(result string) {
	if rl.metrics != nil {
		rl.metrics.ConfigReloads.WithLabelValues(result).Inc()
	}
}
