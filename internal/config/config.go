// Package config loads the YAML configuration of the routekit server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvAddr     = "ROUTEKIT_ADDR"
	EnvLogLevel = "ROUTEKIT_LOG_LEVEL"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls the readiness endpoint.
type HealthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig configures the per-client limiter. Rate is in requests
// per second.
type RateLimitConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Burst      int           `yaml:"burst"`
	Rate       float64       `yaml:"rate"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// ControllerConfig overrides how one controller is mounted.
type ControllerConfig struct {
	ID       string `yaml:"id"`
	Path     string `yaml:"path,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Config is the top-level YAML configuration.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Health      HealthConfig       `yaml:"health"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit"`
	Controllers []ControllerConfig `yaml:"controllers"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			DrainTimeout:   10 * time.Second,
			ReloadInterval: 2 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Health:  HealthConfig{Enabled: true, Path: "/healthz", Timeout: 2 * time.Second},
		RateLimit: RateLimitConfig{
			Burst:      20,
			Rate:       10,
			StaleAfter: 5 * time.Minute,
		},
	}
}

// Load reads a YAML config file, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses YAML bytes on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
}

// Overrides returns the controller overrides keyed by controller id.
func (c *Config) Overrides() map[string]ControllerConfig {
	out := make(map[string]ControllerConfig, len(c.Controllers))
	for _, cc := range c.Controllers {
		out[cc.ID] = cc
	}
	return out
}

// Validate checks that the config is semantically valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if c.Server.DrainTimeout <= 0 {
		return fmt.Errorf("server.drain_timeout must be positive")
	}
	if c.Server.ReloadInterval < 0 {
		return fmt.Errorf("server.reload_interval cannot be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q must be json or text", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}

	if c.Health.Enabled && !strings.HasPrefix(c.Health.Path, "/") {
		return fmt.Errorf("health.path %q must start with /", c.Health.Path)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be positive")
		}
		if c.RateLimit.Rate < 0 {
			return fmt.Errorf("rate_limit.rate cannot be negative")
		}
	}

	seen := make(map[string]bool)
	for i, cc := range c.Controllers {
		if cc.ID == "" {
			return fmt.Errorf("controller %d: id cannot be empty", i)
		}
		if seen[cc.ID] {
			return fmt.Errorf("controller %d (%s): duplicate id", i, cc.ID)
		}
		seen[cc.ID] = true
		if cc.Path != "" && cc.Path != "*" && !strings.HasPrefix(cc.Path, "/") {
			return fmt.Errorf("controller %d (%s): path %q must start with /", i, cc.ID, cc.Path)
		}
	}

	return nil
}
