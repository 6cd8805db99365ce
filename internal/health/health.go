// Package health serves a readiness endpoint built from named checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the outcome of a check.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Check reports nil when the checked component is ready.
type Check func(ctx context.Context) error

// Result is the outcome of one check.
type Result struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report is the body served by Handler.
type Report struct {
	Status Status            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

// Checker runs named checks on demand.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// NewChecker creates a checker. Each run of the checks is bounded by timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{checks: make(map[string]Check), timeout: timeout}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every check concurrently and returns within the checker's
// timeout. The report is healthy only when all checks pass.
func (c *Checker) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]Check, len(names))
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	c.mu.RUnlock()

	// Failures are recorded per check, never returned to the group, so one
	// failing check does not cancel the others. A check still running when
	// ctx ends is reported unhealthy and left to finish on its own.
	var resultsMu sync.Mutex
	results := make([]Result, len(names))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			res := Result{Status: StatusHealthy}
			if err := check(ctx); err != nil {
				res = Result{Status: StatusUnhealthy, Error: err.Error()}
			}
			resultsMu.Lock()
			if results[i].Status == StatusUnknown {
				results[i] = res
			}
			resultsMu.Unlock()
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		g.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
	}

	resultsMu.Lock()
	for i := range results {
		if results[i].Status == StatusUnknown {
			results[i] = Result{Status: StatusUnhealthy, Error: ctx.Err().Error()}
		}
	}
	resultsMu.Unlock()

	report := Report{Status: StatusHealthy, Checks: make(map[string]Result, len(names))}
	for i, name := range names {
		report.Checks[name] = results[i]
		if results[i].Status != StatusHealthy {
			report.Status = StatusUnhealthy
		}
	}
	return report
}

// Handler serves the report as JSON: 200 when healthy, 503 otherwise.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())

		status := http.StatusOK
		if report.Status != StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(report)
	})
}
