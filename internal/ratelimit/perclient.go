// Package ratelimit keeps one token-bucket limiter per client key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientEntry holds a limiter and the last time it was used.
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// PerClient maintains a separate limiter per client key (IP, API key, etc.).
//
// A background goroutine garbage-collects limiters that have been idle
// longer than staleAfter to prevent unbounded memory growth.
type PerClient struct {
	mu         sync.Mutex
	clients    map[string]*clientEntry
	burst      int
	limit      rate.Limit
	staleAfter time.Duration
	now        func() time.Time
	stop       chan struct{}
	closeOnce  sync.Once
}

// NewPerClient creates a per-client rate limiter allowing bursts of burst
// requests and perSecond sustained requests. perSecond == 0 means no refill.
func NewPerClient(burst int, perSecond float64, staleAfter time.Duration) *PerClient {
	pc := &PerClient{
		clients:    make(map[string]*clientEntry),
		burst:      burst,
		limit:      rate.Limit(perSecond),
		staleAfter: staleAfter,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if staleAfter > 0 {
		go pc.gc()
	}
	return pc
}

// Allow checks the rate limit for key. When the request is rejected,
// retryAfter is how long until a token is available (0 if never).
func (pc *PerClient) Allow(key string) (ok bool, retryAfter time.Duration) {
	now := pc.now()

	pc.mu.Lock()
	entry, exists := pc.clients[key]
	if !exists {
		entry = &clientEntry{limiter: rate.NewLimiter(pc.limit, pc.burst)}
		pc.clients[key] = entry
	}
	entry.lastAccess = now
	pc.mu.Unlock()

	res := entry.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len returns the number of tracked clients.
func (pc *PerClient) Len() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.clients)
}

func (pc *PerClient) gc() {
	ticker := time.NewTicker(pc.staleAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pc.sweep()
		case <-pc.stop:
			return
		}
	}
}

// sweep drops limiters idle longer than staleAfter.
func (pc *PerClient) sweep() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	now := pc.now()
	for key, entry := range pc.clients {
		if now.Sub(entry.lastAccess) > pc.staleAfter {
			delete(pc.clients, key)
		}
	}
}

// Close stops the background garbage collection goroutine.
func (pc *PerClient) Close() error {
	pc.closeOnce.Do(func() { close(pc.stop) })
	return nil
}
