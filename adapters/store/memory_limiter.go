package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
)

const (
	DefaultRateLimitWindow = 60 * time.Second
	DefaultRateLimitMax    = 10
	DefaultRateLimitGrace  = time.Minute
)

type limitEntry struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	dead        bool // set by Sweep once the entry left the map
}

// MemoryRateLimiter is a fixed-window limiter with one mutex per client key
type MemoryRateLimiter struct {
	clock   ports.Clock
	window  time.Duration
	max     int
	grace   time.Duration
	entries sync.Map // client key -> *limitEntry
}

// NewMemoryRateLimiter creates a limiter allowing max requests per window.
// Non-positive values fall back to the defaults.
func NewMemoryRateLimiter(clock ports.Clock, window time.Duration, max int) *MemoryRateLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if max <= 0 {
		max = DefaultRateLimitMax
	}
	return &MemoryRateLimiter{
		clock:  clock,
		window: window,
		max:    max,
		grace:  DefaultRateLimitGrace,
	}
}

// Allow counts one request for clientKey and reports whether it fits the window
func (l *MemoryRateLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	now := l.clock.Now()
	for {
		e := l.load(clientKey)

		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}

		if e.count == 0 || now.Sub(e.windowStart) >= l.window {
			e.count = 1
			e.windowStart = now
			e.mu.Unlock()
			return true, nil
		}

		// saturate at max+1 so a flood cannot overflow the counter
		if e.count > l.max {
			e.mu.Unlock()
			return false, nil
		}

		e.count++
		allowed := e.count <= l.max
		e.mu.Unlock()
		return allowed, nil
	}
}

func (l *MemoryRateLimiter) load(key string) *limitEntry {
	if v, ok := l.entries.Load(key); ok {
		return v.(*limitEntry)
	}
	v, _ := l.entries.LoadOrStore(key, &limitEntry{})
	return v.(*limitEntry)
}

// Sweep discards entries whose window ended more than the grace period ago
func (l *MemoryRateLimiter) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	l.entries.Range(func(key, value any) bool {
		e := value.(*limitEntry)
		e.mu.Lock()
		if now.Sub(e.windowStart) > l.window+l.grace {
			e.dead = true
			if l.entries.CompareAndDelete(key, value) {
				removed++
			}
		}
		e.mu.Unlock()
		return true
	})
	return removed, nil
}

// Entry returns a snapshot of the counter for clientKey
func (l *MemoryRateLimiter) Entry(clientKey string) (core.RateLimitEntry, bool) {
	v, ok := l.entries.Load(clientKey)
	if !ok {
		return core.RateLimitEntry{}, false
	}
	e := v.(*limitEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return core.RateLimitEntry{Key: clientKey, Count: e.count, WindowStart: e.windowStart}, true
}
