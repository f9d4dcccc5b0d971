package clock

import (
	"sync"
	"time"

	"github.com/layer-3/payroll-auth/ports"
)

type system struct{}

// System returns the wall clock
func System() ports.Clock {
	return system{}
}

func (system) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a clock that only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock frozen at now
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set moves the clock to t
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
