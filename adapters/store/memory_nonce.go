package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
)

// MemoryNonceStore keeps challenges in process memory. Each nonce is its own
// key in a sync.Map so unrelated logins never share a lock.
type MemoryNonceStore struct {
	challenges sync.Map // nonce -> *core.Challenge
}

// NewMemoryNonceStore creates an empty in-memory nonce store
func NewMemoryNonceStore() ports.NonceStore {
	return &MemoryNonceStore{}
}

// Insert stores the challenge unless its nonce is already present
func (s *MemoryNonceStore) Insert(ctx context.Context, challenge core.Challenge) error {
	c := challenge
	if _, loaded := s.challenges.LoadOrStore(c.Nonce, &c); loaded {
		return core.ErrNonceExists
	}
	return nil
}

// Consume removes and returns the challenge for nonce
func (s *MemoryNonceStore) Consume(ctx context.Context, nonce string) (core.Challenge, bool, error) {
	v, ok := s.challenges.LoadAndDelete(nonce)
	if !ok {
		return core.Challenge{}, false, nil
	}
	return *v.(*core.Challenge), true, nil
}

// Sweep drops every challenge that expired before now
func (s *MemoryNonceStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	s.challenges.Range(func(key, value any) bool {
		if value.(*core.Challenge).Expired(now) && s.challenges.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})
	return removed, nil
}
