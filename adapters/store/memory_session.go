package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
)

var errSessionExists = errors.New("refresh session already exists")

type sessionEntry struct {
	mu      sync.Mutex
	session core.RefreshSession
}

// MemorySessionStore keeps refresh sessions in process memory, keyed by token digest.
// It is meant for tests and single-instance development setups.
type MemorySessionStore struct {
	sessions sync.Map // token hash -> *sessionEntry
}

// NewMemorySessionStore creates an empty in-memory session store
func NewMemorySessionStore() ports.SessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Save(ctx context.Context, session core.RefreshSession) error {
	if _, loaded := s.sessions.LoadOrStore(session.TokenHash, &sessionEntry{session: session}); loaded {
		return errSessionExists
	}
	return nil
}

func (s *MemorySessionStore) FindByHash(ctx context.Context, hash string) (core.RefreshSession, error) {
	v, ok := s.sessions.Load(hash)
	if !ok {
		return core.RefreshSession{}, core.ErrSessionNotFound
	}
	e := v.(*sessionEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, nil
}

func (s *MemorySessionStore) MarkRevoked(ctx context.Context, hash string, reason core.RevokeReason, at time.Time) (bool, error) {
	v, ok := s.sessions.Load(hash)
	if !ok {
		return false, nil
	}
	return revokeEntry(v.(*sessionEntry), reason, at), nil
}

func (s *MemorySessionStore) MarkAllRevokedForUser(ctx context.Context, userID string, reason core.RevokeReason, at time.Time) (int, error) {
	return s.revokeWhere(func(rs core.RefreshSession) bool { return rs.UserID == userID }, reason, at), nil
}

func (s *MemorySessionStore) MarkFamilyRevoked(ctx context.Context, familyID string, reason core.RevokeReason, at time.Time) (int, error) {
	return s.revokeWhere(func(rs core.RefreshSession) bool { return rs.FamilyID == familyID }, reason, at), nil
}

func (s *MemorySessionStore) revokeWhere(match func(core.RefreshSession) bool, reason core.RevokeReason, at time.Time) int {
	revoked := 0
	s.sessions.Range(func(_, value any) bool {
		e := value.(*sessionEntry)
		e.mu.Lock()
		matched := match(e.session)
		e.mu.Unlock()
		if matched && revokeEntry(e, reason, at) {
			revoked++
		}
		return true
	})
	return revoked
}

// Sweep drops sessions more than sessionRetention past their expiry
func (s *MemorySessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	s.sessions.Range(func(key, value any) bool {
		e := value.(*sessionEntry)
		e.mu.Lock()
		stale := now.Sub(e.session.ExpiresAt) > sessionRetention
		e.mu.Unlock()
		if stale && s.sessions.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})
	return removed, nil
}

func revokeEntry(e *sessionEntry, reason core.RevokeReason, at time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Revoked {
		return false
	}
	e.session.Revoked = true
	e.session.RevokeReason = reason
	revokedAt := at
	e.session.RevokedAt = &revokedAt
	return true
}
