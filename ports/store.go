package ports

import (
	"context"
	"time"

	"github.com/layer-3/payroll-auth/core"
)

// NonceStore holds pending challenges keyed by nonce
type NonceStore interface {
	// Insert stores a new challenge. Returns core.ErrNonceExists if the nonce is taken.
	Insert(ctx context.Context, challenge core.Challenge) error

	// Consume atomically loads and deletes the challenge for nonce.
	// The bool is false when no challenge was stored.
	Consume(ctx context.Context, nonce string) (core.Challenge, bool, error)

	// Sweep drops challenges that expired before now and reports how many went.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// RateLimiter is a fixed-window counter per client key
type RateLimiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// SessionStore persists refresh sessions by token digest
type SessionStore interface {
	Save(ctx context.Context, session core.RefreshSession) error

	// FindByHash returns core.ErrSessionNotFound when nothing is stored under hash.
	FindByHash(ctx context.Context, hash string) (core.RefreshSession, error)

	// MarkRevoked flips an active session to revoked. It returns true only for
	// the call that performed the transition, which makes it usable as the
	// single-winner step of a rotation.
	MarkRevoked(ctx context.Context, hash string, reason core.RevokeReason, at time.Time) (bool, error)

	MarkAllRevokedForUser(ctx context.Context, userID string, reason core.RevokeReason, at time.Time) (int, error)
	MarkFamilyRevoked(ctx context.Context, familyID string, reason core.RevokeReason, at time.Time) (int, error)

	// Sweep deletes sessions that expired long enough before now that a
	// reused token no longer needs to be recognized, and reports how many went.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
