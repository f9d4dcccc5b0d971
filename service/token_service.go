package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
)

const refreshTokenBytes = 32

// ReuseError reports that a refresh token was presented after it had already
// been rotated. It unwraps to core.ErrInvalidRefreshToken.
type ReuseError struct {
	Session       core.RefreshSession
	FamilyRevoked int
}

func (e *ReuseError) Error() string {
	return "refresh token reused after rotation"
}

func (e *ReuseError) Unwrap() error {
	return core.ErrInvalidRefreshToken
}

// TokenService issues, rotates and revokes token pairs
type TokenService struct {
	tokenizer ports.Tokenizer
	sessions  ports.SessionStore
	clock     ports.Clock

	accessTTL           time.Duration
	refreshTTL          time.Duration
	revokeFamilyOnReuse bool
}

// NewTokenService creates a new token service
func NewTokenService(cfg Config, tokenizer ports.Tokenizer, sessions ports.SessionStore, clock ports.Clock) *TokenService {
	cfg = cfg.withDefaults()
	return &TokenService{
		tokenizer:           tokenizer,
		sessions:            sessions,
		clock:               clock,
		accessTTL:           cfg.AccessTTL,
		refreshTTL:          cfg.RefreshTTL,
		revokeFamilyOnReuse: cfg.RevokeFamilyOnReuse,
	}
}

// HashRefreshToken returns the hex BLAKE3-256 digest under which a refresh
// token is stored
func HashRefreshToken(raw string) string {
	sum := blake3.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Issue mints a fresh pair opening a new token family
func (t *TokenService) Issue(ctx context.Context, userID, address string) (core.TokenPair, core.RefreshSession, error) {
	return t.issue(ctx, userID, address, uuid.NewString(), t.now())
}

// Refresh rotates raw into a new pair in the same family. Concurrent calls
// with the same token produce exactly one success.
func (t *TokenService) Refresh(ctx context.Context, raw string) (core.TokenPair, core.RefreshSession, error) {
	if raw == "" {
		return core.TokenPair{}, core.RefreshSession{}, core.ErrInvalidRefreshToken
	}

	hash := HashRefreshToken(raw)
	session, err := t.sessions.FindByHash(ctx, hash)
	if errors.Is(err, core.ErrSessionNotFound) {
		return core.TokenPair{}, core.RefreshSession{}, core.ErrInvalidRefreshToken
	}
	if err != nil {
		return core.TokenPair{}, core.RefreshSession{}, fmt.Errorf("find refresh session: %w", err)
	}

	now := t.now()

	if session.Revoked {
		if session.Rotated() {
			return core.TokenPair{}, session, t.reused(ctx, session, now)
		}
		return core.TokenPair{}, session, core.ErrInvalidRefreshToken
	}

	if session.Expired(now) {
		return core.TokenPair{}, session, core.ErrInvalidRefreshToken
	}

	won, err := t.sessions.MarkRevoked(ctx, hash, core.RevokeReasonRotated, now)
	if err != nil {
		return core.TokenPair{}, session, fmt.Errorf("rotate refresh session: %w", err)
	}
	if !won {
		// lost the race to a concurrent refresh of the same token
		return core.TokenPair{}, session, core.ErrInvalidRefreshToken
	}

	pair, _, err := t.issue(ctx, session.UserID, session.Address, session.FamilyID, now)
	if err != nil {
		return core.TokenPair{}, session, err
	}
	return pair, session, nil
}

func (t *TokenService) reused(ctx context.Context, session core.RefreshSession, now time.Time) error {
	reuse := &ReuseError{Session: session}
	if !t.revokeFamilyOnReuse {
		return reuse
	}

	n, err := t.sessions.MarkFamilyRevoked(ctx, session.FamilyID, core.RevokeReasonReuse, now)
	if err != nil {
		return errors.Join(reuse, fmt.Errorf("revoke token family: %w", err))
	}
	reuse.FamilyRevoked = n
	return reuse
}

// Revoke revokes the session behind raw. Unknown or already revoked tokens
// are not an error; the bool reports whether this call revoked anything.
func (t *TokenService) Revoke(ctx context.Context, raw string) (core.RefreshSession, bool, error) {
	if raw == "" {
		return core.RefreshSession{}, false, nil
	}

	hash := HashRefreshToken(raw)
	session, err := t.sessions.FindByHash(ctx, hash)
	if errors.Is(err, core.ErrSessionNotFound) {
		return core.RefreshSession{}, false, nil
	}
	if err != nil {
		return core.RefreshSession{}, false, fmt.Errorf("find refresh session: %w", err)
	}

	revoked, err := t.sessions.MarkRevoked(ctx, hash, core.RevokeReasonLogout, t.now())
	if err != nil {
		return session, false, fmt.Errorf("revoke refresh session: %w", err)
	}
	return session, revoked, nil
}

// RevokeAll revokes every active session of userID and reports how many it revoked
func (t *TokenService) RevokeAll(ctx context.Context, userID string) (int, error) {
	n, err := t.sessions.MarkAllRevokedForUser(ctx, userID, core.RevokeReasonLogoutAll, t.now())
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	return n, nil
}

// Sweep deletes refresh sessions the store no longer needs to keep
func (t *TokenService) Sweep(ctx context.Context, now time.Time) (int, error) {
	n, err := t.sessions.Sweep(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep refresh sessions: %w", err)
	}
	return n, nil
}

// VerifyAccess checks an access token without touching the session store.
// A token is valid up to and including its expiry instant.
func (t *TokenService) VerifyAccess(token string) (core.AccessClaims, error) {
	if token == "" {
		return core.AccessClaims{}, core.ErrInvalidAccessToken
	}

	claims, err := t.tokenizer.Parse(token)
	if err != nil {
		return core.AccessClaims{}, fmt.Errorf("%w: %v", core.ErrInvalidAccessToken, err)
	}

	if t.clock.Now().After(claims.ExpiresAt) {
		return core.AccessClaims{}, fmt.Errorf("%w: expired at %s", core.ErrInvalidAccessToken, claims.ExpiresAt.Format(time.RFC3339))
	}

	return claims, nil
}

func (t *TokenService) issue(ctx context.Context, userID, address, familyID string, now time.Time) (core.TokenPair, core.RefreshSession, error) {
	issuedAt := truncate(now)
	claims := core.AccessClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Wallet:    address,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(t.accessTTL),
	}
	accessToken, err := t.tokenizer.Sign(claims)
	if err != nil {
		return core.TokenPair{}, core.RefreshSession{}, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return core.TokenPair{}, core.RefreshSession{}, err
	}

	session := core.RefreshSession{
		ID:        uuid.NewString(),
		TokenHash: HashRefreshToken(refreshToken),
		UserID:    userID,
		Address:   address,
		FamilyID:  familyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.refreshTTL),
	}
	if err := t.sessions.Save(ctx, session); err != nil {
		return core.TokenPair{}, core.RefreshSession{}, fmt.Errorf("save refresh session: %w", err)
	}

	return core.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  claims.ExpiresAt,
		RefreshExpiresAt: session.ExpiresAt,
		UserID:           userID,
		Address:          address,
	}, session, nil
}

// now is the full-precision instant used for refresh sessions
func (t *TokenService) now() time.Time {
	return t.clock.Now().UTC()
}

// truncate drops sub-second precision so JWT timestamps round-trip exactly.
// Only access claims are truncated.
func truncate(at time.Time) time.Time {
	return at.UTC().Truncate(time.Second)
}

func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
