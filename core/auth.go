package core

import "time"

// Challenge represents a pending wallet authentication challenge
type Challenge struct {
	Nonce     string    // Random hex nonce, unique per challenge
	Address   string    // Lowercase wallet address the challenge was issued for
	Message   string    // Canonical text the wallet signs
	CreatedAt time.Time // When the challenge was issued
	ExpiresAt time.Time // When the challenge stops being accepted
}

// Expired reports whether the challenge is past its expiry at now.
// Expiry is strict: a challenge is still valid at exactly ExpiresAt.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// RateLimitEntry is the fixed-window counter for one client key
type RateLimitEntry struct {
	Key         string
	Count       int
	WindowStart time.Time
}

// RevokeReason tags why a refresh session stopped being usable
type RevokeReason string

const (
	RevokeReasonNone      RevokeReason = ""
	RevokeReasonRotated   RevokeReason = "rotated"
	RevokeReasonLogout    RevokeReason = "logout"
	RevokeReasonLogoutAll RevokeReason = "logout_all"
	RevokeReasonReuse     RevokeReason = "reuse"
)

// RefreshSession is the persisted record behind a refresh token.
// Only the digest of the token is kept.
type RefreshSession struct {
	ID           string       `db:"id"`
	TokenHash    string       `db:"token_hash"`
	UserID       string       `db:"user_id"`
	Address      string       `db:"wallet_address"`
	FamilyID     string       `db:"family_id"`
	IssuedAt     time.Time    `db:"issued_at"`
	ExpiresAt    time.Time    `db:"expires_at"`
	Revoked      bool         `db:"revoked"`
	RevokedAt    *time.Time   `db:"revoked_at"`
	RevokeReason RevokeReason `db:"revoke_reason"`
}

// Expired reports whether the session is past its expiry at now.
func (s RefreshSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Rotated reports whether the session was consumed by a refresh.
func (s RefreshSession) Rotated() bool {
	return s.Revoked && s.RevokeReason == RevokeReasonRotated
}

// AccessClaims are the self-contained contents of an access token
type AccessClaims struct {
	ID        string
	Subject   string // user ID
	Wallet    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is what a successful login or refresh hands back to the caller
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	UserID           string
	Address          string
}
