// Package payrollauth embeds wallet login and session tokens into another Go
// process, such as the payroll monolith, without running the HTTP service.
package payrollauth

import (
	"context"

	"github.com/layer-3/payroll-auth/core"
)

// Client represents the public interface for interacting with the session service
type Client interface {
	// Challenge issues a message for address to sign. clientKey identifies the
	// caller for rate limiting, usually its IP.
	Challenge(ctx context.Context, address, clientKey string) (core.Challenge, error)

	// Login verifies the signed challenge and returns new tokens
	Login(ctx context.Context, address, signature, nonce, clientKey string) (core.TokenPair, error)

	// Refresh rotates the refresh token and returns new tokens
	Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error)

	// Logout invalidates the refresh token
	Logout(ctx context.Context, refreshToken string) error

	// LogoutAll invalidates every refresh token of userID
	LogoutAll(ctx context.Context, userID string) (int, error)

	// Authenticate validates an access token
	Authenticate(ctx context.Context, accessToken string) (core.AccessClaims, error)
}
