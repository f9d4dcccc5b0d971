package payrollauth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/layer-3/payroll-auth/adapters/clock"
	"github.com/layer-3/payroll-auth/adapters/ethsig"
	"github.com/layer-3/payroll-auth/adapters/store"
	"github.com/layer-3/payroll-auth/adapters/tokenizer"
	"github.com/layer-3/payroll-auth/adapters/users"
	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
	"github.com/layer-3/payroll-auth/service"
)

// ErrEmptySigningKey is returned when no access token key is configured
var ErrEmptySigningKey = errors.New("signing key must not be empty")

// Options configure an in-memory client. Zero values fall back to defaults.
type Options struct {
	Config     service.Config
	SigningKey []byte

	// Users replaces the in-memory user directory, typically with the
	// application's own user table
	Users  ports.UserDirectory
	Clock  ports.Clock
	Logger *zap.Logger
}

type client struct {
	svc *service.AuthService
}

// NewInMemory builds a Client whose challenges, rate limits and sessions live
// in process memory
func NewInMemory(opts Options) (Client, error) {
	if len(opts.SigningKey) == 0 {
		return nil, ErrEmptySigningKey
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.System()
	}
	directory := opts.Users
	if directory == nil {
		directory = users.NewMemoryDirectory()
	}

	svc := service.NewAuthService(opts.Config, service.Dependencies{
		Nonces:     store.NewMemoryNonceStore(),
		Limiter:    store.NewMemoryRateLimiter(clk, store.DefaultRateLimitWindow, store.DefaultRateLimitMax),
		Sessions:   store.NewMemorySessionStore(),
		Users:      directory,
		Tokenizer:  tokenizer.NewJWTTokenizer(opts.SigningKey, tokenizer.DefaultIssuer, tokenizer.DefaultAudience),
		Signatures: ethsig.NewPersonalSignVerifier(),
		Clock:      clk,
		Logger:     opts.Logger,
	})

	return &client{svc: svc}, nil
}

func (c *client) Challenge(ctx context.Context, address, clientKey string) (core.Challenge, error) {
	return c.svc.RequestChallenge(ctx, address, clientKey)
}

func (c *client) Login(ctx context.Context, address, signature, nonce, clientKey string) (core.TokenPair, error) {
	return c.svc.VerifyAndIssue(ctx, address, signature, nonce, clientKey)
}

func (c *client) Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error) {
	return c.svc.Refresh(ctx, refreshToken)
}

func (c *client) Logout(ctx context.Context, refreshToken string) error {
	return c.svc.Logout(ctx, refreshToken)
}

func (c *client) LogoutAll(ctx context.Context, userID string) (int, error) {
	return c.svc.LogoutAll(ctx, userID)
}

func (c *client) Authenticate(ctx context.Context, accessToken string) (core.AccessClaims, error) {
	return c.svc.Authenticate(ctx, accessToken)
}
