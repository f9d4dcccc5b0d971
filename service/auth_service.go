package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/internal/metrics"
	"github.com/layer-3/payroll-auth/ports"
)

// Dependencies are the collaborators AuthService is assembled from.
// Events, Metrics and Logger may be nil.
type Dependencies struct {
	Nonces     ports.NonceStore
	Limiter    ports.RateLimiter
	Sessions   ports.SessionStore
	Users      ports.UserDirectory
	Tokenizer  ports.Tokenizer
	Signatures ports.SignatureVerifier
	Events     ports.EventPublisher
	Clock      ports.Clock
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// AuthService handles authentication business logic
type AuthService struct {
	issuer   *ChallengeIssuer
	verifier *LoginVerifier
	tokens   *TokenService
	users    ports.UserDirectory
	clock    ports.Clock
	eventPub ports.EventPublisher
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(cfg Config, deps Dependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		issuer:   NewChallengeIssuer(cfg, deps.Nonces, deps.Limiter, deps.Clock, logger),
		verifier: NewLoginVerifier(deps.Nonces, deps.Signatures, deps.Clock),
		tokens:   NewTokenService(cfg, deps.Tokenizer, deps.Sessions, deps.Clock),
		users:    deps.Users,
		clock:    deps.Clock,
		eventPub: deps.Events,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// RequestChallenge issues a challenge for address, rate limited per clientKey
func (s *AuthService) RequestChallenge(ctx context.Context, address, clientKey string) (core.Challenge, error) {
	challenge, err := s.issuer.Issue(ctx, address, clientKey)
	s.metrics.ObserveChallenge(outcome(err))
	if err != nil {
		return core.Challenge{}, s.fail("challenge request failed", err, core.ErrInternal,
			zap.String("address", strings.ToLower(address)),
			zap.String("client_key", clientKey),
		)
	}

	s.logger.Debug("challenge issued",
		zap.String("address", challenge.Address),
		zap.Time("expires_at", challenge.ExpiresAt),
	)
	return challenge, nil
}

// VerifyAndIssue checks the signed challenge and logs the wallet in. The
// challenge is gone after this call whatever the result.
func (s *AuthService) VerifyAndIssue(ctx context.Context, address, signature, nonce, clientKey string) (core.TokenPair, error) {
	pair, err := s.verifyAndIssue(ctx, address, signature, nonce)
	s.metrics.ObserveLogin(outcome(err))
	if err != nil {
		return core.TokenPair{}, s.fail("login failed", err, core.ErrChallengeNotFound,
			zap.String("address", strings.ToLower(address)),
			zap.String("client_key", clientKey),
		)
	}

	s.logger.Info("login succeeded",
		zap.String("user_id", pair.UserID),
		zap.String("address", pair.Address),
	)
	return pair, nil
}

func (s *AuthService) verifyAndIssue(ctx context.Context, address, signature, nonce string) (core.TokenPair, error) {
	challenge, err := s.verifier.Verify(ctx, address, signature, nonce)
	if err != nil {
		return core.TokenPair{}, err
	}

	userID, err := s.users.FindOrCreateByWallet(ctx, challenge.Address)
	if err != nil {
		return core.TokenPair{}, errors.Join(core.ErrInternal, err)
	}

	pair, session, err := s.tokens.Issue(ctx, userID, challenge.Address)
	if err != nil {
		return core.TokenPair{}, errors.Join(core.ErrInternal, err)
	}

	s.publish("login", func(p ports.EventPublisher) error {
		return p.PublishLogin(ctx, userID, challenge.Address, session.FamilyID)
	})
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. Each refresh token can be
// exchanged once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error) {
	pair, old, err := s.tokens.Refresh(ctx, refreshToken)
	s.metrics.ObserveRefresh(outcome(err))
	if err != nil {
		var reuse *ReuseError
		if errors.As(err, &reuse) {
			s.reportReuse(ctx, reuse)
		}
		return core.TokenPair{}, s.fail("refresh failed", err, core.ErrInvalidRefreshToken,
			zap.String("family_id", old.FamilyID),
		)
	}

	s.logger.Debug("refresh token rotated",
		zap.String("user_id", pair.UserID),
		zap.String("family_id", old.FamilyID),
	)
	return pair, nil
}

func (s *AuthService) reportReuse(ctx context.Context, reuse *ReuseError) {
	s.metrics.ObserveRefreshReuse()
	s.logger.Warn("rotated refresh token presented again",
		zap.String("user_id", reuse.Session.UserID),
		zap.String("family_id", reuse.Session.FamilyID),
		zap.String("token_hash", reuse.Session.TokenHash),
		zap.Int("family_revoked", reuse.FamilyRevoked),
	)
	s.publish("refresh_reuse", func(p ports.EventPublisher) error {
		return p.PublishRefreshReuse(ctx, reuse.Session.UserID, reuse.Session.FamilyID, reuse.Session.TokenHash)
	})
}

// Logout revokes the given refresh token. Unknown or already revoked tokens
// succeed silently.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	session, revoked, err := s.tokens.Revoke(ctx, refreshToken)
	if err != nil {
		return s.fail("logout failed", err, core.ErrInternal)
	}
	if !revoked {
		return nil
	}

	s.logger.Info("logged out",
		zap.String("user_id", session.UserID),
		zap.String("family_id", session.FamilyID),
	)
	s.publish("logout", func(p ports.EventPublisher) error {
		return p.PublishLogout(ctx, session.UserID, session.FamilyID)
	})
	return nil
}

// LogoutAll revokes every refresh session of userID and reports how many were active
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, core.ErrInvalidInput
	}

	n, err := s.tokens.RevokeAll(ctx, userID)
	if err != nil {
		return 0, s.fail("logout all failed", err, core.ErrInternal, zap.String("user_id", userID))
	}

	s.logger.Info("logged out everywhere", zap.String("user_id", userID), zap.Int("revoked", n))
	s.publish("logout_all", func(p ports.EventPublisher) error {
		return p.PublishLogoutAll(ctx, userID, n)
	})
	return n, nil
}

// Authenticate validates an access token and returns its claims
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (core.AccessClaims, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		s.logger.Debug("access token rejected", zap.Error(err))
		return core.AccessClaims{}, core.ErrInvalidAccessToken
	}
	return claims, nil
}

// Sweep runs the expiry cleanup of challenges, rate-limit entries and
// long-expired refresh sessions
func (s *AuthService) Sweep(ctx context.Context) {
	now := s.clock.Now()
	s.issuer.Sweep(ctx, now)

	if n, err := s.tokens.Sweep(ctx, now); err != nil {
		s.logger.Warn("sweep refresh sessions failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("swept refresh sessions", zap.Int("count", n))
	}
}

// RunSweeper sweeps every interval until ctx is done
func (s *AuthService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// fail logs err with its internal reason and returns the caller-facing
// error. Faults that carry no *core.Error are reported as fallback.
func (s *AuthService) fail(msg string, err error, fallback *core.Error, fields ...zap.Field) error {
	var authErr *core.Error
	fault := !errors.As(err, &authErr)
	if fault {
		authErr = fallback
	}

	fields = append(fields, zap.String("code", string(authErr.Code)), zap.Error(err))
	if fault || authErr.Code == core.CodeInternal {
		s.logger.Error(msg, fields...)
	} else {
		s.logger.Info(msg, fields...)
	}
	return authErr
}

// publish hands an event to the publisher. Failures are logged only, the
// state change it announces has already happened.
func (s *AuthService) publish(event string, send func(ports.EventPublisher) error) {
	if s.eventPub == nil {
		return
	}
	if err := send(s.eventPub); err != nil {
		s.logger.Warn("failed to publish event", zap.String("event", event), zap.Error(err))
	}
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var authErr *core.Error
	if errors.As(err, &authErr) {
		return strings.ToLower(string(authErr.Code))
	}
	return "internal_error"
}
