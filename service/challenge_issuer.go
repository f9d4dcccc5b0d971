package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
)

const (
	nonceBytes         = 32
	maxNonceCollisions = 3

	// challenge requests sweep the stores at most this often
	inlineSweepInterval = 30 * time.Second
)

// ChallengeIssuer hands out single-use challenges for wallets to sign
type ChallengeIssuer struct {
	nonces  ports.NonceStore
	limiter ports.RateLimiter
	clock   ports.Clock
	logger  *zap.Logger

	domain  string
	product string
	ttl     time.Duration

	lastSweep atomic.Int64 // unix nanos of the last inline sweep
}

// NewChallengeIssuer creates a new challenge issuer
func NewChallengeIssuer(cfg Config, nonces ports.NonceStore, limiter ports.RateLimiter, clock ports.Clock, logger *zap.Logger) *ChallengeIssuer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChallengeIssuer{
		nonces:  nonces,
		limiter: limiter,
		clock:   clock,
		logger:  logger,
		domain:  cfg.Domain,
		product: cfg.Product,
		ttl:     cfg.ChallengeTTL,
	}
}

// Issue creates and stores a challenge for address on behalf of clientKey
func (i *ChallengeIssuer) Issue(ctx context.Context, address, clientKey string) (core.Challenge, error) {
	address = strings.TrimSpace(address)
	if err := checkInput(challengeRequest{Address: address, ClientKey: clientKey}); err != nil {
		return core.Challenge{}, err
	}

	allowed, err := i.limiter.Allow(ctx, clientKey)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("rate limiter: %w", err)
	}
	if !allowed {
		return core.Challenge{}, core.ErrRateLimited
	}

	now := i.clock.Now().UTC()
	i.maybeSweep(ctx, now)

	address = strings.ToLower(address)
	for attempt := 0; attempt < maxNonceCollisions; attempt++ {
		nonce, err := newNonce()
		if err != nil {
			return core.Challenge{}, err
		}

		challenge := core.Challenge{
			Nonce:     nonce,
			Address:   address,
			Message:   core.BuildChallengeMessage(i.product, i.domain, address, nonce, now),
			CreatedAt: now,
			ExpiresAt: now.Add(i.ttl),
		}

		err = i.nonces.Insert(ctx, challenge)
		if errors.Is(err, core.ErrNonceExists) {
			i.logger.Warn("nonce collision", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return core.Challenge{}, fmt.Errorf("store challenge: %w", err)
		}
		return challenge, nil
	}

	return core.Challenge{}, fmt.Errorf("no unique nonce after %d attempts", maxNonceCollisions)
}

// Sweep drops expired challenges and stale rate-limit entries.
// Failures are logged and otherwise ignored.
func (i *ChallengeIssuer) Sweep(ctx context.Context, now time.Time) {
	if n, err := i.nonces.Sweep(ctx, now); err != nil {
		i.logger.Warn("sweep challenges failed", zap.Error(err))
	} else if n > 0 {
		i.logger.Debug("swept challenges", zap.Int("count", n))
	}

	if n, err := i.limiter.Sweep(ctx, now); err != nil {
		i.logger.Warn("sweep rate limits failed", zap.Error(err))
	} else if n > 0 {
		i.logger.Debug("swept rate limit entries", zap.Int("count", n))
	}
}

// maybeSweep runs Sweep when inlineSweepInterval has passed since the last
// inline sweep. Of concurrent callers only one sweeps.
func (i *ChallengeIssuer) maybeSweep(ctx context.Context, now time.Time) {
	last := i.lastSweep.Load()
	if last != 0 && now.UnixNano()-last < int64(inlineSweepInterval) {
		return
	}
	if !i.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	i.Sweep(ctx, now)
}

func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
