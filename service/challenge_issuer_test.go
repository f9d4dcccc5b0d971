package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/payroll-auth/adapters/clock"
	"github.com/layer-3/payroll-auth/adapters/store"
	"github.com/layer-3/payroll-auth/ports"
)

type countingNonces struct {
	ports.NonceStore
	sweeps atomic.Int32
}

func (c *countingNonces) Sweep(ctx context.Context, now time.Time) (int, error) {
	c.sweeps.Add(1)
	return c.NonceStore.Sweep(ctx, now)
}

func TestChallengeIssuerSweepsAtMostOncePerInterval(t *testing.T) {
	c := clock.NewManual(testStart)
	_, address := newWallet(t)
	nonces := &countingNonces{NonceStore: store.NewMemoryNonceStore()}
	issuer := NewChallengeIssuer(Config{}, nonces, store.NewMemoryRateLimiter(c, time.Minute, 1000), c, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := issuer.Issue(ctx, address, "10.0.0.1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, nonces.sweeps.Load())

	c.Advance(inlineSweepInterval - time.Second)
	_, err := issuer.Issue(ctx, address, "10.0.0.1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, nonces.sweeps.Load())

	c.Advance(time.Second)
	_, err = issuer.Issue(ctx, address, "10.0.0.1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, nonces.sweeps.Load())

	issuer.Sweep(ctx, c.Now())
	assert.EqualValues(t, 3, nonces.sweeps.Load(), "explicit sweeps are not gated")
}

func TestChallengeIssuerInlineSweepDropsExpired(t *testing.T) {
	c := clock.NewManual(testStart)
	_, address := newWallet(t)
	nonces := store.NewMemoryNonceStore()
	issuer := NewChallengeIssuer(Config{}, nonces, store.NewMemoryRateLimiter(c, 0, 0), c, nil)
	ctx := context.Background()

	old, err := issuer.Issue(ctx, address, "10.0.0.1")
	require.NoError(t, err)

	c.Advance(DefaultChallengeTTL + time.Second)
	_, err = issuer.Issue(ctx, address, "10.0.0.2")
	require.NoError(t, err)

	_, ok, err := nonces.Consume(ctx, old.Nonce)
	require.NoError(t, err)
	assert.False(t, ok)
}
