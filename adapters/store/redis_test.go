package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/payroll-auth/core"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisNonceStore(t *testing.T) {
	mr, client := newRedis(t)
	s := NewRedisNonceStore(client)
	ctx := context.Background()
	ch := testChallenge("n1", storeStart)

	require.NoError(t, s.Insert(ctx, ch))
	require.ErrorIs(t, s.Insert(ctx, ch), core.ErrNonceExists)

	ttl := mr.TTL("payroll-auth:nonce:n1")
	assert.Equal(t, 5*time.Minute+nonceRetention, ttl)

	got, ok, err := s.Consume(ctx, "n1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ch.Nonce, got.Nonce)
	assert.Equal(t, ch.Address, got.Address)
	assert.Equal(t, ch.Message, got.Message)
	assert.True(t, ch.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, ch.ExpiresAt.Equal(got.ExpiresAt))

	_, ok, err = s.Consume(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("payroll-auth:nonce:n1"))
}

func TestRedisNonceStoreExpiresKeys(t *testing.T) {
	mr, client := newRedis(t)
	s := NewRedisNonceStore(client)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testChallenge("n1", storeStart)))
	mr.FastForward(5*time.Minute + nonceRetention)

	_, ok, err := s.Consume(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Sweep(ctx, storeStart)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisRateLimiter(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedisRateLimiter(client, time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		require.True(t, ok)
	}
	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	count, err := mr.Get("payroll-auth:ratelimit:ip")
	require.NoError(t, err)
	assert.Equal(t, "4", count, "the counter saturates one past the limit")

	ok, err := l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute)
	ok, err = l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, ok)

	count, err = mr.Get("payroll-auth:ratelimit:ip")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestRedisSessionStore(t *testing.T) {
	mr, client := newRedis(t)
	s := NewRedisSessionStore(client)
	ctx := context.Background()

	_, err := s.FindByHash(ctx, "missing")
	require.ErrorIs(t, err, core.ErrSessionNotFound)

	session := testSession("h1", "u1", "f1")
	require.NoError(t, s.Save(ctx, session))
	assert.Equal(t, 7*24*time.Hour+sessionRetention, mr.TTL("payroll-auth:session:h1"))

	got, err := s.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, session, got)

	at := storeStart.Add(time.Minute)
	ok, err := s.MarkRevoked(ctx, "h1", core.RevokeReasonRotated, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkRevoked(ctx, "h1", core.RevokeReasonLogout, at)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkRevoked(ctx, "missing", core.RevokeReasonLogout, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("payroll-auth:session:missing"))

	n, err := s.Sweep(ctx, storeStart.Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "keys expire through their TTL")

	got, err = s.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, got.Rotated())
	require.NotNil(t, got.RevokedAt)
	assert.Equal(t, at, *got.RevokedAt)
}

func TestRedisSessionStoreBulkRevoke(t *testing.T) {
	_, client := newRedis(t)
	s := NewRedisSessionStore(client)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSession("a1", "alice", "fa")))
	require.NoError(t, s.Save(ctx, testSession("a2", "alice", "fa")))
	require.NoError(t, s.Save(ctx, testSession("a3", "alice", "fb")))
	require.NoError(t, s.Save(ctx, testSession("b1", "bob", "fc")))

	n, err := s.MarkFamilyRevoked(ctx, "fa", core.RevokeReasonReuse, storeStart)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.MarkAllRevokedForUser(ctx, "alice", core.RevokeReasonLogoutAll, storeStart)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a1, err := s.FindByHash(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, core.RevokeReasonReuse, a1.RevokeReason)

	b1, err := s.FindByHash(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, b1.Revoked)

	n, err = s.MarkAllRevokedForUser(ctx, "nobody", core.RevokeReasonLogoutAll, storeStart)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisSessionStoreConcurrentRevoke(t *testing.T) {
	_, client := newRedis(t)
	s := NewRedisSessionStore(client)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testSession("h1", "u1", "f1")))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.MarkRevoked(ctx, "h1", core.RevokeReasonRotated, storeStart)
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
}
