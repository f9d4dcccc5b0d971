package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
	"github.com/redis/go-redis/v9"
)

// challenges outlive their expiry by this much so that a late attempt is
// reported as expired rather than missing in the logs
const nonceRetention = time.Minute

type challengeRecord struct {
	Nonce     string    `json:"nonce"`
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisNonceStore shares pending challenges between instances
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

// NewRedisNonceStore creates a Redis-backed nonce store
func NewRedisNonceStore(client *redis.Client) ports.NonceStore {
	return &RedisNonceStore{
		client: client,
		prefix: "payroll-auth:nonce:",
	}
}

// Insert stores the challenge with SET NX so a taken nonce is never overwritten
func (s *RedisNonceStore) Insert(ctx context.Context, challenge core.Challenge) error {
	payload, err := json.Marshal(challengeRecord(challenge))
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	ttl := challenge.ExpiresAt.Sub(challenge.CreatedAt) + nonceRetention
	ok, err := s.client.SetNX(ctx, s.prefix+challenge.Nonce, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	if !ok {
		return core.ErrNonceExists
	}

	return nil
}

// Consume reads and deletes the challenge in one GETDEL
func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) (core.Challenge, bool, error) {
	payload, err := s.client.GetDel(ctx, s.prefix+nonce).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Challenge{}, false, nil
		}
		return core.Challenge{}, false, fmt.Errorf("failed to consume challenge: %w", err)
	}

	var rec challengeRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return core.Challenge{}, false, fmt.Errorf("failed to decode challenge: %w", err)
	}

	return core.Challenge(rec), true, nil
}

// Sweep is a no-op: Redis expires challenge keys on its own
func (s *RedisNonceStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
