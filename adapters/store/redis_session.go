package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
	"github.com/redis/go-redis/v9"
)

// revoked sessions stay readable for a day past expiry so reuse can still be recognized
const sessionRetention = 24 * time.Hour

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1", "revoked_at", ARGV[1], "revoke_reason", ARGV[2])
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// RedisSessionStore keeps refresh sessions as hashes with per-user and
// per-family index sets
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(client *redis.Client) ports.SessionStore {
	return &RedisSessionStore{
		client: client,
		prefix: "payroll-auth:",
	}
}

func (s *RedisSessionStore) sessionKey(hash string) string {
	return s.prefix + "session:" + hash
}

func (s *RedisSessionStore) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *RedisSessionStore) familyKey(familyID string) string {
	return s.prefix + "family:" + familyID
}

func (s *RedisSessionStore) Save(ctx context.Context, session core.RefreshSession) error {
	ttl := session.ExpiresAt.Sub(session.IssuedAt) + sessionRetention
	key := s.sessionKey(session.TokenHash)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"id":             session.ID,
			"user_id":        session.UserID,
			"wallet_address": session.Address,
			"family_id":      session.FamilyID,
			"issued_at":      session.IssuedAt.UnixNano(),
			"expires_at":     session.ExpiresAt.UnixNano(),
			"revoked":        "0",
			"revoked_at":     "",
			"revoke_reason":  "",
		})
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, s.userKey(session.UserID), session.TokenHash)
		pipe.Expire(ctx, s.userKey(session.UserID), ttl)
		pipe.SAdd(ctx, s.familyKey(session.FamilyID), session.TokenHash)
		pipe.Expire(ctx, s.familyKey(session.FamilyID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save refresh session: %w", err)
	}

	return nil
}

func (s *RedisSessionStore) FindByHash(ctx context.Context, hash string) (core.RefreshSession, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(hash)).Result()
	if err != nil {
		return core.RefreshSession{}, fmt.Errorf("failed to load refresh session: %w", err)
	}
	if len(fields) == 0 {
		return core.RefreshSession{}, core.ErrSessionNotFound
	}

	session, err := decodeSession(hash, fields)
	if err != nil {
		return core.RefreshSession{}, fmt.Errorf("failed to decode refresh session: %w", err)
	}

	return session, nil
}

func (s *RedisSessionStore) MarkRevoked(ctx context.Context, hash string, reason core.RevokeReason, at time.Time) (bool, error) {
	n, err := revokeLua.Run(ctx, s.client, []string{s.sessionKey(hash)}, at.UnixNano(), string(reason)).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh session: %w", err)
	}
	return n == 1, nil
}

func (s *RedisSessionStore) MarkAllRevokedForUser(ctx context.Context, userID string, reason core.RevokeReason, at time.Time) (int, error) {
	return s.revokeMembers(ctx, s.userKey(userID), reason, at)
}

func (s *RedisSessionStore) MarkFamilyRevoked(ctx context.Context, familyID string, reason core.RevokeReason, at time.Time) (int, error) {
	return s.revokeMembers(ctx, s.familyKey(familyID), reason, at)
}

func (s *RedisSessionStore) revokeMembers(ctx context.Context, indexKey string, reason core.RevokeReason, at time.Time) (int, error) {
	hashes, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list refresh sessions: %w", err)
	}

	revoked := 0
	for _, hash := range hashes {
		ok, err := s.MarkRevoked(ctx, hash, reason, at)
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}

	return revoked, nil
}

// Sweep is a no-op: session keys carry their own TTL
func (s *RedisSessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func decodeSession(hash string, fields map[string]string) (core.RefreshSession, error) {
	issuedAt, err := parseUnixNano(fields["issued_at"])
	if err != nil {
		return core.RefreshSession{}, err
	}
	expiresAt, err := parseUnixNano(fields["expires_at"])
	if err != nil {
		return core.RefreshSession{}, err
	}

	session := core.RefreshSession{
		ID:           fields["id"],
		TokenHash:    hash,
		UserID:       fields["user_id"],
		Address:      fields["wallet_address"],
		FamilyID:     fields["family_id"],
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
		Revoked:      fields["revoked"] == "1",
		RevokeReason: core.RevokeReason(fields["revoke_reason"]),
	}

	if raw := fields["revoked_at"]; raw != "" {
		revokedAt, err := parseUnixNano(raw)
		if err != nil {
			return core.RefreshSession{}, err
		}
		session.RevokedAt = &revokedAt
	}

	return session, nil
}

func parseUnixNano(raw string) (time.Time, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", raw, err)
	}
	return time.Unix(0, n).UTC(), nil
}
