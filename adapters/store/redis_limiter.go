package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The window is the key TTL: the first hit creates the key, INCR keeps the
// TTL, and once the count passes max it stops moving.
const allowScript = `
local count = redis.call("GET", KEYS[1])
if not count then
  redis.call("SET", KEYS[1], 1, "PX", ARGV[1])
  return 1
end
count = tonumber(count)
if count > tonumber(ARGV[2]) then
  return count
end
return redis.call("INCR", KEYS[1])
`

var allowLua = redis.NewScript(allowScript)

// RedisRateLimiter is the fixed-window limiter shared across instances.
// Window boundaries follow the Redis server clock.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
	max    int
}

// NewRedisRateLimiter creates a limiter allowing max requests per window
func NewRedisRateLimiter(client *redis.Client, window time.Duration, max int) *RedisRateLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if max <= 0 {
		max = DefaultRateLimitMax
	}
	return &RedisRateLimiter{
		client: client,
		prefix: "payroll-auth:ratelimit:",
		window: window,
		max:    max,
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	count, err := allowLua.Run(ctx, l.client, []string{l.prefix + clientKey}, l.window.Milliseconds(), l.max).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return count <= int64(l.max), nil
}

// Sweep is a no-op: counters expire with their window
func (l *RedisRateLimiter) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
