package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts requests per key dalam fixed window. Counter
// hidup di redis, jadi limit tetap kepegang walau API jalan beberapa
// replica.
type RedisLimiter struct {
	client *redis.Client
}

var allowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

func NewRedisLimiter(addr, password string, db int) (*RedisLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisLimiter{client: client}, nil
}

// Allow increments the window counter and reports whether the caller
// is still under limit, plus how long until the window resets.
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if limit <= 0 {
		return true, 0, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	result, err := allowScript.Run(ctx, r.client, []string{key}, windowMillis).Result()
	if err != nil {
		return false, 0, err
	}
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return false, 0, errors.New("unexpected redis rate limit response")
	}
	current, ok := values[0].(int64)
	if !ok {
		return false, 0, errors.New("invalid redis counter response")
	}
	ttlMillis, _ := values[1].(int64)
	retryAfter := time.Duration(0)
	if ttlMillis > 0 {
		retryAfter = time.Duration(ttlMillis) * time.Millisecond
	}
	return current <= int64(limit), retryAfter, nil
}

// Ping checks connectivity, dipakai health check
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
