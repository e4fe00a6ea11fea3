package rate_limiter

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:"

//go:embed scripts/redis_lua/fixed_window.lua
var fixedWindowLuaScript string

var fixedWindowScript = redis.NewScript(fixedWindowLuaScript)

// RedisStorage hands out limiters whose counters live in Redis, so every replica shares them.
type RedisStorage struct {
	dB *redis.Client
}

func NewRedis(client *redis.Client) *RedisStorage {
	return &RedisStorage{dB: client}
}

func (r *RedisStorage) Configure(policy Policy) (RateLimiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &RedisFixedWindow{
		dB:     r.dB,
		policy: policy,
		prefix: redisKeyPrefix + policy.Key() + ":",
	}, nil
}

// RedisFixedWindow applies the same fixed-window rules as FixedWindow; expiry is left to key TTLs.
type RedisFixedWindow struct {
	dB     *redis.Client
	policy Policy
	prefix string
}

func (rw *RedisFixedWindow) key(identifier string) string {
	return rw.prefix + normalizeIdentifier(identifier)
}

func (rw *RedisFixedWindow) Check(ctx context.Context, identifier string) (Result, error) {
	result, err := fixedWindowScript.Run(
		ctx,
		rw.dB,
		[]string{rw.key(identifier)},
		rw.policy.Window.Milliseconds(),
		rw.policy.MaxRequests,
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, errors.New("unexpected redis script result")
	}

	allowed, okAllowed := values[0].(int64)
	count, okCount := values[1].(int64)
	ttl, okTTL := values[2].(int64)
	if !okAllowed || !okCount || !okTTL {
		return Result{}, errors.New("invalid value types in redis script result")
	}

	limit := rw.policy.MaxRequests
	if allowed == 0 {
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: time.Duration(ttl) * time.Millisecond,
		}, nil
	}

	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(count),
	}, nil
}

func (rw *RedisFixedWindow) Reset(ctx context.Context, identifier string) error {
	if err := rw.dB.Del(ctx, rw.key(identifier)).Err(); err != nil {
		return fmt.Errorf("redis rate limit reset failed: %w", err)
	}
	return nil
}

func (rw *RedisFixedWindow) Peek(ctx context.Context, identifier string) (Entry, bool, error) {
	key := rw.key(identifier)

	pipe := rw.dB.Pipeline()
	countCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	_, err := pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis rate limit peek failed: %w", err)
	}

	count, err := countCmd.Int()
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis rate limit peek failed: %w", err)
	}

	return Entry{
		Count:     count,
		ResetTime: time.Now().Add(ttlCmd.Val()),
	}, true, nil
}

func (rw *RedisFixedWindow) Policy() Policy {
	return rw.policy
}
