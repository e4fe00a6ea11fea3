package usage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/joelbyler272/naturescripts-sub001/pkg/enum"
	"github.com/redis/go-redis/v9"
)

const (
	redisUsageKeyPrefix = "usage:"
	redisUserKeyPrefix  = "user:"
	redisTierField      = "tier"

	// counters outlive their week so late reads still see the final value
	redisUsageTTL = 14 * 24 * time.Hour
)

//go:embed scripts/redis_lua/increment_below.lua
var incrementBelowLuaScript string

var incrementBelowScript = redis.NewScript(incrementBelowLuaScript)

type RedisStore struct {
	dB *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{dB: client}
}

func redisUsageKey(userID string, weekStart time.Time) string {
	return redisUsageKeyPrefix + userID + ":" + WeekKey(weekStart)
}

func (r *RedisStore) GetTier(ctx context.Context, userID string) (enum.Tier, error) {
	value, err := r.dB.HGet(ctx, redisUserKeyPrefix+userID, redisTierField).Result()
	if errors.Is(err, redis.Nil) {
		return enum.Free, nil
	}
	if err != nil {
		return enum.Free, fmt.Errorf("fetch tier of %s: %w", userID, err)
	}
	return enum.ParseTier(value)
}

func (r *RedisStore) SetTier(ctx context.Context, userID string, tier enum.Tier) error {
	if err := r.dB.HSet(ctx, redisUserKeyPrefix+userID, redisTierField, tier.String()).Err(); err != nil {
		return fmt.Errorf("store tier of %s: %w", userID, err)
	}
	return nil
}

func (r *RedisStore) GetWeeklyCount(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	key := redisUsageKey(userID, weekStart)
	count, err := r.dB.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", key, err)
	}
	return count, nil
}

func (r *RedisStore) IncrementWeeklyCount(ctx context.Context, userID string, weekStart time.Time) (int, error) {
	key := redisUsageKey(userID, weekStart)

	var incr *redis.IntCmd
	_, err := r.dB.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, redisUsageTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}

	return int(incr.Val()), nil
}

func (r *RedisStore) IncrementWeeklyCountBelow(ctx context.Context, userID string, weekStart time.Time, limit int) (int, bool, error) {
	key := redisUsageKey(userID, weekStart)

	result, err := incrementBelowScript.Run(ctx, r.dB, []string{key}, limit, redisUsageTTL.Milliseconds()).Result()
	if err != nil {
		return 0, false, fmt.Errorf("conditional increment %s: %w", key, err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return 0, false, errors.New("unexpected redis script result")
	}

	incremented, okIncremented := values[0].(int64)
	count, okCount := values[1].(int64)
	if !okIncremented || !okCount {
		return 0, false, errors.New("invalid value types in redis script result")
	}

	return int(count), incremented == 1, nil
}
