package httpmiddleware

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding log Limiter shared by all API replicas. Each
// allowed request is a member of a sorted set scored by its timestamp.
type RedisLimiter struct {
	client redis.UniversalClient
	max    int
	window time.Duration
	prefix string
}

// NewRedisLimiter creates a RedisLimiter allowing max requests per window.
func NewRedisLimiter(client redis.UniversalClient, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		max:    max,
		window: window,
		prefix: "ratelimit:",
	}
}

// Allow implements Limiter.
func (rl *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	redisKey := rl.prefix + key
	member := uuid.NewString()
	windowStart := now.Add(-rl.window)

	var count *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
		count = pipe.ZCard(ctx, redisKey)
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
		pipe.PExpire(ctx, redisKey, rl.window)
		return nil
	})
	if err != nil {
		return Decision{}, errors.Wrap(err, "redis rate limit")
	}

	seen := int(count.Val())
	resetAt := now.Add(rl.window)
	if seen >= rl.max {
		// Rejected requests do not occupy the window.
		if err := rl.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return Decision{}, errors.Wrap(err, "redis rate limit rollback")
		}
		return Decision{ResetAt: resetAt}, nil
	}
	return Decision{
		Allowed:   true,
		Remaining: rl.max - seen - 1,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the window of key.
func (rl *RedisLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, rl.prefix+key).Err()
}
