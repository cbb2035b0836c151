package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/teranos/vacancy/errors"
)

// RedisLimiter enforces a per-client fixed-window budget shared by every
// instance pointed at the same Redis.
type RedisLimiter struct {
	client         *redis.Client
	prefix         string
	unitsPerWindow int
	window         time.Duration
	timeNow        func() time.Time
}

// NewRedisLimiter creates a limiter allowing unitsPerMinute per client
func NewRedisLimiter(client *redis.Client, unitsPerMinute int) *RedisLimiter {
	return &RedisLimiter{
		client:         client,
		prefix:         "vacancy:admission:",
		unitsPerWindow: unitsPerMinute,
		window:         time.Minute,
		timeNow:        time.Now,
	}
}

// NewRedisClient connects to addr
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Evaluate implements Gate
func (r *RedisLimiter) Evaluate(ctx context.Context, req Request, cost int) (Decision, error) {
	bucket := r.timeNow().Unix() / int64(r.window/time.Second)
	key := fmt.Sprintf("%s%s:%d", r.prefix, req.ClientKey, bucket)

	pipe := r.client.TxPipeline()
	incr := pipe.IncrBy(ctx, key, int64(cost))
	pipe.Expire(ctx, key, 2*r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, errors.Wrap(err, "redis admission counter")
	}

	if used := incr.Val(); used > int64(r.unitsPerWindow) {
		return Deny(fmt.Sprintf("rate limit exceeded: %d units this minute (limit: %d)", used, r.unitsPerWindow)), nil
	}
	return Allowed, nil
}
