package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "login_failures:"

// RedisLimiter shares attempt counters between instances. Each key is a
// counter whose TTL is the lockout window, refreshed on every failure, so an
// expired key is the same as a reset entry.
type RedisLimiter struct {
	client redis.UniversalClient
	opts   Options
	prefix string
}

func NewRedisLimiter(client redis.UniversalClient, opts Options) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		opts:   opts.withDefaults(),
		prefix: defaultKeyPrefix,
	}
}

func (l *RedisLimiter) key(k string) string {
	return l.prefix + k
}

func (l *RedisLimiter) Check(ctx context.Context, key string) (time.Duration, error) {
	count, err := l.client.Get(ctx, l.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read attempt counter: %w", err)
	}
	if count < l.opts.MaxAttempts {
		return 0, nil
	}

	ttl, err := l.client.PTTL(ctx, l.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("read attempt counter ttl: %w", err)
	}
	switch {
	case ttl == -2:
		// Expired between GET and PTTL.
		return 0, nil
	case ttl < 0:
		// Key without expiry; treat the whole window as remaining.
		return l.opts.Window, nil
	}
	return ttl, nil
}

func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) error {
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, l.key(key))
	pipe.PExpire(ctx, l.key(key), l.opts.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("reset attempt counter: %w", err)
	}
	return nil
}

// Ping reports whether the backing Redis is reachable.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
