package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window per-wallet limiter backed by Redis. A nil
// limiter allows everything, so deployments without Redis keep working.
type RateLimiter struct {
	redis *redis.Client
}

// NewRateLimiter creates a rate limiter around a Redis client.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{redis: client}
}

// Allow counts one attempt for (wallet, action) and reports whether the
// window's budget still covers it.
func (l *RateLimiter) Allow(ctx context.Context, wallet, action string, limit int, window time.Duration) (bool, error) {
	if l == nil || l.redis == nil {
		return true, nil
	}

	key := fmt.Sprintf("mochi:ratelimit:%s:%s", wallet, action)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count == 1 {
		l.redis.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}
