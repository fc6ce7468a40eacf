package rediscache

import (
	"context"
	"time"

	"github.com/BearBump/DeliveryReport/internal/cache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every replica of the form.
// The window opens with the first hit; later hits do not move it.
type RateLimiter struct {
	c      *redis.Client
	prefix string
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c:      redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "reports:rl:",
	}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (cache.Decision, error) {
	key = rl.prefix + key

	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return cache.Decision{}, errors.Wrap(err, "redis ratelimit")
	}

	left := ttl.Val()
	if left < 0 {
		// first hit of the window
		if err := rl.c.PExpire(ctx, key, window).Err(); err != nil {
			return cache.Decision{}, errors.Wrap(err, "redis ratelimit expire")
		}
		left = window
	}

	n := incr.Val()
	d := cache.Decision{Allowed: n <= limit, Count: n}
	if !d.Allowed {
		d.RetryAfter = left
	}
	return d, nil
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
