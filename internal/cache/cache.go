package cache

import (
	"context"
	"time"
)

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ClaimStore is a BytesCache that can also claim a key exactly once.
type ClaimStore interface {
	BytesCache
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Decision is the outcome of one request counted by a rate limiter.
type Decision struct {
	Allowed bool
	Count   int64
	// RetryAfter is how long until the window resets. Zero when allowed.
	RetryAfter time.Duration
}
