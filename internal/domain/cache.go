package domain

import (
	"context"
	"time"
)

// CacheStore memoizes derived values for a limited time. Get decodes the
// cached value into dst and reports whether a valid entry was found. On a
// miss dst is left unchanged.
type CacheStore interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
