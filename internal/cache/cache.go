// Package cache memoizes derived values on the local filesystem.
//
// Entries carry their own TTL. There is no locking: concurrent writers to the
// same key race and the last physical write wins. Readers may observe a value
// up to one TTL old.
package cache

import (
	"context"
	"time"

	"mfgrecords/internal/domain"
	"mfgrecords/internal/logging"
)

// Observer receives one call per lookup.
type Observer interface {
	ObserveLookup(hit bool)
}

// Config selects and configures the store.
type Config struct {
	Enabled bool
	Dir     string
}

// New returns a FileStore, or Nop when caching is switched off.
func New(cfg Config, log logging.Logger, opts ...Option) (domain.CacheStore, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewFileStore(cfg.Dir, log, opts...)
}

// Nop is the disabled cache: every lookup misses and writes are dropped.
type Nop struct{}

func (Nop) Get(context.Context, string, any) bool                 { return false }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error                  { return nil }
func (Nop) Clear(context.Context) error                           { return nil }

// Remember returns the cached value for key, or calls load and caches its
// result for ttl. Load errors are returned and nothing is cached. A failed
// cache write does not fail the call.
func Remember[T any](ctx context.Context, store domain.CacheStore, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var v T
	if store.Get(ctx, key, &v) {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = store.Set(ctx, key, v, ttl)
	return v, nil
}
