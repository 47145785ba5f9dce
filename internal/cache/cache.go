package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyKey         = errors.New("cache: key is required")
	ErrNegativeTTL      = errors.New("cache: ttl must not be negative")
	ErrEmptyPattern     = errors.New("cache: pattern is required")
	ErrEmptyCoinID      = errors.New("cache: coin id is required")
	ErrUnknownTimeRange = errors.New("cache: unknown time range")
	ErrUnknownInstance  = errors.New("cache: unknown cache instance")
	ErrDuplicateName    = errors.New("cache: duplicate cache instance name")
	ErrUnexpectedType   = errors.New("cache: stored value has an unexpected type")
)

// Loader produces the value for a key on a miss. Its error is returned to the
// caller of Cached as-is and nothing is stored.
type Loader func(ctx context.Context) (any, error)

// Cache defines a keyed TTL store with get-or-compute and scoped invalidation.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Name identifies the instance in stats and management output.
	Name() string

	// DefaultTTL is the TTL callers should use when they have no opinion.
	DefaultTTL() time.Duration

	// Get returns the value and whether it was present and fresh.
	Get(key string) (any, bool)

	// Set stores the value with the given TTL. A TTL of 0 stores an entry that is never fresh.
	Set(key string, value any, ttl time.Duration) error

	// Delete removes a key if present and reports whether it was.
	Delete(key string) bool

	// Cached returns the fresh value for key or runs loader and stores its result.
	Cached(ctx context.Context, key string, ttl time.Duration, loader Loader) (any, error)

	// InvalidatePattern removes every key containing pattern.
	InvalidatePattern(pattern string) (int, error)

	// InvalidateTimeRange removes every key carrying the time range tag as a segment.
	InvalidateTimeRange(tag string) (int, error)

	// InvalidateCoin removes every key carrying the coin id as a segment.
	InvalidateCoin(coinID string) (int, error)

	// Clear removes all entries and returns how many there were.
	Clear() int

	// Cleanup scans and removes expired entries.
	Cleanup() int

	// Keys returns the sorted keys containing pattern, or all keys when pattern is empty.
	Keys(pattern string) []string

	// Stats returns a snapshot of the instance counters.
	Stats() Stats
}

// Cached is the typed form of Cache.Cached. A stored value of another type is
// dropped and reloaded through c.Cached.
func Cached[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	loader := func(ctx context.Context) (any, error) {
		return load(ctx)
	}

	v, err := c.Cached(ctx, key, ttl, loader)
	if err != nil {
		return zero, err
	}
	if t, ok := v.(T); ok {
		return t, nil
	}

	c.Delete(key)
	if v, err = c.Cached(ctx, key, ttl, loader); err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrUnexpectedType, key, v)
	}
	return t, nil
}
