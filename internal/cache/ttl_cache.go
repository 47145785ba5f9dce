package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// entryOverhead approximates the bookkeeping bytes of one entry on top of its key and value.
const entryOverhead = 64

// entry stores a cached value with the time it was written and the TTL it was written with.
type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
	size      int64
}

func (e entry) freshFor(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.createdAt) < ttl
}

func (e entry) fresh(now time.Time) bool {
	return e.freshFor(now, e.ttl)
}

// TTLCache is a map-backed cache instance with per-entry TTL and its own hit/miss counters.
// There is no per-entry timer; stale entries are skipped on read and dropped by Cleanup.
type TTLCache struct {
	name         string
	defaultTTL   time.Duration
	maxEntries   int
	singleFlight bool
	clock        clock.Clock
	log          zerolog.Logger

	mu    sync.RWMutex
	items map[string]entry

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	flights singleflight.Group
}

// New constructs a named cache instance.
func New(name string, opts ...Option) *TTLCache {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &TTLCache{
		name:         name,
		defaultTTL:   cfg.defaultTTL,
		maxEntries:   cfg.maxEntries,
		singleFlight: cfg.singleFlight,
		clock:        cfg.clock,
		log:          cfg.logger.With().Str("cache", name).Logger(),
		items:        make(map[string]entry),
	}
}

func (c *TTLCache) Name() string { return c.name }

func (c *TTLCache) DefaultTTL() time.Duration { return c.defaultTTL }

// Get implements Cache.Get. Freshness is judged against the TTL the entry was stored with.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !e.fresh(c.clock.Now()) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set implements Cache.Set.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) error {
	if err := validate(key, ttl); err != nil {
		return err
	}
	c.store(key, value, ttl)
	return nil
}

// Delete implements Cache.Delete.
func (c *TTLCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	delete(c.items, key)
	return ok
}

// Cached implements Cache.Cached. The entry is fresh when it is younger than the
// ttl passed here, so a ttl of 0 always runs the loader.
func (c *TTLCache) Cached(ctx context.Context, key string, ttl time.Duration, loader Loader) (any, error) {
	if err := validate(key, ttl); err != nil {
		return nil, err
	}

	if v, ok := c.lookup(key, ttl); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	if !c.singleFlight {
		return c.load(ctx, key, ttl, loader)
	}

	// The shared load outlives any one caller; each caller stops waiting when its own ctx ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		// another flight may have stored the value between our lookup and now
		if v, ok := c.lookup(key, ttl); ok {
			return v, nil
		}
		return c.load(flightCtx, key, ttl, loader)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.log.Trace().Str("key", key).Msg("joined in-flight load")
		}
		return res.Val, res.Err
	}
}

func (c *TTLCache) lookup(key string, ttl time.Duration) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !e.freshFor(c.clock.Now(), ttl) {
		return nil, false
	}
	return e.value, true
}

func (c *TTLCache) load(ctx context.Context, key string, ttl time.Duration, loader Loader) (any, error) {
	start := c.clock.Now()
	v, err := loader(ctx)
	if err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("loader failed, nothing stored")
		return nil, err
	}
	c.store(key, v, ttl)
	c.log.Trace().Str("key", key).Dur("took", c.clock.Since(start)).Msg("loaded")
	return v, nil
}

func (c *TTLCache) store(key string, value any, ttl time.Duration) {
	now := c.clock.Now()
	e := entry{
		value:     value,
		createdAt: now,
		ttl:       ttl,
		size:      approxSize(key, value),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.makeRoomLocked(now)
	}
	c.items[key] = e
}

// makeRoomLocked drops stale entries and, if the instance is still full, the oldest one.
func (c *TTLCache) makeRoomLocked(now time.Time) {
	for k, e := range c.items {
		if !e.fresh(now) {
			delete(c.items, k)
		}
	}
	if len(c.items) < c.maxEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for k, e := range c.items {
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey, oldest = k, e.createdAt
		}
	}
	delete(c.items, oldestKey)
	c.evictions.Add(1)
	c.log.Debug().Str("key", oldestKey).Msg("evicted oldest entry at capacity")
}

// InvalidatePattern implements Cache.InvalidatePattern.
func (c *TTLCache) InvalidatePattern(pattern string) (int, error) {
	if pattern == "" {
		return 0, ErrEmptyPattern
	}
	return c.removeMatching(func(key string) bool {
		return strings.Contains(key, pattern)
	}), nil
}

// InvalidateTimeRange implements Cache.InvalidateTimeRange.
func (c *TTLCache) InvalidateTimeRange(tag string) (int, error) {
	tr, err := ParseTimeRange(tag)
	if err != nil {
		return 0, err
	}
	return c.removeMatching(func(key string) bool {
		return hasSegment(key, string(tr), false)
	}), nil
}

// InvalidateCoin implements Cache.InvalidateCoin.
func (c *TTLCache) InvalidateCoin(coinID string) (int, error) {
	coinID = strings.TrimSpace(coinID)
	if coinID == "" {
		return 0, ErrEmptyCoinID
	}
	return c.removeMatching(func(key string) bool {
		return hasSegment(key, coinID, true)
	}), nil
}

func (c *TTLCache) removeMatching(match func(string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.items {
		if match(k) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Clear implements Cache.Clear. Counters are kept.
func (c *TTLCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]entry)
	return n
}

// Cleanup implements Cache.Cleanup.
func (c *TTLCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return 0
	}
	now := c.clock.Now()
	removed := 0
	for k, e := range c.items {
		if !e.fresh(now) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Keys implements Cache.Keys.
func (c *TTLCache) Keys(pattern string) []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		if pattern == "" || strings.Contains(k, pattern) {
			keys = append(keys, k)
		}
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Stats implements Cache.Stats.
func (c *TTLCache) Stats() Stats {
	c.mu.RLock()
	var size int64
	for _, e := range c.items {
		size += e.size
	}
	n := len(c.items)
	c.mu.RUnlock()

	return newStats(c.name, n, size, c.hits.Load(), c.misses.Load(), c.evictions.Load(), c.defaultTTL, c.maxEntries)
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl < 0 {
		return ErrNegativeTTL
	}
	return nil
}

// approxSize estimates the footprint of an entry from its JSON encoding.
func approxSize(key string, value any) int64 {
	n := len(key) + entryOverhead
	if b, err := json.Marshal(value); err == nil {
		n += len(b)
	} else {
		n += len(fmt.Sprint(value))
	}
	return int64(n)
}

// hasSegment reports whether one of the ':'-separated parts of key equals seg.
func hasSegment(key, seg string, foldCase bool) bool {
	for _, part := range strings.Split(key, ":") {
		if part == seg || (foldCase && strings.EqualFold(part, seg)) {
			return true
		}
	}
	return false
}

// Ensure TTLCache implements Cache at compile time.
var _ Cache = (*TTLCache)(nil)
