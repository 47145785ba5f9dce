package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Instance names of the default policies.
const (
	ShortName = "short"
	LongName  = "long"
	APIName   = "api"
)

// Policy describes one named instance: how long its callers usually keep data and how many
// entries it may hold.
type Policy struct {
	Name       string
	DefaultTTL time.Duration
	MaxEntries int
}

// DefaultPolicies returns the short, long and general API policies.
func DefaultPolicies() []Policy {
	return []Policy{
		{Name: ShortName, DefaultTTL: 30 * time.Second, MaxEntries: 1000},
		{Name: LongName, DefaultTTL: 10 * time.Minute, MaxEntries: 1000},
		{Name: APIName, DefaultTTL: 5 * time.Minute, MaxEntries: 5000},
	}
}

// Registry owns the independent cache instances of a process. Operations that span
// instances validate their input once, before touching any of them.
type Registry struct {
	names  []string
	caches map[string]Cache
	log    zerolog.Logger
}

// NewRegistry groups caches under their names, keeping the given order.
func NewRegistry(log zerolog.Logger, caches ...Cache) (*Registry, error) {
	r := &Registry{
		caches: make(map[string]Cache, len(caches)),
		log:    log,
	}
	for _, c := range caches {
		if _, dup := r.caches[c.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, c.Name())
		}
		r.caches[c.Name()] = c
		r.names = append(r.names, c.Name())
	}
	return r, nil
}

// NewPolicyRegistry builds one TTLCache per policy. opts apply to every instance.
func NewPolicyRegistry(log zerolog.Logger, policies []Policy, opts ...Option) (*Registry, error) {
	caches := make([]Cache, 0, len(policies))
	for _, p := range policies {
		instanceOpts := append([]Option{
			WithDefaultTTL(p.DefaultTTL),
			WithMaxEntries(p.MaxEntries),
			WithLogger(log),
		}, opts...)
		caches = append(caches, New(p.Name, instanceOpts...))
	}
	return NewRegistry(log, caches...)
}

// Get returns the instance with the given name.
func (r *Registry) Get(name string) (Cache, error) {
	c, ok := r.caches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstance, name)
	}
	return c, nil
}

// MustGet is Get for names fixed at startup.
func (r *Registry) MustGet(name string) Cache {
	c, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return c
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// ClearAll drops every entry of every instance.
func (r *Registry) ClearAll() {
	for _, name := range r.names {
		n := r.caches[name].Clear()
		r.log.Info().Str("cache", name).Int("dropped", n).Msg("cache cleared")
	}
}

func (r *Registry) InvalidatePattern(pattern string) (map[string]int, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}
	return r.each(func(c Cache) (int, error) { return c.InvalidatePattern(pattern) })
}

func (r *Registry) InvalidateTimeRange(tag string) (map[string]int, error) {
	if _, err := ParseTimeRange(tag); err != nil {
		return nil, err
	}
	return r.each(func(c Cache) (int, error) { return c.InvalidateTimeRange(tag) })
}

func (r *Registry) InvalidateCoin(coinID string) (map[string]int, error) {
	if strings.TrimSpace(coinID) == "" {
		return nil, ErrEmptyCoinID
	}
	return r.each(func(c Cache) (int, error) { return c.InvalidateCoin(coinID) })
}

// Cleanup removes expired entries from every instance.
func (r *Registry) Cleanup() map[string]int {
	removed := make(map[string]int, len(r.names))
	for _, name := range r.names {
		removed[name] = r.caches[name].Cleanup()
	}
	return removed
}

// Stats returns one snapshot per instance in registry order.
func (r *Registry) Stats() []Stats {
	all := make([]Stats, 0, len(r.names))
	for _, name := range r.names {
		all = append(all, r.caches[name].Stats())
	}
	return all
}

// Keys returns the keys containing pattern per instance.
func (r *Registry) Keys(pattern string) map[string][]string {
	keys := make(map[string][]string, len(r.names))
	for _, name := range r.names {
		keys[name] = r.caches[name].Keys(pattern)
	}
	return keys
}

// RunJanitor calls Cleanup every interval until ctx is done. onSweep, if set, receives
// the per-instance counts of each sweep.
func (r *Registry) RunJanitor(ctx context.Context, clk clock.Clock, interval time.Duration, onSweep func(map[string]int)) {
	if interval <= 0 {
		return
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := r.Cleanup()
			if total := Total(removed); total > 0 {
				r.log.Debug().Int("removed", total).Msg("janitor swept expired entries")
			}
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

func (r *Registry) each(fn func(Cache) (int, error)) (map[string]int, error) {
	removed := make(map[string]int, len(r.names))
	for _, name := range r.names {
		n, err := fn(r.caches[name])
		if err != nil {
			return removed, err
		}
		removed[name] = n
	}
	return removed, nil
}

// Total sums per-instance counts.
func Total(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
