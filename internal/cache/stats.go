package cache

import (
	"time"

	"github.com/c2h5oh/datasize"
)

// Stats is a point-in-time view of one cache instance.
type Stats struct {
	Name         string `json:"name"`
	TotalEntries int    `json:"totalEntries"`

	// ApproxMemoryUsage is estimated from the JSON size of keys and values plus a
	// fixed per-entry overhead. It is not a measurement of heap usage.
	ApproxMemoryUsage int64  `json:"memoryUsage"`
	MemoryUsageHuman  string `json:"memoryUsageHuman"`

	HitRate      float64 `json:"hitRate"`
	TotalHits    uint64  `json:"totalHits"`
	TotalMisses  uint64  `json:"totalMisses"`
	Evictions    uint64  `json:"evictions"`
	DefaultTTLMs int64   `json:"defaultTtlMs"`
	MaxEntries   int     `json:"maxEntries"`
}

func newStats(name string, entries int, size int64, hits, misses, evictions uint64, defaultTTL time.Duration, maxEntries int) Stats {
	return Stats{
		Name:              name,
		TotalEntries:      entries,
		ApproxMemoryUsage: size,
		MemoryUsageHuman:  datasize.ByteSize(size).HumanReadable(),
		HitRate:           hitRate(hits, misses),
		TotalHits:         hits,
		TotalMisses:       misses,
		Evictions:         evictions,
		DefaultTTLMs:      defaultTTL.Milliseconds(),
		MaxEntries:        maxEntries,
	}
}

// hitRate is 0 rather than NaN before any access.
func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Sum aggregates several instance snapshots under the given name.
func Sum(name string, all []Stats) Stats {
	total := Stats{Name: name}
	for _, s := range all {
		total.TotalEntries += s.TotalEntries
		total.ApproxMemoryUsage += s.ApproxMemoryUsage
		total.TotalHits += s.TotalHits
		total.TotalMisses += s.TotalMisses
		total.Evictions += s.Evictions
		total.MaxEntries += s.MaxEntries
	}
	total.HitRate = hitRate(total.TotalHits, total.TotalMisses)
	total.MemoryUsageHuman = datasize.ByteSize(total.ApproxMemoryUsage).HumanReadable()
	return total
}
