package cache

import "github.com/prometheus/client_golang/prometheus"

// Collector exports registry stats to Prometheus at scrape time.
type Collector struct {
	registry *Registry

	entries   *prometheus.Desc
	memory    *prometheus.Desc
	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
}

// NewCollector creates a collector with metric names under namespace.
func NewCollector(namespace string, r *Registry) *Collector {
	labels := []string{"cache"}
	return &Collector{
		registry: r,
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries"),
			"Number of entries currently stored, fresh or stale", labels, nil),
		memory: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "approx_memory_bytes"),
			"Approximate size of stored keys and values", labels, nil),
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hits_total"),
			"Lookups answered from a fresh entry", labels, nil),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "misses_total"),
			"Lookups that found no fresh entry", labels, nil),
		evictions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "evictions_total"),
			"Entries dropped to stay within capacity", labels, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.memory
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.registry.Stats() {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.TotalEntries), s.Name)
		ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(s.ApproxMemoryUsage), s.Name)
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.TotalHits), s.Name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.TotalMisses), s.Name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), s.Name)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
