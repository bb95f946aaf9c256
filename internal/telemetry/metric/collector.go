package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MirrorStats is the scrape-time view of one mirror.
type MirrorStats struct {
	Keys    int
	Pending bool
}

// Collector reports gauges for registered mirrors at scrape time.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]func() MirrorStats

	keysDesc    *prometheus.Desc
	pendingDesc *prometheus.Desc
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		sources: make(map[string]func() MirrorStats),
		keysDesc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "mirror", "keys"),
			"Non-control keys held by the mirror.",
			[]string{"provider"}, nil),
		pendingDesc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "mirror", "writeback_pending"),
			"1 while a debounced writeback is armed.",
			[]string{"provider"}, nil),
	}
}

// Track adds or replaces the stats source for a provider.
func (c *Collector) Track(provider string, stats func() MirrorStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[provider] = stats
}

// Untrack removes a provider.
func (c *Collector) Untrack(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, provider)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keysDesc
	ch <- c.pendingDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for provider, stats := range c.sources {
		s := stats()
		pending := 0.0
		if s.Pending {
			pending = 1
		}
		ch <- prometheus.MustNewConstMetric(c.keysDesc, prometheus.GaugeValue, float64(s.Keys), provider)
		ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, pending, provider)
	}
}
