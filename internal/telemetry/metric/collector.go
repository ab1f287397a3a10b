// Package metric provides Prometheus metrics for abook.
package metric

import "github.com/prometheus/client_golang/prometheus"

// CacheStats is a point-in-time view of cache occupancy.
type CacheStats struct {
	Tokens       int
	Sessions     int
	Users        int
	AddressBooks int
	Dirty        int
}

// StatsFunc samples cache occupancy.
type StatsFunc func() CacheStats

// Collector reports cache occupancy at scrape time.
type Collector struct {
	stats StatsFunc

	tokens   *prometheus.Desc
	sessions *prometheus.Desc
	users    *prometheus.Desc
	books    *prometheus.Desc
	dirty    *prometheus.Desc
}

// NewCollector creates a collector backed by stats.
func NewCollector(stats StatsFunc) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, nil, nil)
	}
	return &Collector{
		stats:    stats,
		tokens:   desc("tokens", "Live access tokens"),
		sessions: desc("sessions", "Live session records"),
		users:    desc("users", "Users with at least one live session"),
		books:    desc("address_books", "Cached address books"),
		dirty:    desc("address_books_dirty", "Cached address books awaiting a flush"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tokens
	ch <- c.sessions
	ch <- c.users
	ch <- c.books
	ch <- c.dirty
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.stats == nil {
		return
	}
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.tokens, prometheus.GaugeValue, float64(s.Tokens))
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(s.Sessions))
	ch <- prometheus.MustNewConstMetric(c.users, prometheus.GaugeValue, float64(s.Users))
	ch <- prometheus.MustNewConstMetric(c.books, prometheus.GaugeValue, float64(s.AddressBooks))
	ch <- prometheus.MustNewConstMetric(c.dirty, prometheus.GaugeValue, float64(s.Dirty))
}
