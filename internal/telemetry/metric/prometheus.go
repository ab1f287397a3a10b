// Package metric provides Prometheus metrics for abook.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "abook"

// Registry holds all application metrics.
//
// All recorder methods are safe to call on a nil *Registry, so components
// can be built without metrics in tests.
type Registry struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	LoginsTotal    *prometheus.CounterVec
	LogoutsTotal   prometheus.Counter

	// Address book cache metrics
	CacheLookups   *prometheus.CounterVec
	CacheWrites    *prometheus.CounterVec
	CacheEvictions prometheus.Counter

	// Write-back metrics
	FlushesTotal   *prometheus.CounterVec
	FlushedEntries prometheus.Counter
	FlushDuration  prometheus.Histogram

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with Go runtime and process collectors
// and all application metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions",
		}),
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
		LogoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Completed logouts",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressbook",
			Name:      "lookups_total",
			Help:      "Address book reads by outcome (hit, miss, not_found, error)",
		}, []string{"result"}),
		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressbook",
			Name:      "writes_total",
			Help:      "Address book writes by outcome (modified, unchanged, inserted)",
		}, []string{"result"}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "addressbook",
			Name:      "evictions_total",
			Help:      "Clean address books evicted after their owner logged out",
		}),
		FlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "runs_total",
			Help:      "Write-back sweeps by result (success, failure, empty)",
		}, []string{"result"}),
		FlushedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "entries_total",
			Help:      "Address books durably written by sweeps",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "duration_seconds",
			Help:      "Duration of write-back store round-trips",
			Buckets:   prometheus.DefBuckets,
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		r.SessionsActive,
		r.LoginsTotal,
		r.LogoutsTotal,
		r.CacheLookups,
		r.CacheWrites,
		r.CacheEvictions,
		r.FlushesTotal,
		r.FlushedEntries,
		r.FlushDuration,
		r.RequestsTotal,
		r.RequestDuration,
	)

	return r
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Register adds extra collectors, such as store or cache collectors.
func (r *Registry) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := r.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Prometheus exposes the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}

// RecordLogin counts a login attempt. result is success, failure or error.
func (r *Registry) RecordLogin(result string) {
	if r == nil {
		return
	}
	r.LoginsTotal.WithLabelValues(result).Inc()
	if result == "success" {
		r.SessionsActive.Inc()
	}
}

// RecordLogout counts a completed logout.
func (r *Registry) RecordLogout() {
	if r == nil {
		return
	}
	r.LogoutsTotal.Inc()
	r.SessionsActive.Dec()
}

// RecordLookup counts an address book read.
func (r *Registry) RecordLookup(result string) {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

// RecordWrite counts an address book write.
func (r *Registry) RecordWrite(result string) {
	if r == nil {
		return
	}
	r.CacheWrites.WithLabelValues(result).Inc()
}

// AddEvictions counts evicted address books.
func (r *Registry) AddEvictions(n int) {
	if r == nil || n == 0 {
		return
	}
	r.CacheEvictions.Add(float64(n))
}

// RecordFlush counts a sweep. entries is the number of rows durably written.
func (r *Registry) RecordFlush(result string, entries int, seconds float64) {
	if r == nil {
		return
	}
	r.FlushesTotal.WithLabelValues(result).Inc()
	if entries > 0 {
		r.FlushedEntries.Add(float64(entries))
	}
	if result != "empty" {
		r.FlushDuration.Observe(seconds)
	}
}

// RecordRequest counts an HTTP request and observes its latency.
func (r *Registry) RecordRequest(method, route, status string, seconds float64) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, route, status).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}
