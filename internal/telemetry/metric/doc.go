// Package metric provides Prometheus metrics for abook.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry, typed recorders and HTTP handler
//   - collector.go: a collector that samples cache occupancy at scrape time
//
// Metrics include:
//
//   - Login and logout counters
//   - Address book cache hit/miss counters
//   - Write-back flush counters and latency
//   - HTTP request counters and latency histograms
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
