// Package metric provides Prometheus metrics for mirrorsync.
//
//   - prometheus.go: registry and the /metrics handler
//   - sync.go: counters and histograms updated by the sync engine
//   - collector.go: gauges read from live mirrors at scrape time
//
// All engine-side types are nil-safe so metrics stay optional.
package metric
