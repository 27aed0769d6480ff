// Package metric provides the Prometheus metrics of kraken.
//
//   - prometheus.go: the registry, its instruments and the /metrics handler
//   - collector.go: a collector reading the published snapshot on scrape
//
// Every instrument is owned by a Registry value; nothing registers with the
// Prometheus default registry, so tests can build as many as they need.
package metric
