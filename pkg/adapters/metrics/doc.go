// Package metrics provides MetricsCollector implementations.
//
// Implementations:
//   - prometheus: counters, gauges and histograms on an injected registerer
//   - noop: discards everything, used when metrics are not exported
package metrics
