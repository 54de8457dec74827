// Package noop provides a MetricsCollector that discards everything.
package noop

import "time"

// Collector discards all metrics
type Collector struct{}

// NewCollector creates a no-op collector
func NewCollector() *Collector { return &Collector{} }

func (Collector) RecordStepTransition(step string, status string) {}
func (Collector) RecordStepRetry(step string) {}
func (Collector) ObserveStepDuration(step string, status string, duration time.Duration) {}
func (Collector) RecordRunFinished(status string, success bool, duration time.Duration) {}
func (Collector) SetActiveRuns(count int) {}
func (Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {}
