package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	stepTransitions *prometheus.CounterVec
	stepRetries     *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec

	runsFinished *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	activeRuns   prometheus.Gauge

	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

// NewCollector creates a Prometheus metrics collector registered on reg.
// Pass prometheus.DefaultRegisterer to expose metrics on the default handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		stepTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetforge_step_transitions_total",
				Help: "Total number of step status transitions",
			},
			[]string{"step", "status"},
		),
		stepRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetforge_step_retries_total",
				Help: "Total number of step retries",
			},
			[]string{"step"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assetforge_step_duration_seconds",
				Help:    "Step execution duration in seconds, retries included",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"step", "status"},
		),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetforge_runs_finished_total",
				Help: "Total number of pipeline runs by final status",
			},
			[]string{"status", "success"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assetforge_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"status"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetforge_active_runs",
				Help: "Number of pipeline runs in progress",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetforge_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetforge_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetforge_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordStepTransition counts a step entering a status
func (c *Collector) RecordStepTransition(step string, status string) {
	c.stepTransitions.WithLabelValues(step, status).Inc()
}

// RecordStepRetry counts a retry of a step
func (c *Collector) RecordStepRetry(step string) {
	c.stepRetries.WithLabelValues(step).Inc()
}

// ObserveStepDuration records how long a step ran before reaching a terminal status
func (c *Collector) ObserveStepDuration(step string, status string, duration time.Duration) {
	c.stepDuration.WithLabelValues(step, status).Observe(duration.Seconds())
}

// RecordRunFinished records the outcome of a pipeline run
func (c *Collector) RecordRunFinished(status string, success bool, duration time.Duration) {
	c.runsFinished.WithLabelValues(status, strconv.FormatBool(success)).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetActiveRuns sets the number of runs in progress
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
