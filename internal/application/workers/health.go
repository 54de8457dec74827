package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// WorkerActivity is what one worker was doing when a report was taken
type WorkerActivity struct {
	Worker  string        `json:"worker"`
	Status  WorkerStatus  `json:"status"`
	Job     string        `json:"job,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// PoolReport is a point-in-time view of the pool
type PoolReport struct {
	Workers []WorkerActivity `json:"workers"`
	Idle    int              `json:"idle"`
	Busy    int              `json:"busy"`
	Stopped int              `json:"stopped"`
	At      time.Time        `json:"at"`
}

// Healthy reports whether the pool has workers and none has stopped
func (r PoolReport) Healthy() bool {
	return len(r.Workers) > 0 && r.Stopped == 0
}

// Running returns the jobs in flight, in worker order
func (r PoolReport) Running() []string {
	var jobs []string
	for _, w := range r.Workers {
		if w.Status == WorkerStatusBusy {
			jobs = append(jobs, w.Job)
		}
	}
	return jobs
}

// Longest returns the busy worker that has been on its job the longest
func (r PoolReport) Longest() (WorkerActivity, bool) {
	var out WorkerActivity
	found := false
	for _, w := range r.Workers {
		if w.Status != WorkerStatusBusy {
			continue
		}
		if !found || w.Elapsed > out.Elapsed {
			out = w
			found = true
		}
	}
	return out, found
}

// monitor samples pool activity on an interval while the pool runs and
// publishes it to the logs and the metrics collector
type monitor struct {
	pool     *Pool
	interval time.Duration

	once sync.Once
	quit chan struct{}
	done chan struct{}
}

func newMonitor(pool *Pool, interval time.Duration) *monitor {
	return &monitor{
		pool:     pool,
		interval: interval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// start begins sampling. A non-positive interval only reports on stop.
func (m *monitor) start() {
	if m.interval <= 0 {
		close(m.done)
		return
	}
	go m.loop()
}

// stop ends sampling and publishes one final report
func (m *monitor) stop() {
	m.once.Do(func() { close(m.quit) })
	<-m.done
	m.publish()
}

func (m *monitor) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.publish()
		}
	}
}

func (m *monitor) publish() PoolReport {
	report := m.pool.Report()
	logger := m.pool.logger

	fields := []zap.Field{
		zap.Int("idle", report.Idle),
		zap.Int("busy", report.Busy),
		zap.Int("stopped", report.Stopped),
		zap.Strings("running", report.Running()),
	}
	if longest, ok := report.Longest(); ok {
		fields = append(fields,
			zap.String("longest_job", longest.Job),
			zap.Duration("longest_elapsed", longest.Elapsed))
	}
	logger.Debug("worker pool activity", fields...)

	if m.pool.metrics != nil {
		m.pool.metrics.RecordWorkerPoolStatus(report.Idle, report.Busy, report.Stopped)
	}

	// Stopped workers are only expected once the pool is shutting down.
	if report.Stopped > 0 && report.Stopped < len(report.Workers) {
		logger.Warn("worker pool lost workers",
			zap.Int("stopped", report.Stopped),
			zap.Int("total", len(report.Workers)))
	}
	return report
}
