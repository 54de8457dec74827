package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/assetforge/pkg/ports"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned when submitting to a pool that is not accepting work
var ErrPoolClosed = errors.New("worker pool is not running")

// Job is a unit of work handed to a worker
type Job struct {
	ID  string
	Run func()
}

// Pool manages a pool of worker goroutines
type Pool struct {
	size    int
	metrics ports.MetricsCollector
	logger  *zap.Logger

	monitor *monitor

	workers []*worker
	jobs    chan Job
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// worker represents a single worker goroutine
type worker struct {
	id   string
	pool *Pool

	mu     sync.RWMutex
	status WorkerStatus
	jobID  string
	since  time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool. A size below one is treated as one.
func NewPool(
	size int,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	if size < 1 {
		size = 1
	}

	pool := &Pool{
		size:    size,
		metrics: metrics,
		logger:  logger,
		workers: make([]*worker, size),
		jobs:    make(chan Job, size),
	}

	pool.monitor = newMonitor(pool, healthCheckInterval)

	return pool
}

// Size returns the number of workers, which is also the maximum number of
// jobs in flight
func (p *Pool) Size() int {
	return p.size
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("worker pool already started")
	}
	if p.workers[0] != nil {
		return fmt.Errorf("worker pool cannot be restarted")
	}

	p.logger.Debug("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:     fmt.Sprintf("worker-%d", i),
			pool:   p,
			status: WorkerStatusIdle,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run()
	}
	p.running = true

	p.monitor.start()

	return nil
}

// Submit hands a job to the pool. It blocks while every worker is busy and
// the queue is full; callers that bound in-flight jobs by Size never block.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrPoolClosed
	}
	p.jobs <- job
	return nil
}

// Shutdown stops accepting jobs and waits for queued and running jobs to finish
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.monitor.stop()
		p.logger.Debug("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		p.monitor.stop()
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

// Report returns what every worker is doing, in worker order
func (p *Pool) Report() PoolReport {
	now := time.Now()
	report := PoolReport{At: now}
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		activity := w.activity(now)
		switch activity.Status {
		case WorkerStatusIdle:
			report.Idle++
		case WorkerStatusBusy:
			report.Busy++
		case WorkerStatusStopped:
			report.Stopped++
		}
		report.Workers = append(report.Workers, activity)
	}
	return report
}

// run is the main worker loop
func (w *worker) run() {
	defer w.pool.wg.Done()

	for job := range w.pool.jobs {
		w.handle(job)
	}

	w.setStatus(WorkerStatusStopped)
	w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
}

// handle runs a single job and keeps the worker activity current
func (w *worker) handle(job Job) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.jobID = job.ID
	w.since = time.Now()
	w.mu.Unlock()

	defer w.setStatus(WorkerStatusIdle)

	w.pool.logger.Debug("worker picked up job",
		zap.String("worker_id", w.id),
		zap.String("job_id", job.ID))

	job.Run()
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.jobID = ""
	w.since = time.Time{}
	w.mu.Unlock()
}

func (w *worker) activity(now time.Time) WorkerActivity {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := WorkerActivity{Worker: w.id, Status: w.status, Job: w.jobID}
	if w.status == WorkerStatusBusy {
		out.Elapsed = now.Sub(w.since)
	}
	return out
}
