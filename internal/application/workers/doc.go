// Package workers implements the bounded worker pool that executes pipeline steps.
//
// The worker pool manages a fixed number of goroutines that:
//   - Receive step jobs from the scheduler
//   - Run each job to completion (jobs are never interrupted)
//   - Track idle/busy/stopped status per worker
//
// The health monitor periodically logs pool status and records it as metrics.
package workers
