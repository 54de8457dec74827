// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Current run status, steps and summary
//   - Run cancellation
//   - Mirrored run snapshots
//   - Health checks
//   - Prometheus metrics
package http
