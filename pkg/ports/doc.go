// Package ports defines the interfaces the orchestrator uses to reach its
// collaborators: run snapshot storage, the event bus, and metrics.
package ports
