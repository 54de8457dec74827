// Package orchestrator runs named steps in dependency order.
//
// A Pipeline owns a Registry of immutable step definitions and a StateStore
// holding each step's mutable progress. ExecuteAll validates the graph
// (unknown dependencies, cycles), then a Scheduler dispatches ready steps in
// declaration order onto a worker pool. Each step runs through a
// RetryController that applies the step's retry budget. A failed step skips
// its transitive dependents; Cancel stops dispatch at the next decision point.
//
// Every state transition is published to the event bus, recorded in metrics
// and mirrored to state storage.
package orchestrator
