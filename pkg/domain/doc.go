// Package domain defines the core types shared by the step orchestrator,
// its adapters, and its APIs.
//
// Step definitions are immutable once registered. Step states are the mutable
// per-run records derived from them. Events describe every state transition
// and are published to the event bus.
package domain
