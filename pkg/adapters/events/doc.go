// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: In-process fan-out with ordered per-subscriber delivery
package events
