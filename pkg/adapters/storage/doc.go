// Package storage provides run snapshot storage implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and TTL
//   - memory: In-memory, used when Redis is disabled and in tests
package storage
