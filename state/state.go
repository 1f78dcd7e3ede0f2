// Package state provides the namespaced, TTL'd key-value store that every
// Baton subsystem persists through: workflow sessions, tracked resources,
// per-user context, memoized action results, learned patterns, and the
// audit trail.
//
// The package splits persistence into two layers. Backend is the small
// interface a storage driver implements (in-memory, Redis, Postgres).
// Store wraps one Backend with the key layout, JSON serialization, and a
// deliberate degrade-to-noop contract: Store operations never return
// errors — a failing or absent backend turns writes into no-ops and reads
// into misses, so orchestration keeps working with persistence disabled.
package state

import (
	"context"
	"time"
)

// Backend is the minimal storage driver interface. Implementations live in
// the state/memory, state/redis, and state/postgres subpackages.
//
// Get returns baton.ErrKeyNotFound for missing or expired keys.
// Delete is idempotent: deleting an absent key is not an error.
// A ttl of zero or less means the entry does not expire.
type Backend interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
