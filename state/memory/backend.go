// Package memory implements state.Backend in process memory. It is the
// default backend for tests and single-process deployments: entries honor
// their TTL on read and a background janitor sweeps expired entries on a
// configurable interval.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/state"
)

// Compile-time interface check.
var _ state.Backend = (*Backend)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Backend is an in-memory state.Backend. A single mutex guards the map;
// reads take it too because expired entries are deleted in place.
type Backend struct {
	mu      sync.Mutex
	entries map[string]entry

	sweepInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// Option configures the Backend.
type Option func(*Backend)

// WithSweepInterval sets how often the janitor purges expired entries.
// A non-positive interval disables the janitor; expired entries are then
// only removed when read.
func WithSweepInterval(d time.Duration) Option {
	return func(b *Backend) { b.sweepInterval = d }
}

// New creates an in-memory backend and starts its janitor goroutine.
// Call Close to stop the janitor.
func New(opts ...Option) *Backend {
	b := &Backend{
		entries:       make(map[string]entry),
		sweepInterval: 1 * time.Hour,
		stopCh:        make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}

	if b.sweepInterval > 0 {
		go b.janitor()
	}

	return b
}

// Set stores a copy of value under key.
func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	e := entry{value: cp}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	b.mu.Lock()
	b.entries[key] = e
	b.mu.Unlock()

	return nil
}

// Get returns a copy of the value under key. Expired entries are deleted
// in place and reported as missing.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return nil, baton.ErrKeyNotFound
	}
	if e.expired(time.Now()) {
		delete(b.entries, key)
		return nil, baton.ErrKeyNotFound
	}

	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, nil
}

// Delete removes the entry under key. Deleting an absent key is not an error.
func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
	return nil
}

// Keys returns all live keys with the given prefix in sorted order.
func (b *Backend) Keys(_ context.Context, prefix string) ([]string, error) {
	now := time.Now()

	b.mu.Lock()
	keys := make([]string, 0)
	for k, e := range b.entries {
		if strings.HasPrefix(k, prefix) && !e.expired(now) {
			keys = append(keys, k)
		}
	}
	b.mu.Unlock()

	sort.Strings(keys)
	return keys, nil
}

// Ping always succeeds.
func (b *Backend) Ping(_ context.Context) error { return nil }

// Close stops the janitor goroutine. Safe to call more than once.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopCh) })
	return nil
}

// Len reports the number of stored entries, including not-yet-swept
// expired ones.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Backend) janitor() {
	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.sweep()
		case <-b.stopCh:
			return
		}
	}
}

func (b *Backend) sweep() {
	now := time.Now()

	b.mu.Lock()
	for k, e := range b.entries {
		if e.expired(now) {
			delete(b.entries, k)
		}
	}
	b.mu.Unlock()
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
