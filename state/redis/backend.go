// Package redis implements state.Backend on Redis. Values are plain
// strings with native Redis TTLs; prefix listing uses SCAN so large
// keyspaces never block the server.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	b := redisstate.New(client)
//	store := state.New(b)
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/state"
)

// Compile-time interface check.
var _ state.Backend = (*Backend)(nil)

// Backend is a Redis-backed state.Backend.
type Backend struct {
	client goredis.Cmdable
	prefix string
}

// Option configures the Backend.
type Option func(*Backend)

// WithKeyPrefix namespaces every key under the given prefix (for example
// "baton:") when the Redis database is shared with other applications.
// The store's own key layout is unaffected: keys returned by Keys have
// the prefix stripped.
func WithKeyPrefix(prefix string) Option {
	return func(b *Backend) { b.prefix = prefix }
}

// New creates a Redis-backed state backend. The caller owns the Redis
// client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Backend {
	b := &Backend{client: client}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Client returns the underlying Redis client.
func (b *Backend) Client() goredis.Cmdable { return b.client }

// Set stores value under key. A non-positive ttl stores without expiry.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := b.client.Set(ctx, b.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("baton/redis: set: %w", err)
	}
	return nil
}

// Get returns the value under key, or baton.ErrKeyNotFound.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, baton.ErrKeyNotFound
		}
		return nil, fmt.Errorf("baton/redis: get: %w", err)
	}
	return data, nil
}

// Delete removes the value under key. Deleting an absent key is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("baton/redis: delete: %w", err)
	}
	return nil
}

// Keys lists all keys with the given prefix using cursor-based SCAN.
func (b *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeMatch(b.prefix+prefix) + "*"

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := b.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("baton/redis: scan: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, b.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Ping verifies the Redis connection is alive.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (b *Backend) Close() error { return nil }

// escapeMatch escapes glob metacharacters so prefixes containing them
// (typeid suffixes never do, but resource types may) match literally.
func escapeMatch(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"*", `\*`,
		"?", `\?`,
		"[", `\[`,
		"]", `\]`,
	)
	return r.Replace(s)
}
