package state

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/batonhq/baton"
)

// TTLs bundles the retention window for each namespace the Store manages.
type TTLs struct {
	// Session applies to in-flight run sessions; every persist refreshes it.
	Session time.Duration

	// RetainedSession applies once a run reaches a terminal state.
	RetainedSession time.Duration

	// Resource applies to tracked resource references.
	Resource time.Duration

	// UserContext applies to per-user working context.
	UserContext time.Duration

	// Cache applies to memoized action results unless the caller
	// passes an explicit TTL.
	Cache time.Duration
}

// DefaultTTLs returns the standard retention windows.
func DefaultTTLs() TTLs {
	return TTLs{
		Session:         1 * time.Hour,
		RetainedSession: 24 * time.Hour,
		Resource:        24 * time.Hour,
		UserContext:     2 * time.Hour,
		Cache:           1 * time.Hour,
	}
}

// Store wraps a Backend with the Baton key layout and JSON serialization.
//
// Store operations deliberately return bool instead of error: false means
// miss, decode failure, or backend unavailable. A nil backend is legal and
// turns every operation into a no-op, so the orchestrator keeps running
// with persistence disabled rather than failing workflows over storage.
type Store struct {
	backend Backend
	logger  *slog.Logger
	ttls    TTLs

	degraded atomic.Bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger used for swallowed failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTTLs overrides the per-namespace retention windows.
func WithTTLs(t TTLs) Option {
	return func(s *Store) { s.ttls = t }
}

// New creates a Store over the given backend. A nil backend is allowed;
// the store then degrades every operation to a no-op.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  slog.Default(),
		ttls:    DefaultTTLs(),
	}
	for _, o := range opts {
		o(s)
	}
	if backend == nil {
		s.degraded.Store(true)
	}
	return s
}

// Backend returns the underlying backend, or nil when running degraded.
func (s *Store) Backend() Backend { return s.backend }

// Degraded reports whether the last backend operation failed or no
// backend is configured.
func (s *Store) Degraded() bool { return s.degraded.Load() }

// Close releases the backend. Safe to call with no backend configured.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// ──────────────────────────────────────────────────
// Generic operations
// ──────────────────────────────────────────────────

// Set serializes value as JSON and writes it under key with the given TTL.
// Returns false (and logs at Warn) when the value cannot be serialized or
// the backend is down; it never returns an error.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if s.backend == nil {
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("state: marshal failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}

	if err := s.backend.Set(ctx, key, data, ttl); err != nil {
		s.fail("set", key, err)
		return false
	}

	s.degraded.Store(false)
	return true
}

// Get reads the value under key into dest. Returns false on miss, decode
// failure, or backend failure.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	if s.backend == nil {
		return false
	}

	data, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, baton.ErrKeyNotFound) {
			s.fail("get", key, err)
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.Warn("state: decode failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}

	s.degraded.Store(false)
	return true
}

// Delete removes the value under key. Returns false only on backend
// failure; deleting an absent key succeeds.
func (s *Store) Delete(ctx context.Context, key string) bool {
	if s.backend == nil {
		return false
	}

	if err := s.backend.Delete(ctx, key); err != nil {
		s.fail("delete", key, err)
		return false
	}

	s.degraded.Store(false)
	return true
}

// Keys lists all keys under the given prefix. Returns nil when the
// backend is down.
func (s *Store) Keys(ctx context.Context, prefix string) []string {
	if s.backend == nil {
		return nil
	}

	keys, err := s.backend.Keys(ctx, prefix)
	if err != nil {
		s.fail("keys", prefix, err)
		return nil
	}

	s.degraded.Store(false)
	return keys
}

func (s *Store) fail(op, key string, err error) {
	s.degraded.Store(true)
	s.logger.Warn("state: backend "+op+" failed",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

// ──────────────────────────────────────────────────
// Workflow sessions
// ──────────────────────────────────────────────────

// SaveSession persists an in-flight run snapshot under workflow:{run_id},
// refreshing the session TTL.
func (s *Store) SaveSession(ctx context.Context, runID string, session any) bool {
	return s.Set(ctx, SessionKey(runID), session, s.ttls.Session)
}

// RetainSession persists a terminal run snapshot under the longer
// retained-session TTL.
func (s *Store) RetainSession(ctx context.Context, runID string, session any) bool {
	return s.Set(ctx, SessionKey(runID), session, s.ttls.RetainedSession)
}

// LoadSession reads a run snapshot into dest.
func (s *Store) LoadSession(ctx context.Context, runID string, dest any) bool {
	return s.Get(ctx, SessionKey(runID), dest)
}

// DeleteSession removes a run snapshot.
func (s *Store) DeleteSession(ctx context.Context, runID string) bool {
	return s.Delete(ctx, SessionKey(runID))
}

// SessionIDs lists the run IDs with a stored session.
func (s *Store) SessionIDs(ctx context.Context) []string {
	keys := s.Keys(ctx, sessionPrefix)
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, sessionPrefix))
	}
	return ids
}

// ──────────────────────────────────────────────────
// Tracked resources
// ──────────────────────────────────────────────────

// Resource is a reference to an artifact produced by an integration —
// an uploaded file, a created contact, a sent campaign — tracked so later
// workflow steps and users can find it again.
type Resource struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SaveResource persists a resource reference under resource:{type}:{id}.
// A zero CreatedAt is stamped with the current time.
func (s *Store) SaveResource(ctx context.Context, r *Resource) bool {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return s.Set(ctx, ResourceKey(r.Type, r.ID), r, s.ttls.Resource)
}

// LoadResource reads a single resource reference.
func (s *Store) LoadResource(ctx context.Context, resourceType, resourceID string) (*Resource, bool) {
	var r Resource
	if !s.Get(ctx, ResourceKey(resourceType, resourceID), &r) {
		return nil, false
	}
	return &r, true
}

// ResourcesByType lists all tracked resources of one type.
func (s *Store) ResourcesByType(ctx context.Context, resourceType string) []*Resource {
	keys := s.Keys(ctx, ResourceTypePrefix(resourceType))
	resources := make([]*Resource, 0, len(keys))
	for _, k := range keys {
		var r Resource
		if s.Get(ctx, k, &r) {
			resources = append(resources, &r)
		}
	}
	return resources
}

// ──────────────────────────────────────────────────
// Per-user context
// ──────────────────────────────────────────────────

// SaveUserContext persists a user's working context under context:{user_id}.
func (s *Store) SaveUserContext(ctx context.Context, userID string, data map[string]any) bool {
	return s.Set(ctx, UserContextKey(userID), data, s.ttls.UserContext)
}

// LoadUserContext reads a user's working context. Returns nil, false on miss.
func (s *Store) LoadUserContext(ctx context.Context, userID string) (map[string]any, bool) {
	var data map[string]any
	if !s.Get(ctx, UserContextKey(userID), &data) {
		return nil, false
	}
	return data, true
}

// ──────────────────────────────────────────────────
// Result cache
// ──────────────────────────────────────────────────

// CacheResult memoizes an action result keyed by action name and a
// fingerprint of its parameters. A non-positive TTL uses the default
// cache TTL.
func (s *Store) CacheResult(ctx context.Context, action string, params map[string]any, result any, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = s.ttls.Cache
	}
	return s.Set(ctx, CacheKey(action, Fingerprint(params)), result, ttl)
}

// CachedResult reads a memoized result for the same action and parameters
// into dest.
func (s *Store) CachedResult(ctx context.Context, action string, params map[string]any, dest any) bool {
	return s.Get(ctx, CacheKey(action, Fingerprint(params)), dest)
}

// ──────────────────────────────────────────────────
// Health and stats
// ──────────────────────────────────────────────────

// Health reports the store's availability: degraded with no backend,
// unhealthy when the backend fails to ping, healthy otherwise (with the
// observed ping latency).
func (s *Store) Health(ctx context.Context) baton.Health {
	if s.backend == nil {
		return baton.Health{Status: baton.HealthDegraded}
	}

	start := time.Now()
	if err := s.backend.Ping(ctx); err != nil {
		return baton.Health{
			Status:  baton.HealthUnhealthy,
			Latency: time.Since(start),
			Error:   err.Error(),
		}
	}

	return baton.Health{
		Status:  baton.HealthHealthy,
		Latency: time.Since(start),
	}
}

// Stats holds per-namespace key counts.
type Stats struct {
	Sessions  int `json:"sessions"`
	Resources int `json:"resources"`
	Contexts  int `json:"contexts"`
	Cached    int `json:"cached"`
	Patterns  int `json:"patterns"`
	Feedback  int `json:"feedback"`
	Audit     int `json:"audit"`
	Schedules int `json:"schedules"`
	Total     int `json:"total"`
}

// Stats counts keys in every namespace. All zeros when the backend is down.
func (s *Store) Stats(ctx context.Context) Stats {
	st := Stats{
		Sessions:  len(s.Keys(ctx, sessionPrefix)),
		Resources: len(s.Keys(ctx, resourcePrefix)),
		Contexts:  len(s.Keys(ctx, userContextPrefix)),
		Cached:    len(s.Keys(ctx, cachePrefix)),
		Patterns:  len(s.Keys(ctx, patternPrefix)),
		Feedback:  len(s.Keys(ctx, feedbackPrefix)),
		Audit:     len(s.Keys(ctx, auditPrefix)),
		Schedules: len(s.Keys(ctx, schedulePrefix)),
	}
	st.Total = st.Sessions + st.Resources + st.Contexts + st.Cached +
		st.Patterns + st.Feedback + st.Audit + st.Schedules
	return st
}
