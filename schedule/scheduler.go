package schedule

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/id"
	"github.com/batonhq/baton/state"
)

// OrchestrateFunc is the callback the scheduler uses to start a run.
// This breaks the import cycle: the engine provides the implementation.
type OrchestrateFunc func(ctx context.Context, req Request) (id.RunID, error)

// Emitter emits schedule lifecycle events.
// hook.Registry satisfies this interface via EmitScheduleFired.
type Emitter interface {
	EmitScheduleFired(ctx context.Context, entryName string, runID id.RunID)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithEmitter sets the hook emitter notified after each fire.
func WithEmitter(em Emitter) SchedulerOption {
	return func(s *Scheduler) { s.emitter = em }
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSpec parses a cron expression and returns the schedule.
// Exported so callers can validate specs before Add.
func ParseSpec(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Scheduler fires recurring orchestration requests on a tick loop.
//
// The in-memory entry table is authoritative; every mutation is mirrored
// into the state store under schedule:{id} so entries stay visible next
// to the runs they start. A fire that fails to start a run is logged and
// counted, and the occurrence is consumed either way: the scheduler never
// retries a missed slot and never stops ticking.
type Scheduler struct {
	store       *state.Store
	orchestrate OrchestrateFunc
	emitter     Emitter
	logger      *slog.Logger

	tickInterval time.Duration

	mu      sync.RWMutex
	entries map[id.ScheduleID]*Entry

	// parsed caches compiled cron expressions.
	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule

	started atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	fired    atomic.Int64
	failures atomic.Int64
}

// NewScheduler creates a Scheduler. Entries never fire until Start.
func NewScheduler(store *state.Store, orchestrate OrchestrateFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:        store,
		orchestrate:  orchestrate,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		tickInterval: 1 * time.Second,
		entries:      make(map[id.ScheduleID]*Entry),
		parsed:       make(map[string]cronlib.Schedule),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ──────────────────────────────────────────────────
// Entry management
// ──────────────────────────────────────────────────

// Add registers a recurring orchestration under a unique name. The spec
// is validated immediately and the first occurrence is computed from now.
// New entries start enabled.
func (s *Scheduler) Add(ctx context.Context, name, spec string, req Request) (*Entry, error) {
	if name == "" {
		return nil, fmt.Errorf("baton/schedule: add: name is required")
	}
	sched, err := s.getOrParseSchedule(spec)
	if err != nil {
		return nil, fmt.Errorf("baton/schedule: add %s: invalid spec %q: %w", name, spec, err)
	}

	s.mu.Lock()
	for _, e := range s.entries {
		if e.Name == name {
			s.mu.Unlock()
			return nil, fmt.Errorf("baton/schedule: add %s: %w", name, baton.ErrEntryExists)
		}
	}
	now := time.Now().UTC()
	next := sched.Next(now)
	e := &Entry{
		ID:        id.NewScheduleID(),
		Name:      name,
		Spec:      spec,
		Request:   req,
		Enabled:   true,
		CreatedAt: now,
		NextRunAt: &next,
	}
	s.entries[e.ID] = e
	out := e.clone()
	s.mu.Unlock()

	s.mirror(ctx, out)
	s.logger.Info("schedule entry added",
		slog.String("entry", name),
		slog.String("spec", spec),
		slog.Time("next_run_at", next),
	)
	return out, nil
}

// Remove deletes an entry and its state store mirror.
func (s *Scheduler) Remove(ctx context.Context, scheduleID id.ScheduleID) error {
	s.mu.Lock()
	e, ok := s.entries[scheduleID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("baton/schedule: remove %s: %w", scheduleID, baton.ErrEntryNotFound)
	}
	delete(s.entries, scheduleID)
	name := e.Name
	s.mu.Unlock()

	if s.store != nil {
		s.store.Delete(ctx, state.ScheduleKey(scheduleID.String()))
	}
	s.logger.Info("schedule entry removed", slog.String("entry", name))
	return nil
}

// Enable turns an entry back on. Its next occurrence is computed from
// now, so a long-disabled entry does not replay missed slots.
func (s *Scheduler) Enable(ctx context.Context, scheduleID id.ScheduleID) error {
	return s.setEnabled(ctx, scheduleID, true)
}

// Disable stops an entry from firing without removing it.
func (s *Scheduler) Disable(ctx context.Context, scheduleID id.ScheduleID) error {
	return s.setEnabled(ctx, scheduleID, false)
}

func (s *Scheduler) setEnabled(ctx context.Context, scheduleID id.ScheduleID, enabled bool) error {
	s.mu.Lock()
	e, ok := s.entries[scheduleID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("baton/schedule: toggle %s: %w", scheduleID, baton.ErrEntryNotFound)
	}
	e.Enabled = enabled
	if enabled {
		if sched, err := s.getOrParseSchedule(e.Spec); err == nil {
			next := sched.Next(time.Now().UTC())
			e.NextRunAt = &next
		}
	}
	out := e.clone()
	s.mu.Unlock()

	s.mirror(ctx, out)
	s.logger.Info("schedule entry toggled",
		slog.String("entry", out.Name),
		slog.Bool("enabled", enabled),
	)
	return nil
}

// Entry returns a copy of one entry.
func (s *Scheduler) Entry(scheduleID id.ScheduleID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[scheduleID]
	if !ok {
		return nil, fmt.Errorf("baton/schedule: entry %s: %w", scheduleID, baton.ErrEntryNotFound)
	}
	return e.clone(), nil
}

// Entries returns copies of all entries sorted by name.
func (s *Scheduler) Entries() []*Entry {
	s.mu.RLock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ──────────────────────────────────────────────────
// Tick loop
// ──────────────────────────────────────────────────

// Start launches the tick goroutine. Safe to call once per Stop.
func (s *Scheduler) Start(_ context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.tickLoop(s.stopCh)
	s.logger.Info("scheduler started", slog.Duration("tick_interval", s.tickInterval))
}

// Stop signals the tick loop to exit and waits for it.
func (s *Scheduler) Stop() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tickLoop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	now := time.Now().UTC()

	s.mu.RLock()
	due := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.Enabled {
			continue
		}
		if e.NextRunAt == nil || e.NextRunAt.After(now) {
			continue
		}
		due = append(due, e)
	}
	s.mu.RUnlock()

	for _, e := range due {
		s.fireEntry(e, now)
	}
}

func (s *Scheduler) fireEntry(e *Entry, now time.Time) {
	ctx := context.Background()

	// Re-check under the write lock so a Remove or Disable racing the
	// due scan is honored, and advance NextRunAt before orchestrating
	// so a slow run cannot be fired twice for the same slot.
	s.mu.Lock()
	cur, ok := s.entries[e.ID]
	if !ok || !cur.Enabled || cur.NextRunAt == nil || cur.NextRunAt.After(now) {
		s.mu.Unlock()
		return
	}
	sched, err := s.getOrParseSchedule(cur.Spec)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("schedule spec unparseable",
			slog.String("entry", cur.Name),
			slog.String("spec", cur.Spec),
			slog.String("error", err.Error()),
		)
		return
	}
	last := now
	next := sched.Next(now)
	cur.LastRunAt = &last
	cur.NextRunAt = &next
	name, req := cur.Name, cur.Request
	out := cur.clone()
	s.mu.Unlock()

	s.mirror(ctx, out)

	runID, err := s.orchestrate(ctx, req)
	if err != nil {
		s.failures.Add(1)
		s.logger.Error("schedule fire failed",
			slog.String("entry", name),
			slog.String("error", err.Error()),
		)
		return
	}
	s.fired.Add(1)

	if s.emitter != nil {
		s.emitter.EmitScheduleFired(ctx, name, runID)
	}
	s.logger.Info("schedule fired",
		slog.String("entry", name),
		slog.String("run_id", runID.String()),
		slog.Time("next_run_at", next),
	)
}

// mirror writes an entry copy into the state store. Mirrors are
// observational: the in-memory table stays authoritative, so a degraded
// store costs visibility, not schedules.
func (s *Scheduler) mirror(ctx context.Context, e *Entry) {
	if s.store == nil {
		return
	}
	if !s.store.Set(ctx, state.ScheduleKey(e.ID.String()), e, 0) {
		s.logger.Warn("schedule mirror write failed", slog.String("entry", e.Name))
	}
}

// getOrParseSchedule caches compiled cron expressions.
func (s *Scheduler) getOrParseSchedule(expr string) (cronlib.Schedule, error) {
	s.parsedMu.RLock()
	sched, ok := s.parsed[expr]
	s.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseSpec(expr)
	if err != nil {
		return nil, err
	}

	s.parsedMu.Lock()
	s.parsed[expr] = sched
	s.parsedMu.Unlock()
	return sched, nil
}

// ──────────────────────────────────────────────────
// Stats
// ──────────────────────────────────────────────────

// Stats is a point-in-time snapshot of scheduler activity.
type Stats struct {
	Entries  int   `json:"entries"`
	Enabled  int   `json:"enabled"`
	Fired    int64 `json:"fired"`
	Failures int64 `json:"failures"`
}

// Stats reports entry counts and fire totals.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	total := len(s.entries)
	enabled := 0
	for _, e := range s.entries {
		if e.Enabled {
			enabled++
		}
	}
	s.mu.RUnlock()

	return Stats{
		Entries:  total,
		Enabled:  enabled,
		Fired:    s.fired.Load(),
		Failures: s.failures.Load(),
	}
}
