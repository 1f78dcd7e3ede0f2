package schedule_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/id"
	"github.com/batonhq/baton/schedule"
	"github.com/batonhq/baton/state"
	"github.com/batonhq/baton/state/memory"
)

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	backend := memory.New(memory.WithSweepInterval(0))
	t.Cleanup(func() { backend.Close() })
	return state.New(backend)
}

// stubEmitter records EmitScheduleFired calls.
type stubEmitter struct {
	mu    sync.Mutex
	calls []firedCall
}

type firedCall struct {
	EntryName string
	RunID     id.RunID
}

func (e *stubEmitter) EmitScheduleFired(_ context.Context, entryName string, runID id.RunID) {
	e.mu.Lock()
	e.calls = append(e.calls, firedCall{EntryName: entryName, RunID: runID})
	e.mu.Unlock()
}

func (e *stubEmitter) getCalls() []firedCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]firedCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// orchestrateSpy tracks orchestrate calls with thread safety.
type orchestrateSpy struct {
	mu   sync.Mutex
	reqs []schedule.Request
	runs []id.RunID
	err  error
}

func (o *orchestrateSpy) Fn() schedule.OrchestrateFunc {
	return func(_ context.Context, req schedule.Request) (id.RunID, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.err != nil {
			return id.ID{}, o.err
		}
		runID := id.NewRunID()
		o.reqs = append(o.reqs, req)
		o.runs = append(o.runs, runID)
		return runID, nil
	}
}

func (o *orchestrateSpy) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.reqs)
}

func (o *orchestrateSpy) first() (schedule.Request, id.RunID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reqs[0], o.runs[0]
}

func TestAddComputesFirstOccurrence(t *testing.T) {
	store := newTestStore(t)
	s := schedule.NewScheduler(store, (&orchestrateSpy{}).Fn())
	ctx := context.Background()

	before := time.Now().UTC()
	e, err := s.Add(ctx, "weekly-digest", "@every 1s", schedule.Request{
		Prompt: "send the weekly digest to finance",
		UserID: "u-1",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !e.Enabled {
		t.Error("new entry should start enabled")
	}
	if e.ID.Prefix() != id.PrefixSchedule {
		t.Errorf("entry ID prefix = %q, want %q", e.ID.Prefix(), id.PrefixSchedule)
	}
	if e.NextRunAt == nil {
		t.Fatal("NextRunAt not computed")
	}
	if !e.NextRunAt.After(before) {
		t.Errorf("NextRunAt = %v, want after %v", e.NextRunAt, before)
	}
	if e.NextRunAt.After(before.Add(3 * time.Second)) {
		t.Errorf("NextRunAt = %v, want within a few seconds of %v", e.NextRunAt, before)
	}
	if e.LastRunAt != nil {
		t.Errorf("LastRunAt = %v, want nil before first fire", e.LastRunAt)
	}

	var mirrored schedule.Entry
	if !store.Get(ctx, state.ScheduleKey(e.ID.String()), &mirrored) {
		t.Fatal("entry not mirrored into state store")
	}
	if mirrored.Name != "weekly-digest" || mirrored.Request.Prompt != "send the weekly digest to finance" {
		t.Errorf("mirrored entry = %+v, want name and request preserved", mirrored)
	}
}

func TestAddRejectsInvalidSpec(t *testing.T) {
	s := schedule.NewScheduler(newTestStore(t), (&orchestrateSpy{}).Fn())

	_, err := s.Add(context.Background(), "broken", "every tuesday-ish", schedule.Request{Prompt: "x"})
	if err == nil {
		t.Fatal("Add() with invalid spec should fail")
	}
	if !strings.Contains(err.Error(), "invalid spec") {
		t.Errorf("error = %v, want invalid spec", err)
	}
}

func TestAddRejectsDuplicateName(t *testing.T) {
	s := schedule.NewScheduler(newTestStore(t), (&orchestrateSpy{}).Fn())
	ctx := context.Background()

	if _, err := s.Add(ctx, "nightly", "@every 1s", schedule.Request{Prompt: "x"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	_, err := s.Add(ctx, "nightly", "@every 2s", schedule.Request{Prompt: "y"})
	if !errors.Is(err, baton.ErrEntryExists) {
		t.Errorf("duplicate Add() error = %v, want ErrEntryExists", err)
	}
}

func TestRemoveDeletesEntryAndMirror(t *testing.T) {
	store := newTestStore(t)
	s := schedule.NewScheduler(store, (&orchestrateSpy{}).Fn())
	ctx := context.Background()

	e, err := s.Add(ctx, "nightly", "@every 1s", schedule.Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Remove(ctx, e.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := s.Entry(e.ID); !errors.Is(err, baton.ErrEntryNotFound) {
		t.Errorf("Entry() after remove error = %v, want ErrEntryNotFound", err)
	}
	var mirrored schedule.Entry
	if store.Get(ctx, state.ScheduleKey(e.ID.String()), &mirrored) {
		t.Error("state store mirror should be deleted with the entry")
	}
	if err := s.Remove(ctx, e.ID); !errors.Is(err, baton.ErrEntryNotFound) {
		t.Errorf("second Remove() error = %v, want ErrEntryNotFound", err)
	}
}

func TestEnableDisable(t *testing.T) {
	s := schedule.NewScheduler(newTestStore(t), (&orchestrateSpy{}).Fn())
	ctx := context.Background()

	e, err := s.Add(ctx, "nightly", "@every 1s", schedule.Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := s.Disable(ctx, e.ID); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	got, err := s.Entry(e.ID)
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if got.Enabled {
		t.Error("entry still enabled after Disable")
	}

	if err := s.Enable(ctx, e.ID); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	got, err = s.Entry(e.ID)
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if !got.Enabled {
		t.Error("entry still disabled after Enable")
	}
	if got.NextRunAt == nil {
		t.Error("Enable should recompute NextRunAt")
	}

	if err := s.Disable(ctx, id.NewScheduleID()); !errors.Is(err, baton.ErrEntryNotFound) {
		t.Errorf("Disable(unknown) error = %v, want ErrEntryNotFound", err)
	}

	stats := s.Stats()
	if stats.Entries != 1 || stats.Enabled != 1 {
		t.Errorf("Stats() = %+v, want 1 entry, 1 enabled", stats)
	}
}

func TestEntriesSortedByName(t *testing.T) {
	s := schedule.NewScheduler(newTestStore(t), (&orchestrateSpy{}).Fn())
	ctx := context.Background()

	for _, name := range []string{"weekly", "daily", "monthly"} {
		if _, err := s.Add(ctx, name, "@every 1s", schedule.Request{Prompt: name}); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("Entries() returned %d entries, want 3", len(entries))
	}
	for i, want := range []string{"daily", "monthly", "weekly"} {
		if entries[i].Name != want {
			t.Errorf("entries[%d].Name = %q, want %q", i, entries[i].Name, want)
		}
	}
}

func TestSchedulerFiresDueEntry(t *testing.T) {
	store := newTestStore(t)
	spy := &orchestrateSpy{}
	emitter := &stubEmitter{}
	s := schedule.NewScheduler(store, spy.Fn(),
		schedule.WithEmitter(emitter),
		schedule.WithTickInterval(10*time.Millisecond),
	)
	ctx := context.Background()

	e, err := s.Add(ctx, "weekly-digest", "@every 1s", schedule.Request{
		Prompt:  "send the weekly digest to finance",
		UserID:  "u-1",
		Context: map[string]any{"channel": "finance"},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if spy.count() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if spy.count() < 1 {
		t.Fatal("entry never fired")
	}

	req, runID := spy.first()
	if req.Prompt != "send the weekly digest to finance" || req.UserID != "u-1" {
		t.Errorf("orchestrate request = %+v, want stored request replayed", req)
	}
	if req.Context["channel"] != "finance" {
		t.Errorf("orchestrate request context = %v, want stored context replayed", req.Context)
	}

	calls := emitter.getCalls()
	if len(calls) == 0 {
		t.Fatal("emitter not notified of fire")
	}
	if calls[0].EntryName != "weekly-digest" || calls[0].RunID != runID {
		t.Errorf("emitter call = %+v, want entry name and run ID from the fire", calls[0])
	}

	got, err := s.Entry(e.ID)
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if got.LastRunAt == nil {
		t.Fatal("LastRunAt not set after fire")
	}
	if got.NextRunAt == nil || !got.NextRunAt.After(*got.LastRunAt) {
		t.Errorf("NextRunAt = %v, want advanced past LastRunAt %v", got.NextRunAt, got.LastRunAt)
	}

	stats := s.Stats()
	if stats.Fired < 1 {
		t.Errorf("Stats().Fired = %d, want >= 1", stats.Fired)
	}
	if stats.Failures != 0 {
		t.Errorf("Stats().Failures = %d, want 0", stats.Failures)
	}
}

func TestSchedulerSurvivesOrchestrateFailure(t *testing.T) {
	spy := &orchestrateSpy{err: errors.New("proposer offline")}
	emitter := &stubEmitter{}
	s := schedule.NewScheduler(newTestStore(t), spy.Fn(),
		schedule.WithEmitter(emitter),
		schedule.WithTickInterval(10*time.Millisecond),
	)
	ctx := context.Background()

	if _, err := s.Add(ctx, "doomed", "@every 1s", schedule.Request{Prompt: "x"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	s.Start(ctx)
	defer s.Stop()

	// Two failures prove the loop consumed the first occurrence and
	// kept ticking into the next one.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Stats().Failures >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stats := s.Stats()
	if stats.Failures < 2 {
		t.Fatalf("Stats().Failures = %d, want >= 2", stats.Failures)
	}
	if stats.Fired != 0 {
		t.Errorf("Stats().Fired = %d, want 0", stats.Fired)
	}
	if len(emitter.getCalls()) != 0 {
		t.Error("emitter should not be notified for failed fires")
	}
}

func TestDisabledEntryDoesNotFire(t *testing.T) {
	spy := &orchestrateSpy{}
	s := schedule.NewScheduler(newTestStore(t), spy.Fn(),
		schedule.WithTickInterval(10*time.Millisecond),
	)
	ctx := context.Background()

	e, err := s.Add(ctx, "paused", "@every 1s", schedule.Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Disable(ctx, e.ID); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}

	s.Start(ctx)
	defer s.Stop()

	time.Sleep(1600 * time.Millisecond)
	if n := spy.count(); n != 0 {
		t.Errorf("disabled entry fired %d times, want 0", n)
	}
}

func TestStartStopAreIdempotent(t *testing.T) {
	s := schedule.NewScheduler(newTestStore(t), (&orchestrateSpy{}).Fn(),
		schedule.WithTickInterval(5*time.Millisecond),
	)
	ctx := context.Background()

	s.Start(ctx)
	s.Start(ctx)
	s.Stop()
	s.Stop()

	// A stopped scheduler can be started again.
	s.Start(ctx)
	s.Stop()
}
