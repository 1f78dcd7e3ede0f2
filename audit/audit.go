// Package audit keeps a best-effort trail of what the engine did: which
// actions ran, for whom, with what (redacted) parameters, and how they
// ended. Records persist under audit:{id} and each one is announced on
// the event bus.
//
// Auditing never fails a caller. Storage or bus trouble is logged and the
// operation that was being audited proceeds untouched.
package audit

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/batonhq/baton/event"
	"github.com/batonhq/baton/id"
	"github.com/batonhq/baton/state"
)

// Outcome classifies how the audited operation ended.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Severity grades an audit record for triage.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Record is one entry in the audit trail.
type Record struct {
	ID        id.AuditID     `json:"audit_id"`
	Action    string         `json:"action,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	StepID    string         `json:"step_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Outcome   string         `json:"outcome"`
	Severity  string         `json:"severity"`
	Reason    string         `json:"reason,omitempty"`
	Elapsed   time.Duration  `json:"elapsed,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DefaultTTL is the retention window for audit records (30 days).
const DefaultTTL = 720 * time.Hour

// Recorder redacts and persists audit records.
type Recorder struct {
	store    *state.Store
	bus      *event.Bus
	redactor *Redactor
	logger   *slog.Logger
	ttl      time.Duration

	recorded atomic.Int64
	dropped  atomic.Int64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithBus announces each record on the bus as audit.recorded.
func WithBus(bus *event.Bus) RecorderOption {
	return func(r *Recorder) { r.bus = bus }
}

// WithRedactor replaces the default redactor.
func WithRedactor(red *Redactor) RecorderOption {
	return func(r *Recorder) {
		if red != nil {
			r.redactor = red
		}
	}
}

// WithLogger sets the logger for swallowed failures.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTTL overrides the record retention window.
func WithTTL(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// NewRecorder creates a Recorder writing through store.
func NewRecorder(store *state.Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:    store,
		redactor: NewRedactor(),
		logger:   slog.Default(),
		ttl:      DefaultTTL,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Redactor returns the recorder's redactor, for components that must
// scrub values before logging them elsewhere.
func (r *Recorder) Redactor() *Redactor { return r.redactor }

// Record stamps, redacts, and persists rec, then announces it on the bus.
// Failures are logged and swallowed; the audited operation is never
// affected.
func (r *Recorder) Record(ctx context.Context, rec *Record) {
	if rec == nil {
		return
	}

	if rec.ID.IsNil() {
		rec.ID = id.NewAuditID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeSuccess
	}
	if rec.Severity == "" {
		if rec.Outcome == OutcomeError {
			rec.Severity = SeverityError
		} else {
			rec.Severity = SeverityInfo
		}
	}
	rec.Params = r.redactor.Redact(rec.Params)

	if r.store.Set(ctx, state.AuditKey(rec.ID.String()), rec, r.ttl) {
		r.recorded.Add(1)
	} else {
		r.dropped.Add(1)
		r.logger.Warn("audit: record not persisted",
			slog.String("audit_id", rec.ID.String()),
			slog.String("action", rec.Action),
		)
	}

	if r.bus != nil {
		opts := []event.EmitOption{}
		if rec.UserID != "" {
			opts = append(opts, event.WithUser(rec.UserID))
		}
		if rec.RunID != "" {
			opts = append(opts, event.WithCorrelation(rec.RunID))
		}
		r.bus.Emit(ctx, event.AuditRecorded, "audit", map[string]any{
			"audit_id": rec.ID.String(),
			"action":   rec.Action,
			"outcome":  rec.Outcome,
			"severity": rec.Severity,
		}, opts...)
	}
}

// Recent returns up to n audit records, newest first.
func (r *Recorder) Recent(ctx context.Context, n int) []*Record {
	keys := r.store.Keys(ctx, state.AuditPrefix)
	records := make([]*Record, 0, len(keys))
	for _, k := range keys {
		var rec Record
		if r.store.Get(ctx, k, &rec) {
			records = append(records, &rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records
}

// Stats reports how many records this recorder persisted and dropped.
type Stats struct {
	Recorded int64 `json:"recorded"`
	Dropped  int64 `json:"dropped"`
}

// Stats returns a point-in-time snapshot of recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
	}
}
