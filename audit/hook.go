package audit

import (
	"context"
	"time"

	"github.com/batonhq/baton/hook"
	"github.com/batonhq/baton/workflow"
)

// Trail is an engine extension that writes run lifecycle transitions into
// the audit trail. Step completions are not recorded; terminal states and
// step failures are.
type Trail struct {
	rec *Recorder
}

var (
	_ hook.Extension    = (*Trail)(nil)
	_ hook.RunStarted   = (*Trail)(nil)
	_ hook.StepFailed   = (*Trail)(nil)
	_ hook.RunCompleted = (*Trail)(nil)
	_ hook.RunFailed    = (*Trail)(nil)
	_ hook.RunCancelled = (*Trail)(nil)
)

// NewTrail creates the lifecycle audit extension.
func NewTrail(rec *Recorder) *Trail {
	return &Trail{rec: rec}
}

func (t *Trail) Name() string { return "audit-trail" }

func (t *Trail) OnRunStarted(ctx context.Context, r *workflow.Run) error {
	t.rec.Record(ctx, &Record{
		Action: r.Name,
		RunID:  r.ID.String(),
		UserID: callerID(r),
		Reason: "run started",
	})
	return nil
}

func (t *Trail) OnStepFailed(ctx context.Context, r *workflow.Run, stepID string, err error) error {
	rec := &Record{
		Action:   r.Name,
		RunID:    r.ID.String(),
		StepID:   stepID,
		UserID:   callerID(r),
		Outcome:  OutcomeError,
		Severity: SeverityWarning,
	}
	if err != nil {
		rec.Reason = err.Error()
	}
	t.rec.Record(ctx, rec)
	return nil
}

func (t *Trail) OnRunCompleted(ctx context.Context, r *workflow.Run, elapsed time.Duration) error {
	t.rec.Record(ctx, &Record{
		Action:  r.Name,
		RunID:   r.ID.String(),
		UserID:  callerID(r),
		Reason:  "run completed",
		Elapsed: elapsed,
	})
	return nil
}

func (t *Trail) OnRunFailed(ctx context.Context, r *workflow.Run, err error) error {
	rec := &Record{
		Action:  r.Name,
		RunID:   r.ID.String(),
		UserID:  callerID(r),
		Outcome: OutcomeError,
		Elapsed: r.Elapsed(),
	}
	if err != nil {
		rec.Reason = err.Error()
	}
	t.rec.Record(ctx, rec)
	return nil
}

func (t *Trail) OnRunCancelled(ctx context.Context, r *workflow.Run) error {
	t.rec.Record(ctx, &Record{
		Action:   r.Name,
		RunID:    r.ID.String(),
		UserID:   callerID(r),
		Severity: SeverityWarning,
		Reason:   "run cancelled",
		Elapsed:  r.Elapsed(),
	})
	return nil
}

func callerID(r *workflow.Run) string {
	if r.Caller == nil {
		return ""
	}
	return r.Caller.UserID
}
