package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/audit"
	"github.com/batonhq/baton/id"
	"github.com/batonhq/baton/workflow"
)

func TestTrailRecordsLifecycle(t *testing.T) {
	store := newTestStore(t)
	rec := audit.NewRecorder(store)
	trail := audit.NewTrail(rec)

	run := &workflow.Run{
		ID:     id.NewRunID(),
		Name:   "weekly export",
		Caller: &action.Caller{UserID: "u-4"},
	}

	ctx := context.Background()
	trail.OnRunStarted(ctx, run)
	trail.OnStepFailed(ctx, run, "step-2", errors.New("quota exceeded"))
	trail.OnRunFailed(ctx, run, errors.New("retries exhausted"))

	records := rec.Recent(ctx, 0)
	if len(records) != 3 {
		t.Fatalf("trail wrote %d records, want 3", len(records))
	}

	byReason := make(map[string]*audit.Record, len(records))
	for _, r := range records {
		byReason[r.Reason] = r
		if r.RunID != run.ID.String() || r.UserID != "u-4" {
			t.Errorf("record identity = %q/%q", r.RunID, r.UserID)
		}
	}

	if r := byReason["run started"]; r == nil || r.Outcome != audit.OutcomeSuccess {
		t.Errorf("run started record = %+v", r)
	}
	if r := byReason["quota exceeded"]; r == nil || r.StepID != "step-2" || r.Severity != audit.SeverityWarning {
		t.Errorf("step failure record = %+v", r)
	}
	if r := byReason["retries exhausted"]; r == nil || r.Outcome != audit.OutcomeError {
		t.Errorf("run failure record = %+v", r)
	}
}

func TestTrailCancelledRun(t *testing.T) {
	store := newTestStore(t)
	rec := audit.NewRecorder(store)
	trail := audit.NewTrail(rec)

	started := time.Now().Add(-3 * time.Second)
	run := &workflow.Run{ID: id.NewRunID(), Name: "import", StartedAt: started}

	trail.OnRunCancelled(context.Background(), run)

	records := rec.Recent(context.Background(), 1)
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0].Reason != "run cancelled" || records[0].Severity != audit.SeverityWarning {
		t.Errorf("record = %+v", records[0])
	}
	if records[0].Elapsed <= 0 {
		t.Error("Elapsed not captured for cancelled run")
	}
}
