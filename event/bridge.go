package event

import (
	"context"
	"time"

	"github.com/batonhq/baton/workflow"
)

// Bridge is an engine extension that republishes run lifecycle
// notifications onto the bus, so external consumers can observe workflow
// progress without being wired into the runner.
type Bridge struct {
	bus    *Bus
	source string
}

// NewBridge wires lifecycle notifications to bus.
func NewBridge(bus *Bus) *Bridge {
	return &Bridge{bus: bus, source: "workflow"}
}

func (b *Bridge) Name() string { return "event-bridge" }

func (b *Bridge) OnRunStarted(ctx context.Context, r *workflow.Run) error {
	b.emit(ctx, WorkflowStarted, r, map[string]any{
		"run_id":  r.ID.String(),
		"plan_id": r.PlanID.String(),
		"name":    r.Name,
		"mode":    string(r.Mode),
		"steps":   r.TotalSteps,
	})
	return nil
}

func (b *Bridge) OnStepCompleted(ctx context.Context, r *workflow.Run, stepID string, elapsed time.Duration) error {
	b.emit(ctx, WorkflowStepCompleted, r, map[string]any{
		"run_id":     r.ID.String(),
		"step_id":    stepID,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return nil
}

func (b *Bridge) OnStepFailed(ctx context.Context, r *workflow.Run, stepID string, stepErr error) error {
	data := map[string]any{
		"run_id":  r.ID.String(),
		"step_id": stepID,
	}
	if stepErr != nil {
		data["error"] = stepErr.Error()
	}
	b.emit(ctx, WorkflowStepFailed, r, data)
	return nil
}

func (b *Bridge) OnRunCompleted(ctx context.Context, r *workflow.Run, elapsed time.Duration) error {
	b.emit(ctx, WorkflowCompleted, r, map[string]any{
		"run_id":          r.ID.String(),
		"name":            r.Name,
		"completed_steps": r.CompletedSteps,
		"failed_steps":    r.FailedSteps,
		"skipped_steps":   r.SkippedSteps,
		"elapsed_ms":      elapsed.Milliseconds(),
	})
	return nil
}

func (b *Bridge) OnRunFailed(ctx context.Context, r *workflow.Run, runErr error) error {
	data := map[string]any{
		"run_id":          r.ID.String(),
		"name":            r.Name,
		"completed_steps": r.CompletedSteps,
		"failed_steps":    r.FailedSteps,
	}
	if runErr != nil {
		data["error"] = runErr.Error()
	}
	b.emit(ctx, WorkflowFailed, r, data)
	return nil
}

func (b *Bridge) OnRunCancelled(ctx context.Context, r *workflow.Run) error {
	b.emit(ctx, WorkflowCancelled, r, map[string]any{
		"run_id":          r.ID.String(),
		"name":            r.Name,
		"completed_steps": r.CompletedSteps,
	})
	return nil
}

func (b *Bridge) emit(ctx context.Context, name string, r *workflow.Run, data map[string]any) {
	opts := []EmitOption{WithCorrelation(r.ID.String())}
	if r.Caller != nil {
		if r.Caller.UserID != "" {
			opts = append(opts, WithUser(r.Caller.UserID))
		}
		if r.Caller.SessionID != "" {
			opts = append(opts, WithSession(r.Caller.SessionID))
		}
	}
	b.bus.Emit(ctx, name, b.source, data, opts...)
}
