package learn

import (
	"context"
	"fmt"
	"time"

	"github.com/batonhq/baton/event"
	"github.com/batonhq/baton/hook"
	"github.com/batonhq/baton/id"
	"github.com/batonhq/baton/workflow"
)

// Intake feeds terminal workflow runs into a learner. Register it on the
// hook registry for run outcomes and attach it to a bus to pick up user
// corrections. Cancelled runs are not recorded: a user stopping a run says
// nothing about whether the plan was right.
type Intake struct {
	learner *Learner
}

var (
	_ hook.Extension    = (*Intake)(nil)
	_ hook.RunCompleted = (*Intake)(nil)
	_ hook.RunFailed    = (*Intake)(nil)
)

// NewIntake creates the intake adapter for a learner.
func NewIntake(l *Learner) *Intake {
	return &Intake{learner: l}
}

// Name implements hook.Extension.
func (i *Intake) Name() string { return "learn-intake" }

// OnRunCompleted records success feedback for a finished run.
func (i *Intake) OnRunCompleted(ctx context.Context, r *workflow.Run, elapsed time.Duration) error {
	rate := 0.0
	if r.TotalSteps > 0 {
		rate = float64(r.CompletedSteps) / float64(r.TotalSteps)
	}
	i.learner.Record(ctx, &Feedback{
		RunID:   r.ID,
		UserID:  callerID(r),
		Kind:    KindSuccess,
		Prompt:  runPrompt(r),
		Actions: runActions(r, workflow.StepCompleted),
		Details: map[string]any{
			"total_steps":      r.TotalSteps,
			"completed_steps":  r.CompletedSteps,
			"duration_seconds": elapsed.Seconds(),
			"success_rate":     rate,
		},
	})
	return nil
}

// OnRunFailed records failure feedback so similar requests can be warned.
func (i *Intake) OnRunFailed(ctx context.Context, r *workflow.Run, runErr error) error {
	fb := &Feedback{
		RunID:   r.ID,
		UserID:  callerID(r),
		Kind:    KindFailure,
		Prompt:  runPrompt(r),
		Actions: runActions(r, workflow.StepCompleted, workflow.StepFailed),
		Details: map[string]any{
			"final_status": string(r.Status),
			"failed_steps": r.FailedSteps,
			"errors":       r.Errors,
		},
	}
	if runErr != nil {
		fb.Error = runErr.Error()
	}
	i.learner.Record(ctx, fb)
	return nil
}

// SubscribeCorrections registers a handler for user.correction events. The
// event's data carries the original prompt under "prompt" and the
// corrected action sequence under "actions"; the run the correction refers
// to travels as the correlation ID.
func (i *Intake) SubscribeCorrections(bus *event.Bus) {
	bus.Subscribe(event.UserCorrection, i.onCorrection)
}

func (i *Intake) onCorrection(ctx context.Context, evt *event.Event) error {
	prompt, _ := evt.Data["prompt"].(string)
	if prompt == "" {
		return fmt.Errorf("baton/learn: correction event %s carries no prompt", evt.ID)
	}

	fb := &Feedback{
		UserID:  evt.UserID,
		Kind:    KindCorrection,
		Prompt:  prompt,
		Actions: stringsOf(evt.Data["actions"]),
	}
	if rid, err := id.ParseRunID(evt.CorrelationID); err == nil {
		fb.RunID = rid
	}
	if orig := stringsOf(evt.Data["original_actions"]); len(orig) > 0 {
		fb.Details = map[string]any{"original_actions": orig}
	}

	i.learner.Record(ctx, fb)
	return nil
}

// runPrompt returns the text to extract triggers from: the originating
// request when the run carries one, the plan name otherwise.
func runPrompt(r *workflow.Run) string {
	if r.Prompt != "" {
		return r.Prompt
	}
	return r.Name
}

// runActions lists the actions of steps that ended in any of the given
// statuses, in execution order.
func runActions(r *workflow.Run, statuses ...workflow.StepStatus) []string {
	var actions []string
	for _, sr := range r.StepResults {
		for _, status := range statuses {
			if sr.Status == status {
				actions = append(actions, sr.Action)
				break
			}
		}
	}
	return actions
}

func callerID(r *workflow.Run) string {
	if r.Caller == nil {
		return ""
	}
	return r.Caller.UserID
}

// stringsOf coerces a bus payload value into a string slice. JSON decoding
// turns emitted []string values into []any on delivery.
func stringsOf(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}
