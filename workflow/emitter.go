package workflow

import (
	"context"
	"time"
)

// Emitter receives run lifecycle notifications from the runner. It is
// defined here, where it is consumed, so this package does not depend on
// the extension registry that implements it.
type Emitter interface {
	EmitRunStarted(ctx context.Context, r *Run)
	EmitStepCompleted(ctx context.Context, r *Run, stepID string, elapsed time.Duration)
	EmitStepFailed(ctx context.Context, r *Run, stepID string, stepErr error)
	EmitStepSkipped(ctx context.Context, r *Run, stepID string, reason string)
	EmitRunCompleted(ctx context.Context, r *Run, elapsed time.Duration)
	EmitRunFailed(ctx context.Context, r *Run, runErr error)
	EmitRunCancelled(ctx context.Context, r *Run)
}

// NopEmitter discards all notifications.
type NopEmitter struct{}

var _ Emitter = NopEmitter{}

func (NopEmitter) EmitRunStarted(context.Context, *Run) {}

func (NopEmitter) EmitStepCompleted(context.Context, *Run, string, time.Duration) {}

func (NopEmitter) EmitStepFailed(context.Context, *Run, string, error) {}

func (NopEmitter) EmitStepSkipped(context.Context, *Run, string, string) {}

func (NopEmitter) EmitRunCompleted(context.Context, *Run, time.Duration) {}

func (NopEmitter) EmitRunFailed(context.Context, *Run, error) {}

func (NopEmitter) EmitRunCancelled(context.Context, *Run) {}
