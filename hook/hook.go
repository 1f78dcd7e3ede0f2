// Package hook defines the extension system for Baton. Extensions are
// notified of run lifecycle events (started, step completed, failed, etc.)
// and can react to them — audit trails, event publication, learning.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/batonhq/baton/id"
	"github.com/batonhq/baton/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Run lifecycle hooks
// ──────────────────────────────────────────────────

// RunStarted is called when a run begins executing.
type RunStarted interface {
	OnRunStarted(ctx context.Context, r *workflow.Run) error
}

// StepCompleted is called after a step finishes successfully.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, r *workflow.Run, stepID string, elapsed time.Duration) error
}

// StepFailed is called when a step fails terminally (retries exhausted).
type StepFailed interface {
	OnStepFailed(ctx context.Context, r *workflow.Run, stepID string, err error) error
}

// StepSkipped is called when a step is skipped because its dependencies
// did not complete.
type StepSkipped interface {
	OnStepSkipped(ctx context.Context, r *workflow.Run, stepID string, reason string) error
}

// RunCompleted is called after a run finishes successfully.
type RunCompleted interface {
	OnRunCompleted(ctx context.Context, r *workflow.Run, elapsed time.Duration) error
}

// RunFailed is called when a run fails terminally.
type RunFailed interface {
	OnRunFailed(ctx context.Context, r *workflow.Run, err error) error
}

// RunCancelled is called when a run stops on a cancellation request.
type RunCancelled interface {
	OnRunCancelled(ctx context.Context, r *workflow.Run) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// ScheduleFired is called when a schedule entry fires and starts a run.
type ScheduleFired interface {
	OnScheduleFired(ctx context.Context, entryName string, runID id.RunID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
