package workflow

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/id"
)

// Status is the lifecycle state of a run.
type Status string

const (
	// StatusRunning means the run is currently executing steps.
	StatusRunning Status = "running"
	// StatusCompleted means every step finished or was skipped.
	StatusCompleted Status = "completed"
	// StatusFailed means a step exhausted its retries and halted the run.
	StatusFailed Status = "failed"
	// StatusCancelled means the run was stopped between steps on request.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Mode selects what the orchestrator does with a validated plan.
type Mode string

const (
	// ModeExecution runs the plan.
	ModeExecution Mode = "execution"
	// ModeSuggestion returns the plan for review without running it.
	ModeSuggestion Mode = "suggestion"
)

// StepStatus is the lifecycle state of a single step within a run.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepState tracks one node's progress inside a run.
type StepState struct {
	Status   StepStatus    `json:"status"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`
}

// StepResult is the ordered record of one finished step.
type StepResult struct {
	StepID  string         `json:"step_id"`
	Action  string         `json:"action"`
	Status  StepStatus     `json:"status"`
	Result  *action.Result `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
	Elapsed time.Duration  `json:"elapsed"`
}

// Run is a single execution of a plan. It is a plain data record: the
// runner owns all mutation while the run is live, and reads go through
// snapshots.
type Run struct {
	ID     id.RunID       `json:"run_id"`
	PlanID id.PlanID      `json:"plan_id"`
	Name   string         `json:"name"`
	Prompt string         `json:"prompt,omitempty"`
	Status Status         `json:"status"`
	Mode   Mode           `json:"mode"`
	Caller *action.Caller `json:"caller,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	TotalSteps     int `json:"total_steps"`
	CompletedSteps int `json:"completed_steps"`
	FailedSteps    int `json:"failed_steps"`
	SkippedSteps   int `json:"skipped_steps"`

	StepResults []StepResult          `json:"step_results,omitempty"`
	StepStates  map[string]*StepState `json:"step_states,omitempty"`

	// Context accumulates step outputs for placeholder substitution in
	// later steps.
	Context map[string]any `json:"context,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// Elapsed returns how long the run has been going, or took.
func (r *Run) Elapsed() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// Snapshot returns a deep copy safe to hand outside the runner while the
// original keeps mutating. Nested values inside Context and step result
// data are shared; treat them as read-only.
func (r *Run) Snapshot() *Run {
	cp := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	if r.Caller != nil {
		c := *r.Caller
		cp.Caller = &c
	}
	cp.StepResults = slices.Clone(r.StepResults)
	if r.StepStates != nil {
		cp.StepStates = make(map[string]*StepState, len(r.StepStates))
		for k, v := range r.StepStates {
			s := *v
			cp.StepStates[k] = &s
		}
	}
	cp.Context = maps.Clone(r.Context)
	cp.Errors = slices.Clone(r.Errors)
	return &cp
}

// StepError reports a step that failed terminally. It unwraps to the
// underlying cause, so errors.Is sees timeout and exhaustion sentinels.
type StepError struct {
	StepID   string
	Action   string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("baton/workflow: step %s (%s) failed after %d attempts: %v",
		e.StepID, e.Action, e.Attempts, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error { return e.Err }
