// Package event provides the publish/subscribe bus that coordinates the
// engine's moving parts. Workflows, actions, and extensions publish named
// events through a Broker (in-memory or Redis); subscribers register
// per-channel handlers and the bus fans deliveries out to them.
//
// The bus degrades instead of failing: when the broker is unreachable,
// Publish reports false and the event is logged rather than delivered.
package event

import (
	"time"

	"github.com/batonhq/baton/id"
)

// Well-known event names published by the engine itself. The channel an
// event is delivered on is always its name.
const (
	WorkflowStarted       = "workflow.started"
	WorkflowStepCompleted = "workflow.step_completed"
	WorkflowStepFailed    = "workflow.step_failed"
	WorkflowCompleted     = "workflow.completed"
	WorkflowFailed        = "workflow.failed"
	WorkflowCancelled     = "workflow.cancelled"

	ActionExecuted = "action.executed"
	ActionFailed   = "action.failed"

	AuditRecorded    = "audit.recorded"
	ResourceCreated  = "resource.created"
	UserCorrection   = "user.correction"
	FeedbackRecorded = "learning.feedback_recorded"
)

// Event is a single occurrence on the bus. Name doubles as the delivery
// channel; Data carries the event-specific payload.
type Event struct {
	ID            id.EventID     `json:"event_id"`
	Name          string         `json:"event_name"`
	Source        string         `json:"source"`
	Timestamp     time.Time      `json:"timestamp"`
	Data          map[string]any `json:"data,omitempty"`
	UserID        string         `json:"user_id,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// New creates an event with a fresh ID and a UTC timestamp.
func New(name, source string, data map[string]any) *Event {
	return &Event{
		ID:        id.NewEventID(),
		Name:      name,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
