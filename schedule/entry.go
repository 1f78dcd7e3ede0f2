package schedule

import (
	"time"

	"github.com/batonhq/baton/id"
)

// Request is the orchestration request an entry replays on every fire.
// It carries the same fields a caller would pass to Engine.Orchestrate.
type Request struct {
	Prompt  string         `json:"prompt"`
	UserID  string         `json:"user_id,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Entry is a recurring orchestration schedule.
type Entry struct {
	ID        id.ScheduleID `json:"id"`
	Name      string        `json:"name"`
	Spec      string        `json:"spec"`
	Request   Request       `json:"request"`
	Enabled   bool          `json:"enabled"`
	CreatedAt time.Time     `json:"created_at"`
	LastRunAt *time.Time    `json:"last_run_at,omitempty"`
	NextRunAt *time.Time    `json:"next_run_at,omitempty"`
}

// clone returns a copy safe to hand to callers while the scheduler
// keeps mutating the original on fires.
func (e *Entry) clone() *Entry {
	c := *e
	if e.LastRunAt != nil {
		t := *e.LastRunAt
		c.LastRunAt = &t
	}
	if e.NextRunAt != nil {
		t := *e.NextRunAt
		c.NextRunAt = &t
	}
	return &c
}
