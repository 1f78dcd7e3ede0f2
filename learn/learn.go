// Package learn captures feedback from finished workflows and distills it
// into keyword-triggered patterns that advise future planning. Matching is
// Jaccard similarity over stopword-filtered keywords; candidates are ranked
// by similarity × success rate.
//
// The subsystem is advisory and fail-open: Enhance returns nil on any
// internal failure, and a learner that cannot reach its store degrades to
// a no-op instead of failing the caller.
package learn

import (
	"fmt"
	"strings"
	"time"

	"github.com/batonhq/baton/id"
)

// Kind classifies what a piece of feedback reports.
type Kind string

const (
	// KindSuccess records a run that completed.
	KindSuccess Kind = "success"
	// KindFailure records a run that failed.
	KindFailure Kind = "failure"
	// KindCorrection records a user-supplied replacement for a proposed
	// plan. Corrections are deliberate overrides and seed patterns with
	// higher confidence than observed outcomes.
	KindCorrection Kind = "correction"
)

// Category groups patterns by the kind of advice they carry.
type Category string

const (
	// CategoryWorkflowOptimization holds templates distilled from
	// successful runs.
	CategoryWorkflowOptimization Category = "workflow_optimization"
	// CategoryActionSequencing holds sequences users corrected by hand.
	CategoryActionSequencing Category = "action_sequencing"
	// CategoryErrorPrevention holds cautionary patterns distilled from
	// failures.
	CategoryErrorPrevention Category = "error_prevention"
)

// Feedback is one observation about an executed or corrected workflow.
type Feedback struct {
	ID        id.FeedbackID  `json:"feedback_id"`
	RunID     id.RunID       `json:"run_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Kind      Kind           `json:"kind"`
	Prompt    string         `json:"prompt"`
	Actions   []string       `json:"actions,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// outcome is the feedback's contribution to a pattern's rolling success
// rate. Corrections count as successes: the user handed over a sequence
// they consider right.
func (f *Feedback) outcome() float64 {
	if f.Kind == KindFailure {
		return 0
	}
	return 1
}

// Pattern is a learned association between request keywords and an
// approach that previously worked, was corrected, or failed.
type Pattern struct {
	ID          id.PatternID `json:"pattern_id"`
	Keywords    []string     `json:"keywords"`
	Category    Category     `json:"category"`
	Actions     []string     `json:"actions,omitempty"`
	Confidence  float64      `json:"confidence"`
	SuccessRate float64      `json:"success_rate"`
	UsageCount  int          `json:"usage_count"`
	CreatedAt   time.Time    `json:"created_at"`
	LastUsed    time.Time    `json:"last_used"`
}

// Match pairs a pattern with its similarity to a request.
type Match struct {
	Pattern    *Pattern `json:"pattern"`
	Similarity float64  `json:"similarity"`
}

// Score is the ranking key: similarity weighted by how often the pattern's
// approach actually worked. Cautionary patterns score zero and sort last.
func (m Match) Score() float64 { return m.Similarity * m.Pattern.SuccessRate }

// Hint renders the match as one advisory sentence for a planner.
func (m Match) Hint() string {
	p := m.Pattern
	switch p.Category {
	case CategoryActionSequencing:
		if len(p.Actions) == 0 {
			return "a user previously corrected the plan for a similar request"
		}
		return fmt.Sprintf("a user corrected a similar request to run: %s",
			strings.Join(p.Actions, ", "))
	case CategoryErrorPrevention:
		if len(p.Actions) == 0 {
			return "a similar request previously failed"
		}
		return fmt.Sprintf("a similar request previously failed; avoid repeating: %s",
			strings.Join(p.Actions, ", "))
	default:
		if len(p.Actions) == 0 {
			return "a similar request previously succeeded"
		}
		return fmt.Sprintf("a similar request previously succeeded with actions: %s",
			strings.Join(p.Actions, ", "))
	}
}

// seedCategory maps a feedback kind to the pattern category it seeds.
func seedCategory(k Kind) Category {
	switch k {
	case KindCorrection:
		return CategoryActionSequencing
	case KindFailure:
		return CategoryErrorPrevention
	default:
		return CategoryWorkflowOptimization
	}
}

// seedConfidence is the starting confidence for a pattern seeded by the
// given feedback kind. Corrections start highest: a human chose them.
func seedConfidence(k Kind) float64 {
	switch k {
	case KindCorrection:
		return 0.9
	case KindFailure:
		return 0.7
	default:
		return 0.8
	}
}
