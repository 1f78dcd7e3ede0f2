// Package plan turns raw planner proposals into validated, immutable
// execution graphs. The planner itself lives outside the engine behind the
// Proposer interface; this package is the trust boundary that keeps its
// output from crashing a run.
package plan

import (
	"context"
	"time"

	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/id"
)

// Node is one planned step: an action invocation with ordering metadata.
type Node struct {
	ID                string        `json:"id"`
	Action            string        `json:"action"`
	Params            action.Params `json:"params,omitempty"`
	DependsOn         []string      `json:"depends_on,omitempty"`
	ParallelGroup     string        `json:"parallel_group,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
	Priority          int           `json:"priority,omitempty"`
}

// Proposal is raw planner output, untrusted until built into a Graph.
type Proposal struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Nodes       []*Node `json:"nodes"`
}

// Request is what a planner sees when asked for a proposal: the user's
// prompt, what the engine knows about them, the registered action names,
// and advisory hints from previously learned patterns.
type Request struct {
	Prompt    string
	UserID    string
	Context   map[string]any
	Available []string
	Hints     []string
}

// Proposer produces a raw plan for a natural-language request. It is the
// external planning collaborator, typically backed by a language model.
type Proposer interface {
	Propose(ctx context.Context, req *Request) (*Proposal, error)
}

// ProposerFunc adapts a function to the Proposer interface.
type ProposerFunc func(ctx context.Context, req *Request) (*Proposal, error)

// Propose calls f.
func (f ProposerFunc) Propose(ctx context.Context, req *Request) (*Proposal, error) {
	return f(ctx, req)
}

// Graph is a validated plan. It is immutable once built: the runner copies
// node state into the run instead of writing through these pointers.
// Execution order is the node order.
type Graph struct {
	ID                id.PlanID           `json:"plan_id"`
	Name              string              `json:"name"`
	Description       string              `json:"description,omitempty"`
	Nodes             []*Node             `json:"nodes"`
	ParallelGroups    map[string][]string `json:"parallel_groups,omitempty"`
	EstimatedDuration time.Duration       `json:"estimated_duration"`
	CreatedAt         time.Time           `json:"created_at"`
}

// Node returns the node with the given ID.
func (g *Graph) Node(nodeID string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == nodeID {
			return n, true
		}
	}
	return nil, false
}

// Len returns the number of executable steps.
func (g *Graph) Len() int { return len(g.Nodes) }
