package plan

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/id"
)

// Builder validates proposals against the action registry and produces
// executable graphs. Planner mistakes degrade the plan instead of failing
// it: unknown actions are dropped, dangling dependencies pruned, and cyclic
// dependency structures flattened into a sequential chain. Build fails only
// when nothing executable survives.
type Builder struct {
	registry *action.Registry
	logger   *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used to report dropped and rewritten nodes.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a builder that validates against the given registry.
func NewBuilder(registry *action.Registry, opts ...BuilderOption) *Builder {
	b := &Builder{
		registry: registry,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates a proposal into an immutable Graph.
func (b *Builder) Build(proposal *Proposal) (*Graph, error) {
	if proposal == nil || len(proposal.Nodes) == 0 {
		return nil, baton.ErrEmptyProposal
	}

	nodes := b.filter(proposal)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("baton/plan: %q: %w", proposal.Name, baton.ErrEmptyPlan)
	}

	b.pruneDeps(nodes)

	if hasCycle(nodes) {
		b.logger.Warn("plan: dependency cycle detected, linearizing",
			slog.String("plan", proposal.Name),
			slog.Int("steps", len(nodes)))
		linearize(nodes)
	}

	return &Graph{
		ID:                id.NewPlanID(),
		Name:              proposal.Name,
		Description:       proposal.Description,
		Nodes:             nodes,
		ParallelGroups:    groupIndex(nodes),
		EstimatedDuration: b.estimate(nodes),
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// filter copies the proposal's usable nodes: registered actions only, with
// synthesized IDs where the planner omitted them and duplicates dropped.
func (b *Builder) filter(proposal *Proposal) []*Node {
	nodes := make([]*Node, 0, len(proposal.Nodes))
	seen := make(map[string]struct{}, len(proposal.Nodes))

	for i, raw := range proposal.Nodes {
		if raw == nil {
			continue
		}
		if !b.registry.Has(raw.Action) {
			b.logger.Warn("plan: dropping step with unregistered action",
				slog.String("plan", proposal.Name),
				slog.String("step", raw.ID),
				slog.String("action", raw.Action))
			continue
		}

		node := &Node{
			ID:                raw.ID,
			Action:            raw.Action,
			Params:            maps.Clone(raw.Params),
			DependsOn:         slices.Clone(raw.DependsOn),
			ParallelGroup:     raw.ParallelGroup,
			EstimatedDuration: raw.EstimatedDuration,
			Priority:          raw.Priority,
		}
		if node.ID == "" {
			node.ID = fmt.Sprintf("step-%d", i+1)
		}
		if _, dup := seen[node.ID]; dup {
			b.logger.Warn("plan: dropping step with duplicate id",
				slog.String("plan", proposal.Name),
				slog.String("step", node.ID))
			continue
		}
		seen[node.ID] = struct{}{}
		nodes = append(nodes, node)
	}
	return nodes
}

// pruneDeps removes dependency edges that point at nodes which no longer
// exist, so a dropped step cannot deadlock its dependents.
func (b *Builder) pruneDeps(nodes []*Node) {
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = struct{}{}
	}
	for _, n := range nodes {
		kept := n.DependsOn[:0]
		for _, dep := range n.DependsOn {
			if _, ok := ids[dep]; ok {
				kept = append(kept, dep)
				continue
			}
			b.logger.Debug("plan: pruning dangling dependency",
				slog.String("step", n.ID),
				slog.String("depends_on", dep))
		}
		n.DependsOn = kept
	}
}

// hasCycle runs Kahn's algorithm over the dependency edges. Any node left
// unprocessed sits on a cycle, direct or transitive.
func hasCycle(nodes []*Node) bool {
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		indegree[n.ID] += 0
		for _, dep := range n.DependsOn {
			indegree[n.ID]++
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	processed := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range dependents[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return processed < len(nodes)
}

// linearize rewrites a cyclic plan as a sequential chain in proposal order
// and clears parallel grouping, which cannot hold once order is forced.
func linearize(nodes []*Node) {
	for i, n := range nodes {
		if i == 0 {
			n.DependsOn = nil
		} else {
			n.DependsOn = []string{nodes[i-1].ID}
		}
		n.ParallelGroup = ""
	}
}

// groupIndex maps each parallel group to its member node IDs in order.
func groupIndex(nodes []*Node) map[string][]string {
	var groups map[string][]string
	for _, n := range nodes {
		if n.ParallelGroup == "" {
			continue
		}
		if groups == nil {
			groups = make(map[string][]string)
		}
		groups[n.ParallelGroup] = append(groups[n.ParallelGroup], n.ID)
	}
	return groups
}

// estimate totals the plan duration: sequential steps add up, parallel
// groups contribute their slowest member.
func (b *Builder) estimate(nodes []*Node) time.Duration {
	var total time.Duration
	groupMax := make(map[string]time.Duration)

	for _, n := range nodes {
		d := n.EstimatedDuration
		if d <= 0 {
			if def, ok := b.registry.Get(n.Action); ok {
				d = def.Opts.EstimatedDuration
			}
		}
		if n.ParallelGroup == "" {
			total += d
			continue
		}
		if d > groupMax[n.ParallelGroup] {
			groupMax[n.ParallelGroup] = d
		}
	}
	for _, d := range groupMax {
		total += d
	}
	return total
}
