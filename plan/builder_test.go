package plan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/plan"
)

func newTestBuilder(t *testing.T) *plan.Builder {
	t.Helper()
	reg := action.NewRegistry()
	ok := func(context.Context, *action.Caller, action.Params) (*action.Result, error) {
		return action.Success(nil), nil
	}
	for _, name := range []string{"mail.send", "file.upload", "contact.lookup"} {
		if err := reg.Register(action.NewDefinition(name, ok)); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	return plan.NewBuilder(reg)
}

func TestBuildValidProposal(t *testing.T) {
	b := newTestBuilder(t)

	g, err := b.Build(&plan.Proposal{
		Name: "share report",
		Nodes: []*plan.Node{
			{ID: "lookup", Action: "contact.lookup", Params: action.Params{"name": "dana"}},
			{ID: "upload", Action: "file.upload", DependsOn: []string{"lookup"}},
			{ID: "notify", Action: "mail.send", DependsOn: []string{"upload"}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if g.ID.IsNil() {
		t.Error("graph has nil plan ID")
	}
	if g.CreatedAt.IsZero() {
		t.Error("graph has zero CreatedAt")
	}
	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}
	for i, want := range []string{"lookup", "upload", "notify"} {
		if g.Nodes[i].ID != want {
			t.Errorf("Nodes[%d].ID = %q, want %q", i, g.Nodes[i].ID, want)
		}
	}
	if n, ok := g.Node("upload"); !ok || n.DependsOn[0] != "lookup" {
		t.Errorf("Node(upload) = %+v, ok=%v", n, ok)
	}
}

func TestBuildDropsUnknownActions(t *testing.T) {
	b := newTestBuilder(t)

	g, err := b.Build(&plan.Proposal{
		Name: "mixed",
		Nodes: []*plan.Node{
			{ID: "a", Action: "contact.lookup"},
			{ID: "b", Action: "quantum.entangle"},
			{ID: "c", Action: "mail.send", DependsOn: []string{"a", "b"}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}
	c, _ := g.Node("c")
	if len(c.DependsOn) != 1 || c.DependsOn[0] != "a" {
		t.Errorf("dangling dependency not pruned: %v", c.DependsOn)
	}
}

func TestBuildEmptyProposal(t *testing.T) {
	b := newTestBuilder(t)

	if _, err := b.Build(nil); !errors.Is(err, baton.ErrEmptyProposal) {
		t.Errorf("Build(nil) error = %v, want ErrEmptyProposal", err)
	}
	if _, err := b.Build(&plan.Proposal{Name: "hollow"}); !errors.Is(err, baton.ErrEmptyProposal) {
		t.Errorf("Build(no nodes) error = %v, want ErrEmptyProposal", err)
	}
}

func TestBuildNothingSurvives(t *testing.T) {
	b := newTestBuilder(t)

	_, err := b.Build(&plan.Proposal{
		Name: "fantasy",
		Nodes: []*plan.Node{
			{ID: "a", Action: "teleport.user"},
			{ID: "b", Action: "summon.coffee"},
		},
	})
	if !errors.Is(err, baton.ErrEmptyPlan) {
		t.Errorf("Build error = %v, want ErrEmptyPlan", err)
	}
}

func TestBuildSynthesizesMissingIDs(t *testing.T) {
	b := newTestBuilder(t)

	g, err := b.Build(&plan.Proposal{
		Name: "anonymous",
		Nodes: []*plan.Node{
			{Action: "mail.send"},
			{Action: "file.upload"},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Nodes[0].ID != "step-1" || g.Nodes[1].ID != "step-2" {
		t.Errorf("synthesized IDs = %q, %q", g.Nodes[0].ID, g.Nodes[1].ID)
	}
}

func TestBuildDropsDuplicateIDs(t *testing.T) {
	b := newTestBuilder(t)

	g, err := b.Build(&plan.Proposal{
		Name: "echo",
		Nodes: []*plan.Node{
			{ID: "send", Action: "mail.send", Params: action.Params{"n": 1}},
			{ID: "send", Action: "mail.send", Params: action.Params{"n": 2}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}
	if g.Nodes[0].Params["n"] != 1 {
		t.Errorf("kept the wrong duplicate: %v", g.Nodes[0].Params)
	}
}

func TestBuildCycleLinearizes(t *testing.T) {
	b := newTestBuilder(t)

	g, err := b.Build(&plan.Proposal{
		Name: "ouroboros",
		Nodes: []*plan.Node{
			{ID: "a", Action: "mail.send", DependsOn: []string{"b"}, ParallelGroup: "g1"},
			{ID: "b", Action: "file.upload", DependsOn: []string{"a"}, ParallelGroup: "g1"},
			{ID: "c", Action: "contact.lookup", DependsOn: []string{"b"}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(g.Nodes[0].DependsOn) != 0 {
		t.Errorf("first node DependsOn = %v, want none", g.Nodes[0].DependsOn)
	}
	for i := 1; i < g.Len(); i++ {
		deps := g.Nodes[i].DependsOn
		if len(deps) != 1 || deps[0] != g.Nodes[i-1].ID {
			t.Errorf("Nodes[%d].DependsOn = %v, want [%s]", i, deps, g.Nodes[i-1].ID)
		}
	}
	for _, n := range g.Nodes {
		if n.ParallelGroup != "" {
			t.Errorf("node %s kept parallel group %q after linearization", n.ID, n.ParallelGroup)
		}
	}
	if g.ParallelGroups != nil {
		t.Errorf("ParallelGroups = %v, want nil", g.ParallelGroups)
	}
}

func TestBuildTransitiveCycleLinearizes(t *testing.T) {
	b := newTestBuilder(t)

	g, err := b.Build(&plan.Proposal{
		Name: "ring",
		Nodes: []*plan.Node{
			{ID: "a", Action: "mail.send", DependsOn: []string{"c"}},
			{ID: "b", Action: "file.upload", DependsOn: []string{"a"}},
			{ID: "c", Action: "contact.lookup", DependsOn: []string{"b"}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Nodes[0].DependsOn) != 0 || g.Nodes[2].DependsOn[0] != "b" {
		t.Errorf("transitive cycle not linearized: %+v", g.Nodes)
	}
}

func TestBuildSelfDependencyLinearizes(t *testing.T) {
	b := newTestBuilder(t)

	g, err := b.Build(&plan.Proposal{
		Name: "navel",
		Nodes: []*plan.Node{
			{ID: "a", Action: "mail.send", DependsOn: []string{"a"}},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Nodes[0].DependsOn) != 0 {
		t.Errorf("self-dependency survived: %v", g.Nodes[0].DependsOn)
	}
}

func TestBuildEstimatesDuration(t *testing.T) {
	b := newTestBuilder(t)

	g, err := b.Build(&plan.Proposal{
		Name: "timed",
		Nodes: []*plan.Node{
			{ID: "a", Action: "contact.lookup", EstimatedDuration: 10 * time.Second},
			{ID: "b", Action: "file.upload", EstimatedDuration: 20 * time.Second, ParallelGroup: "uploads"},
			{ID: "c", Action: "file.upload", EstimatedDuration: 30 * time.Second, ParallelGroup: "uploads"},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := 40 * time.Second; g.EstimatedDuration != want {
		t.Errorf("EstimatedDuration = %v, want %v", g.EstimatedDuration, want)
	}
	if got := g.ParallelGroups["uploads"]; len(got) != 2 {
		t.Errorf("ParallelGroups[uploads] = %v", got)
	}
}

func TestBuildDurationFallsBackToActionEstimate(t *testing.T) {
	b := newTestBuilder(t)

	g, err := b.Build(&plan.Proposal{
		Name:  "untimed",
		Nodes: []*plan.Node{{ID: "a", Action: "mail.send"}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if want := time.Minute; g.EstimatedDuration != want {
		t.Errorf("EstimatedDuration = %v, want action default %v", g.EstimatedDuration, want)
	}
}

func TestBuildCopiesProposalNodes(t *testing.T) {
	b := newTestBuilder(t)

	raw := &plan.Node{ID: "a", Action: "mail.send", Params: action.Params{"to": "x"}}
	proposal := &plan.Proposal{Name: "aliasing", Nodes: []*plan.Node{raw}}

	g, err := b.Build(proposal)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	raw.Params["to"] = "mutated"
	raw.DependsOn = append(raw.DependsOn, "ghost")

	built, _ := g.Node("a")
	if built.Params["to"] != "x" {
		t.Error("graph node params alias the proposal")
	}
	if len(built.DependsOn) != 0 {
		t.Error("graph node dependencies alias the proposal")
	}
}
