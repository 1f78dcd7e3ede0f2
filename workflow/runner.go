package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/backoff"
	"github.com/batonhq/baton/id"
	"github.com/batonhq/baton/plan"
	"github.com/batonhq/baton/state"
)

// Executor runs one action invocation. The engine installs its middleware
// chain here; the default executor calls the registry directly.
type Executor func(ctx context.Context, inv *action.Invocation) (*action.Result, error)

// handle pairs a live run with its cancellation flag. The handle mutex
// guards every mutation of the run; reads from other goroutines go through
// snapshots taken under the same mutex.
type handle struct {
	mu        sync.Mutex
	run       *Run
	cancelled atomic.Bool
}

func (h *handle) snapshot() *Run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run.Snapshot()
}

// Runner executes plans with bounded concurrency.
type Runner struct {
	registry *action.Registry
	store    *state.Store
	exec     Executor
	emitter  Emitter
	strategy backoff.Strategy
	logger   *slog.Logger

	sem            chan struct{}
	defaultRetries int
	stepBuffer     time.Duration

	mu   sync.RWMutex
	runs map[id.RunID]*handle
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExecutor replaces the default executor. The engine uses this to route
// steps through the middleware chain.
func WithExecutor(exec Executor) RunnerOption {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithEmitter sets the lifecycle emitter.
func WithEmitter(e Emitter) RunnerOption {
	return func(r *Runner) {
		if e != nil {
			r.emitter = e
		}
	}
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(s backoff.Strategy) RunnerOption {
	return func(r *Runner) {
		if s != nil {
			r.strategy = s
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMaxConcurrent bounds how many runs execute at once.
func WithMaxConcurrent(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.sem = make(chan struct{}, n)
		}
	}
}

// WithDefaultRetries sets the retry count for actions that do not declare
// their own.
func WithDefaultRetries(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.defaultRetries = n
		}
	}
}

// WithStepBuffer sets the slack added to a node's estimated duration when
// deriving its timeout.
func WithStepBuffer(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.stepBuffer = d
		}
	}
}

// RunOption attaches optional metadata to a run at creation.
type RunOption func(*Run)

// WithPrompt records the natural-language request the plan was built from.
// Terminal feedback hands it to the learning subsystem as the pattern
// trigger source.
func WithPrompt(prompt string) RunOption {
	return func(r *Run) { r.Prompt = prompt }
}

// NewRunner creates a runner over the given registry. A nil store disables
// persistence but not execution.
func NewRunner(registry *action.Registry, store *state.Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry:       registry,
		store:          store,
		emitter:        NopEmitter{},
		strategy:       backoff.DefaultStrategy(),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		sem:            make(chan struct{}, 10),
		defaultRetries: 3,
		stepBuffer:     time.Minute,
		runs:           make(map[id.RunID]*handle),
	}
	r.exec = registry.Invoke
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs the plan to completion and returns the finished run. The
// returned error is the terminal StepError when the run failed; a cancelled
// or completed run returns a nil error.
func (r *Runner) Execute(ctx context.Context, g *plan.Graph, caller *action.Caller, opts ...RunOption) (*Run, error) {
	h, err := r.begin(ctx, g, caller, opts...)
	if err != nil {
		return nil, err
	}
	return r.drive(ctx, h, g)
}

// Start launches the plan asynchronously and returns the new run's initial
// snapshot. Like Execute, it blocks until a run slot is free.
func (r *Runner) Start(ctx context.Context, g *plan.Graph, caller *action.Caller, opts ...RunOption) (*Run, error) {
	h, err := r.begin(ctx, g, caller, opts...)
	if err != nil {
		return nil, err
	}
	snap := h.snapshot()
	// The caller's context may end with their request; the run keeps its
	// values but not its cancellation.
	bg := context.WithoutCancel(ctx)
	go r.drive(bg, h, g) //nolint:errcheck // outcome is recorded on the run
	return snap, nil
}

// Cancel requests cancellation of an active run. The run stops before its
// next step; the in-flight step finishes. Cancelling a finished run returns
// baton.ErrRunNotCancellable, an unknown one baton.ErrRunNotFound.
func (r *Runner) Cancel(ctx context.Context, runID id.RunID) error {
	r.mu.RLock()
	h, ok := r.runs[runID]
	r.mu.RUnlock()
	if ok {
		h.cancelled.Store(true)
		r.logger.Info("workflow: cancellation requested",
			slog.String("run_id", runID.String()))
		return nil
	}

	var stored Run
	if r.store != nil && r.store.LoadSession(ctx, runID.String(), &stored) {
		return fmt.Errorf("baton/workflow: run %s is %s: %w",
			runID, stored.Status, baton.ErrRunNotCancellable)
	}
	return fmt.Errorf("baton/workflow: run %s: %w", runID, baton.ErrRunNotFound)
}

// Get returns a snapshot of an active run, or the stored record of a
// finished one.
func (r *Runner) Get(ctx context.Context, runID id.RunID) (*Run, error) {
	r.mu.RLock()
	h, ok := r.runs[runID]
	r.mu.RUnlock()
	if ok {
		return h.snapshot(), nil
	}

	var stored Run
	if r.store != nil && r.store.LoadSession(ctx, runID.String(), &stored) {
		return &stored, nil
	}
	return nil, fmt.Errorf("baton/workflow: run %s: %w", runID, baton.ErrRunNotFound)
}

// List returns all known runs, newest first: active runs as snapshots plus
// whatever the store retains.
func (r *Runner) List(ctx context.Context) []*Run {
	seen := make(map[id.RunID]*Run)

	r.mu.RLock()
	for _, h := range r.runs {
		snap := h.snapshot()
		seen[snap.ID] = snap
	}
	r.mu.RUnlock()

	if r.store != nil {
		for _, sid := range r.store.SessionIDs(ctx) {
			rid, err := id.ParseRunID(sid)
			if err != nil {
				continue
			}
			if _, ok := seen[rid]; ok {
				continue
			}
			var stored Run
			if r.store.LoadSession(ctx, sid, &stored) {
				seen[rid] = &stored
			}
		}
	}

	runs := make([]*Run, 0, len(seen))
	for _, run := range seen {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

// Active returns the number of currently executing runs.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}

// begin reserves a run slot, materializes the run record, and registers it
// as active.
func (r *Runner) begin(ctx context.Context, g *plan.Graph, caller *action.Caller, opts ...RunOption) (*handle, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, baton.ErrEmptyPlan
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run := &Run{
		ID:         id.NewRunID(),
		PlanID:     g.ID,
		Name:       g.Name,
		Status:     StatusRunning,
		Mode:       ModeExecution,
		Caller:     caller,
		StartedAt:  time.Now().UTC(),
		TotalSteps: len(g.Nodes),
		StepStates: make(map[string]*StepState, len(g.Nodes)),
		Context:    make(map[string]any),
	}
	for _, opt := range opts {
		opt(run)
	}
	for _, n := range g.Nodes {
		run.StepStates[n.ID] = &StepState{Status: StepPending}
	}

	h := &handle{run: run}
	r.mu.Lock()
	r.runs[run.ID] = h
	r.mu.Unlock()
	return h, nil
}

// drive walks the plan's nodes until they are exhausted, a step fails
// terminally, or cancellation is observed.
func (r *Runner) drive(ctx context.Context, h *handle, g *plan.Graph) (*Run, error) {
	run := h.run
	defer func() {
		r.mu.Lock()
		delete(r.runs, run.ID)
		r.mu.Unlock()
		<-r.sem
	}()

	r.logger.Info("workflow: run started",
		slog.String("run_id", run.ID.String()),
		slog.String("plan", run.Name),
		slog.Int("steps", run.TotalSteps))
	r.emitter.EmitRunStarted(ctx, run)
	r.persist(ctx, h, false)

	var runErr error
	for _, node := range g.Nodes {
		if h.cancelled.Load() {
			h.mu.Lock()
			run.Status = StatusCancelled
			h.mu.Unlock()
			break
		}

		if unmet := unmetDependency(run, node); unmet != "" {
			reason := fmt.Sprintf("dependency %s did not complete", unmet)
			h.mu.Lock()
			st := run.StepStates[node.ID]
			st.Status = StepSkipped
			st.Error = reason
			run.SkippedSteps++
			run.StepResults = append(run.StepResults, StepResult{
				StepID: node.ID,
				Action: node.Action,
				Status: StepSkipped,
				Error:  reason,
			})
			h.mu.Unlock()
			r.logger.Warn("workflow: skipping step",
				slog.String("run_id", run.ID.String()),
				slog.String("step", node.ID),
				slog.String("reason", reason))
			r.emitter.EmitStepSkipped(ctx, run, node.ID, reason)
			r.persist(ctx, h, false)
			continue
		}

		stepErr := r.step(ctx, h, node)
		r.persist(ctx, h, false)
		if stepErr != nil {
			runErr = stepErr
			h.mu.Lock()
			run.Status = StatusFailed
			h.mu.Unlock()
			break
		}
	}

	h.mu.Lock()
	if run.Status == StatusRunning {
		run.Status = StatusCompleted
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	h.mu.Unlock()

	r.persist(ctx, h, true)

	switch run.Status {
	case StatusCompleted:
		r.logger.Info("workflow: run completed",
			slog.String("run_id", run.ID.String()),
			slog.Int("completed", run.CompletedSteps),
			slog.Int("skipped", run.SkippedSteps),
			slog.Duration("elapsed", run.Elapsed()))
		r.emitter.EmitRunCompleted(ctx, run, run.Elapsed())
	case StatusFailed:
		r.logger.Error("workflow: run failed",
			slog.String("run_id", run.ID.String()),
			slog.String("error", runErr.Error()))
		r.emitter.EmitRunFailed(ctx, run, runErr)
	case StatusCancelled:
		r.logger.Info("workflow: run cancelled",
			slog.String("run_id", run.ID.String()),
			slog.Int("completed", run.CompletedSteps))
		r.emitter.EmitRunCancelled(ctx, run)
	}
	return run, runErr
}

// persist writes the run's current snapshot to the state store. Terminal
// snapshots get the longer retained TTL.
func (r *Runner) persist(ctx context.Context, h *handle, terminal bool) {
	if r.store == nil {
		return
	}
	snap := h.snapshot()
	if terminal {
		r.store.RetainSession(ctx, snap.ID.String(), snap)
	} else {
		r.store.SaveSession(ctx, snap.ID.String(), snap)
	}
}

// unmetDependency returns the first dependency that has not completed.
func unmetDependency(run *Run, node *plan.Node) string {
	for _, dep := range node.DependsOn {
		st, ok := run.StepStates[dep]
		if !ok || st.Status != StepCompleted {
			return dep
		}
	}
	return ""
}
