package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/audit"
	"github.com/batonhq/baton/backoff"
	"github.com/batonhq/baton/event"
	"github.com/batonhq/baton/hook"
	"github.com/batonhq/baton/id"
	"github.com/batonhq/baton/learn"
	mw "github.com/batonhq/baton/middleware"
	"github.com/batonhq/baton/plan"
	"github.com/batonhq/baton/schedule"
	"github.com/batonhq/baton/state"
	"github.com/batonhq/baton/workflow"
)

// Request asks the engine to plan, and in execution mode run, a
// natural-language prompt.
type Request struct {
	Prompt    string
	UserID    string
	SessionID string
	Context   map[string]any

	// Mode defaults to workflow.ModeExecution. In suggestion mode the
	// validated plan is returned without starting a run.
	Mode workflow.Mode

	// Detached launches the run asynchronously; the returned Outcome
	// carries the run's initial snapshot instead of its final state.
	Detached bool
}

// Outcome is the product of one Orchestrate call: the validated plan, the
// learned hints that shaped it, and (in execution mode) the run.
type Outcome struct {
	Plan  *plan.Graph   `json:"plan"`
	Run   *workflow.Run `json:"run,omitempty"`
	Hints []string      `json:"hints,omitempty"`
}

// Correction reports that a user corrected a prior orchestration: the
// prompt that was misread and the actions that should have run.
type Correction struct {
	RunID           id.RunID
	UserID          string
	Prompt          string
	Actions         []string
	OriginalActions []string
}

// Engine wires every subsystem together and is the application-facing
// surface: register actions, orchestrate prompts, inspect runs.
type Engine struct {
	cfg    baton.Config
	logger *slog.Logger

	store     *state.Store
	bus       *event.Bus
	hooks     *hook.Registry
	registry  *action.Registry
	builder   *plan.Builder
	runner    *workflow.Runner
	recorder  *audit.Recorder
	offloader *audit.Offloader
	learner   *learn.Learner
	scheduler *schedule.Scheduler

	exec mw.Handler

	// Construction-time collaborators, set by options.
	backend    state.Backend
	broker     event.Broker
	proposer   plan.Proposer
	blobs      audit.BlobStore
	bo         backoff.Strategy
	mws        []mw.Middleware
	exts       []hook.Extension
	redactKeys []string

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// advice maps detached runs to the patterns whose hints shaped their
	// plans, so terminal events can feed real outcomes back to them.
	adviceMu sync.Mutex
	advice   map[id.RunID][]id.PatternID

	started  atomic.Bool
	draining atomic.Bool

	// flight collapses concurrent identical cacheable calls into one
	// execution while the result cache is still cold.
	flight    singleflight.Group
	cacheHits atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger handed to every subsystem.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(eng *Engine) {
		if logger != nil {
			eng.logger = logger
		}
	}
}

// WithStateBackend sets the state store backend. Without one the engine
// runs with persistence degraded to no-ops.
func WithStateBackend(b state.Backend) Option {
	return func(eng *Engine) { eng.backend = b }
}

// WithBroker sets the event bus broker. Without one events are retained
// in history but never delivered to subscribers.
func WithBroker(b event.Broker) Option {
	return func(eng *Engine) { eng.broker = b }
}

// WithProposer sets the planning collaborator Orchestrate consults.
func WithProposer(p plan.Proposer) Option {
	return func(eng *Engine) { eng.proposer = p }
}

// WithBlobStore sets the destination for oversized action results.
// Without one results stay inline regardless of size.
func WithBlobStore(b audit.BlobStore) Option {
	return func(eng *Engine) { eng.blobs = b }
}

// WithExtension registers an extension after the engine's own
// (event bridge, audit trail, learning intake).
func WithExtension(e hook.Extension) Option {
	return func(eng *Engine) { eng.exts = append(eng.exts, e) }
}

// WithMiddleware appends middleware inside the default chain, closest to
// the action.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithBackoff sets the retry backoff strategy.
// Defaults to backoff.DefaultStrategy().
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware. If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// WithRedactKeys adds parameter names to redact on top of
// audit.DefaultRedactKeys.
func WithRedactKeys(keys ...string) Option {
	return func(eng *Engine) { eng.redactKeys = append(eng.redactKeys, keys...) }
}

// New creates an Engine. Construction never fails: missing collaborators
// degrade the subsystems that need them instead of blocking the rest.
func New(cfg baton.Config, opts ...Option) *Engine {
	eng := &Engine{
		cfg:    normalize(cfg),
		logger: slog.Default(),
		advice: make(map[id.RunID][]id.PatternID),
	}
	for _, opt := range opts {
		opt(eng)
	}
	cfg = eng.cfg

	eng.store = state.New(eng.backend,
		state.WithLogger(eng.logger),
		state.WithTTLs(state.TTLs{
			Session:         cfg.SessionTTL,
			RetainedSession: cfg.RetainedSessionTTL,
			Resource:        cfg.ResourceTTL,
			UserContext:     cfg.UserContextTTL,
			Cache:           cfg.CacheTTL,
		}),
	)
	eng.bus = event.NewBus(eng.broker,
		event.WithLogger(eng.logger),
		event.WithHistorySize(cfg.EventHistory),
	)
	eng.hooks = hook.NewRegistry(eng.logger)
	eng.registry = action.NewRegistry()
	eng.builder = plan.NewBuilder(eng.registry, plan.WithLogger(eng.logger))

	redactKeys := append(append([]string{}, audit.DefaultRedactKeys...), eng.redactKeys...)
	eng.recorder = audit.NewRecorder(eng.store,
		audit.WithBus(eng.bus),
		audit.WithRedactor(audit.NewRedactor(redactKeys...)),
		audit.WithLogger(eng.logger),
		audit.WithTTL(cfg.AuditTTL),
	)
	eng.offloader = audit.NewOffloader(eng.blobs,
		audit.WithThreshold(cfg.OffloadThreshold),
		audit.WithOffloadBus(eng.bus),
		audit.WithOffloadLogger(eng.logger),
	)
	eng.learner = learn.New(eng.store,
		learn.WithBus(eng.bus),
		learn.WithLogger(eng.logger),
		learn.WithTTL(cfg.PatternTTL),
	)

	// Engine extensions fire in registration order; user extensions follow.
	intake := learn.NewIntake(eng.learner)
	eng.hooks.Register(event.NewBridge(eng.bus))
	eng.hooks.Register(audit.NewTrail(eng.recorder))
	eng.hooks.Register(intake)
	for _, e := range eng.exts {
		eng.hooks.Register(e)
	}

	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/batonhq/baton"))
	} else {
		tracingMw = mw.Tracing()
	}
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/batonhq/baton"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Offload sits inside Audit so audit records see the compact
	// envelope; Timeout is innermost so every outer layer observes the
	// deadline result.
	chain := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Audit(eng.recorder),
		mw.Offload(eng.offloader),
		mw.Timeout(eng.logger),
	}
	chain = append(chain, eng.mws...)
	eng.exec = mw.Apply(mw.Chain(chain...), eng.registry.Invoke)

	eng.runner = workflow.NewRunner(eng.registry, eng.store,
		workflow.WithExecutor(workflow.Executor(eng.exec)),
		workflow.WithEmitter(eng.hooks),
		workflow.WithBackoff(eng.bo),
		workflow.WithLogger(eng.logger),
		workflow.WithMaxConcurrent(cfg.MaxConcurrentRuns),
		workflow.WithDefaultRetries(cfg.DefaultMaxRetries),
		workflow.WithStepBuffer(cfg.StepTimeoutBuffer),
	)

	eng.scheduler = schedule.NewScheduler(eng.store, eng.scheduledRun,
		schedule.WithEmitter(eng.hooks),
		schedule.WithLogger(eng.logger),
	)

	eng.bus.Subscribe(event.ResourceCreated, eng.onResourceCreated)
	eng.bus.Subscribe(event.WorkflowCompleted, eng.onRunSettled)
	eng.bus.Subscribe(event.WorkflowFailed, eng.onRunSettled)
	eng.bus.Subscribe(event.WorkflowCancelled, eng.onRunSettled)
	intake.SubscribeCorrections(eng.bus)

	return eng
}

// normalize fills zero config fields with their defaults so a partial
// Config stays usable.
func normalize(cfg baton.Config) baton.Config {
	def := baton.DefaultConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.RetainedSessionTTL <= 0 {
		cfg.RetainedSessionTTL = def.RetainedSessionTTL
	}
	if cfg.ResourceTTL <= 0 {
		cfg.ResourceTTL = def.ResourceTTL
	}
	if cfg.UserContextTTL <= 0 {
		cfg.UserContextTTL = def.UserContextTTL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.AuditTTL <= 0 {
		cfg.AuditTTL = def.AuditTTL
	}
	if cfg.PatternTTL <= 0 {
		cfg.PatternTTL = def.PatternTTL
	}
	if cfg.StepTimeoutBuffer <= 0 {
		cfg.StepTimeoutBuffer = def.StepTimeoutBuffer
	}
	if cfg.DefaultMaxRetries < 0 {
		cfg.DefaultMaxRetries = def.DefaultMaxRetries
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = def.MaxConcurrentRuns
	}
	if cfg.OffloadThreshold <= 0 {
		cfg.OffloadThreshold = def.OffloadThreshold
	}
	if cfg.EventHistory <= 0 {
		cfg.EventHistory = def.EventHistory
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return cfg
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start brings the engine online: event delivery and schedule firing.
// Actions can be registered and executed before Start; only subscriptions
// and schedules wait for it.
func (eng *Engine) Start(ctx context.Context) {
	if !eng.started.CompareAndSwap(false, true) {
		return
	}
	eng.draining.Store(false)
	eng.bus.Start(ctx)
	eng.scheduler.Start(ctx)
	eng.logger.Info("baton engine started",
		slog.Int("actions", eng.registry.Len()),
		slog.Int("max_concurrent_runs", eng.cfg.MaxConcurrentRuns),
	)
}

// Stop drains the engine: new work is refused immediately, in-flight runs
// get up to ShutdownTimeout to finish, then shutdown hooks fire and event
// delivery stops. The state backend is not closed; its opener owns it.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.draining.Store(true)
	if !eng.started.CompareAndSwap(true, false) {
		return nil
	}
	eng.scheduler.Stop()

	deadline := time.Now().Add(eng.cfg.ShutdownTimeout)
	for eng.runner.Active() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			eng.hooks.EmitShutdown(ctx)
			eng.bus.Stop()
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	if active := eng.runner.Active(); active > 0 {
		eng.logger.Warn("shutdown timeout with runs still active",
			slog.Int("active", active))
	}

	eng.hooks.EmitShutdown(ctx)
	eng.bus.Stop()
	eng.logger.Info("baton engine stopped")
	return nil
}

// ──────────────────────────────────────────────────
// Boundary operations
// ──────────────────────────────────────────────────

// Register adds action definitions to the engine's registry.
func (eng *Engine) Register(defs ...*action.Definition) error {
	for _, def := range defs {
		if err := eng.registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteAction runs a single registered action through the full
// middleware chain. Cacheable actions are memoized by parameter
// fingerprint: a hit skips execution entirely.
func (eng *Engine) ExecuteAction(ctx context.Context, name string, params action.Params, caller *action.Caller) (*action.Result, error) {
	if eng.draining.Load() {
		return nil, baton.ErrEngineStopped
	}
	def, err := eng.registry.Definition(name)
	if err != nil {
		return nil, err
	}

	if def.Opts.Cacheable {
		var cached action.Result
		if eng.store.CachedResult(ctx, name, params, &cached) {
			eng.cacheHits.Add(1)
			eng.logger.Debug("action served from cache", slog.String("action", name))
			return &cached, nil
		}
		// Cache is cold: concurrent identical calls share one execution.
		key := state.CacheKey(name, state.Fingerprint(params))
		v, err, _ := eng.flight.Do(key, func() (any, error) {
			return eng.invoke(ctx, def, name, params, caller)
		})
		if err != nil {
			return nil, err
		}
		return v.(*action.Result), nil
	}

	return eng.invoke(ctx, def, name, params, caller)
}

func (eng *Engine) invoke(ctx context.Context, def *action.Definition, name string, params action.Params, caller *action.Caller) (*action.Result, error) {
	inv := &action.Invocation{
		Name:    name,
		Params:  params,
		Caller:  caller,
		Attempt: 1,
		Timeout: eng.actionTimeout(def),
	}
	res, err := eng.exec(ctx, inv)
	if err != nil {
		eng.emitAction(ctx, event.ActionFailed, caller, map[string]any{
			"action": name,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("baton/engine: execute %s: %w", name, err)
	}
	if !res.Succeeded() {
		eng.emitAction(ctx, event.ActionFailed, caller, map[string]any{
			"action": name,
			"error":  res.Error,
			"code":   res.Code,
		})
		return res, nil
	}

	if def.Opts.Cacheable {
		eng.store.CacheResult(ctx, name, params, res, def.Opts.CacheTTL)
	}
	eng.emitAction(ctx, event.ActionExecuted, caller, map[string]any{"action": name})
	return res, nil
}

// actionTimeout derives the single-action bound the way the runner does
// for plan steps.
func (eng *Engine) actionTimeout(def *action.Definition) time.Duration {
	if def.Opts.Timeout > 0 {
		return def.Opts.Timeout
	}
	return def.Opts.EstimatedDuration + eng.cfg.StepTimeoutBuffer
}

func (eng *Engine) emitAction(ctx context.Context, name string, caller *action.Caller, data map[string]any) {
	var opts []event.EmitOption
	if caller != nil && caller.UserID != "" {
		opts = append(opts, event.WithUser(caller.UserID))
	}
	eng.bus.Emit(ctx, name, "engine", data, opts...)
}

// Orchestrate turns a prompt into a validated plan and, in execution
// mode, a run. Step-level failures do not surface as the returned error;
// they live on Run.Status and Run.Errors. The error reports boundary
// failures: no proposer, the proposer refusing, or an unusable plan.
func (eng *Engine) Orchestrate(ctx context.Context, req Request) (*Outcome, error) {
	if eng.draining.Load() {
		return nil, baton.ErrEngineStopped
	}
	if eng.proposer == nil {
		return nil, baton.ErrNoProposer
	}
	mode := req.Mode
	if mode == "" {
		mode = workflow.ModeExecution
	}

	matches := eng.learner.Match(ctx, req.Prompt)
	hints := learn.Hints(matches)

	proposal, err := eng.proposer.Propose(ctx, &plan.Request{
		Prompt:    req.Prompt,
		UserID:    req.UserID,
		Context:   req.Context,
		Available: eng.registry.Names(),
		Hints:     hints,
	})
	if err != nil {
		return nil, fmt.Errorf("baton/engine: propose: %w", err)
	}
	graph, err := eng.builder.Build(proposal)
	if err != nil {
		return nil, err
	}

	if mode == workflow.ModeSuggestion {
		return &Outcome{Plan: graph, Hints: hints}, nil
	}

	caller := &action.Caller{UserID: req.UserID, SessionID: req.SessionID}
	if req.Detached {
		run, err := eng.runner.Start(ctx, graph, caller, workflow.WithPrompt(req.Prompt))
		if err != nil {
			return nil, err
		}
		eng.noteAdvice(ctx, run.ID, matches)
		return &Outcome{Plan: graph, Run: run, Hints: hints}, nil
	}

	run, err := eng.runner.Execute(ctx, graph, caller, workflow.WithPrompt(req.Prompt))
	if run == nil {
		return nil, err
	}
	eng.reinforcePatterns(ctx, patternIDs(matches), run.Status)
	return &Outcome{Plan: graph, Run: run, Hints: hints}, nil
}

// scheduledRun is the OrchestrateFunc the scheduler fires entries through.
func (eng *Engine) scheduledRun(ctx context.Context, req schedule.Request) (id.RunID, error) {
	out, err := eng.Orchestrate(ctx, Request{
		Prompt:   req.Prompt,
		UserID:   req.UserID,
		Context:  req.Context,
		Detached: true,
	})
	if err != nil {
		return id.ID{}, err
	}
	return out.Run.ID, nil
}

// Run returns a snapshot of one run, active or stored.
func (eng *Engine) Run(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	return eng.runner.Get(ctx, runID)
}

// Runs lists the known runs, active first.
func (eng *Engine) Runs(ctx context.Context) []*workflow.Run {
	return eng.runner.List(ctx)
}

// Cancel requests cancellation of an active run.
func (eng *Engine) Cancel(ctx context.Context, runID id.RunID) error {
	return eng.runner.Cancel(ctx, runID)
}

// RecentEvents returns the last n events published on the bus.
func (eng *Engine) RecentEvents(n int) []*event.Event {
	return eng.bus.Recent(n)
}

// Correct records a user's correction of a prior orchestration. The
// correction travels over the bus so the learning intake, and any other
// subscriber, can pick it up.
func (eng *Engine) Correct(ctx context.Context, c Correction) error {
	if c.Prompt == "" {
		return fmt.Errorf("baton/engine: correct: prompt is required")
	}
	data := map[string]any{
		"prompt":  c.Prompt,
		"actions": c.Actions,
	}
	if len(c.OriginalActions) > 0 {
		data["original_actions"] = c.OriginalActions
	}
	var opts []event.EmitOption
	if c.UserID != "" {
		opts = append(opts, event.WithUser(c.UserID))
	}
	if !c.RunID.IsNil() {
		opts = append(opts, event.WithCorrelation(c.RunID.String()))
	}
	if !eng.bus.Emit(ctx, event.UserCorrection, "engine", data, opts...) {
		return fmt.Errorf("baton/engine: correct: event bus degraded, correction dropped")
	}
	return nil
}

// ──────────────────────────────────────────────────
// Learned-pattern reinforcement
// ──────────────────────────────────────────────────

func patternIDs(matches []learn.Match) []id.PatternID {
	if len(matches) == 0 {
		return nil
	}
	ids := make([]id.PatternID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Pattern.ID)
	}
	return ids
}

// noteAdvice remembers which patterns advised a detached run. If the run
// beat the bookkeeping to a terminal state, settle immediately.
func (eng *Engine) noteAdvice(ctx context.Context, runID id.RunID, matches []learn.Match) {
	ids := patternIDs(matches)
	if len(ids) == 0 {
		return
	}
	eng.adviceMu.Lock()
	eng.advice[runID] = ids
	eng.adviceMu.Unlock()

	if run, err := eng.runner.Get(ctx, runID); err == nil && run.Status.Terminal() {
		eng.settleAdvice(ctx, runID, run.Status)
	}
}

// settleAdvice pops a run's advice and rolls the outcome into each
// advising pattern. Cancellation says nothing about the plan, so it only
// clears the bookkeeping.
func (eng *Engine) settleAdvice(ctx context.Context, runID id.RunID, status workflow.Status) {
	eng.adviceMu.Lock()
	ids := eng.advice[runID]
	delete(eng.advice, runID)
	eng.adviceMu.Unlock()
	eng.reinforcePatterns(ctx, ids, status)
}

func (eng *Engine) reinforcePatterns(ctx context.Context, ids []id.PatternID, status workflow.Status) {
	if status != workflow.StatusCompleted && status != workflow.StatusFailed {
		return
	}
	succeeded := status == workflow.StatusCompleted
	for _, pid := range ids {
		if err := eng.learner.Reinforce(ctx, pid, succeeded); err != nil {
			eng.logger.Warn("pattern reinforcement failed",
				slog.String("pattern_id", pid.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (eng *Engine) onRunSettled(ctx context.Context, evt *event.Event) error {
	runID, err := id.ParseRunID(evt.CorrelationID)
	if err != nil {
		return nil
	}
	var status workflow.Status
	switch evt.Name {
	case event.WorkflowCompleted:
		status = workflow.StatusCompleted
	case event.WorkflowFailed:
		status = workflow.StatusFailed
	default:
		status = workflow.StatusCancelled
	}
	eng.settleAdvice(ctx, runID, status)
	return nil
}

// ──────────────────────────────────────────────────
// Resource capture
// ──────────────────────────────────────────────────

// onResourceCreated indexes resources announced on the bus (offloaded
// files, integration artifacts) into the state store.
func (eng *Engine) onResourceCreated(ctx context.Context, evt *event.Event) error {
	rtype, _ := evt.Data["resource_type"].(string)
	rid, _ := evt.Data["resource_id"].(string)
	if rtype == "" || rid == "" {
		return fmt.Errorf("baton/engine: resource event %s carries no type or id", evt.ID)
	}
	meta := make(map[string]any, len(evt.Data))
	for k, v := range evt.Data {
		if k == "resource_type" || k == "resource_id" {
			continue
		}
		meta[k] = v
	}
	if evt.UserID != "" {
		meta["user_id"] = evt.UserID
	}
	eng.store.SaveResource(ctx, &state.Resource{Type: rtype, ID: rid, Metadata: meta})
	return nil
}

// ──────────────────────────────────────────────────
// Introspection
// ──────────────────────────────────────────────────

// Stats aggregates counters from every subsystem.
type Stats struct {
	Actions    int                `json:"actions"`
	ActiveRuns int                `json:"active_runs"`
	CacheHits  int64              `json:"cache_hits"`
	Bus        event.BusStats     `json:"bus"`
	State      state.Stats        `json:"state"`
	Audit      audit.Stats        `json:"audit"`
	Offload    audit.OffloadStats `json:"offload"`
	Learning   learn.Stats        `json:"learning"`
	Schedules  schedule.Stats     `json:"schedules"`
}

// Stats returns a point-in-time snapshot across subsystems.
func (eng *Engine) Stats(ctx context.Context) Stats {
	return Stats{
		Actions:    eng.registry.Len(),
		ActiveRuns: eng.runner.Active(),
		CacheHits:  eng.cacheHits.Load(),
		Bus:        eng.bus.Stats(),
		State:      eng.store.Stats(ctx),
		Audit:      eng.recorder.Stats(),
		Offload:    eng.offloader.Stats(),
		Learning:   eng.learner.Stats(),
		Schedules:  eng.scheduler.Stats(),
	}
}

// HealthReport aggregates subsystem availability; Status is the worst of
// the parts.
type HealthReport struct {
	Status baton.HealthStatus `json:"status"`
	State  baton.Health       `json:"state"`
	Bus    baton.Health       `json:"bus"`
}

// Health probes the state store and the event bus.
func (eng *Engine) Health(ctx context.Context) HealthReport {
	st := eng.store.Health(ctx)
	bu := eng.bus.Health(ctx)
	return HealthReport{
		Status: st.Status.Worst(bu.Status),
		State:  st,
		Bus:    bu,
	}
}

// Registry returns the action registry.
func (eng *Engine) Registry() *action.Registry { return eng.registry }

// Store returns the state store.
func (eng *Engine) Store() *state.Store { return eng.store }

// Bus returns the event bus.
func (eng *Engine) Bus() *event.Bus { return eng.bus }

// Runner returns the workflow runner.
func (eng *Engine) Runner() *workflow.Runner { return eng.runner }

// Learner returns the learning subsystem.
func (eng *Engine) Learner() *learn.Learner { return eng.learner }

// Scheduler returns the recurring-orchestration scheduler.
func (eng *Engine) Scheduler() *schedule.Scheduler { return eng.scheduler }

// Hooks returns the extension registry.
func (eng *Engine) Hooks() *hook.Registry { return eng.hooks }

// Recorder returns the audit recorder.
func (eng *Engine) Recorder() *audit.Recorder { return eng.recorder }
