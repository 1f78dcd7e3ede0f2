package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/plan"
)

// step runs one node through the executor with retries. It returns nil on
// success and a *StepError once every attempt is spent; the caller halts
// the run on a non-nil return.
func (r *Runner) step(ctx context.Context, h *handle, node *plan.Node) error {
	run := h.run

	h.mu.Lock()
	st := run.StepStates[node.ID]
	st.Status = StepRunning
	params := substitute(node.Params, run.Context)
	h.mu.Unlock()

	def, err := r.registry.Definition(node.Action)
	if err != nil {
		// The builder validated this action; losing it mid-run means the
		// registry changed under us. No retry will fix that.
		return r.exhaust(ctx, h, node, 1, time.Duration(0), err)
	}

	retries := def.Opts.MaxRetries
	if retries < 0 {
		retries = r.defaultRetries
	}
	timeout := r.stepTimeout(def, node)

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= retries+1; attempt++ {
		h.mu.Lock()
		st.Attempts = attempt
		h.mu.Unlock()

		res, err := r.attempt(ctx, run, node, params, attempt, timeout)
		if err == nil && res.Succeeded() {
			elapsed := time.Since(start)
			h.mu.Lock()
			st.Status = StepCompleted
			st.Error = ""
			st.Elapsed = elapsed
			run.CompletedSteps++
			run.StepResults = append(run.StepResults, StepResult{
				StepID:  node.ID,
				Action:  node.Action,
				Status:  StepCompleted,
				Result:  res,
				Elapsed: elapsed,
			})
			mergeContext(run, node, res)
			h.mu.Unlock()

			r.logger.Info("workflow: step completed",
				slog.String("run_id", run.ID.String()),
				slog.String("step", node.ID),
				slog.String("action", node.Action),
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", elapsed))
			r.emitter.EmitStepCompleted(ctx, run, node.ID, elapsed)
			return nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = resultError(res)
		}
		h.mu.Lock()
		st.Error = lastErr.Error()
		h.mu.Unlock()

		if attempt > retries {
			break
		}

		delay := r.strategy.Delay(attempt)
		r.logger.Warn("workflow: step failed, retrying",
			slog.String("run_id", run.ID.String()),
			slog.String("step", node.ID),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", lastErr.Error()))
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(delay):
			continue
		}
		break
	}

	return r.exhaust(ctx, h, node, st.Attempts, time.Since(start), lastErr)
}

// exhaust records a terminal step failure and builds the halting StepError.
func (r *Runner) exhaust(ctx context.Context, h *handle, node *plan.Node, attempts int, elapsed time.Duration, cause error) error {
	run := h.run
	stepErr := &StepError{
		StepID:   node.ID,
		Action:   node.Action,
		Attempts: attempts,
		Err:      fmt.Errorf("%w: %w", baton.ErrRetriesExhausted, cause),
	}

	h.mu.Lock()
	st := run.StepStates[node.ID]
	st.Status = StepFailed
	st.Attempts = attempts
	st.Error = cause.Error()
	st.Elapsed = elapsed
	run.FailedSteps++
	run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", node.ID, cause))
	run.StepResults = append(run.StepResults, StepResult{
		StepID:  node.ID,
		Action:  node.Action,
		Status:  StepFailed,
		Error:   cause.Error(),
		Elapsed: elapsed,
	})
	h.mu.Unlock()

	r.logger.Error("workflow: step failed terminally",
		slog.String("run_id", run.ID.String()),
		slog.String("step", node.ID),
		slog.String("action", node.Action),
		slog.Int("attempts", attempts),
		slog.String("error", cause.Error()))
	r.emitter.EmitStepFailed(ctx, run, node.ID, stepErr)
	return stepErr
}

// attempt executes one invocation bounded by the step timeout. The action
// runs in its own goroutine so a handler that ignores its context cannot
// stall the run past the deadline.
func (r *Runner) attempt(ctx context.Context, run *Run, node *plan.Node, params action.Params, attempt int, timeout time.Duration) (*action.Result, error) {
	inv := &action.Invocation{
		RunID:   run.ID,
		StepID:  node.ID,
		Name:    node.Action,
		Params:  params,
		Caller:  run.Caller,
		Attempt: attempt,
		Timeout: timeout,
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *action.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.exec(attemptCtx, inv)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("baton/workflow: step %s after %v: %w", node.ID, timeout, baton.ErrStepTimeout)
		}
		return out.res, out.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("baton/workflow: step %s after %v: %w", node.ID, timeout, baton.ErrStepTimeout)
		}
		return nil, attemptCtx.Err()
	}
}

// stepTimeout derives a node's attempt bound: the action's explicit
// timeout, or its duration estimate plus the runner's buffer.
func (r *Runner) stepTimeout(def *action.Definition, node *plan.Node) time.Duration {
	if def.Opts.Timeout > 0 {
		return def.Opts.Timeout
	}
	est := node.EstimatedDuration
	if est <= 0 {
		est = def.Opts.EstimatedDuration
	}
	if est <= 0 {
		est = time.Minute
	}
	return est + r.stepBuffer
}

// resultError converts an error-status result into an error for retry
// accounting.
func resultError(res *action.Result) error {
	if res == nil {
		return errors.New("action returned no result")
	}
	msg := res.Message
	if msg == "" {
		msg = "action failed"
	}
	if res.Error != "" {
		return fmt.Errorf("%s: %s", res.Error, msg)
	}
	return errors.New(msg)
}

// mergeContext folds a completed step's output into the run context: the
// full payload under "<step>_result", plus promoted identifiers that later
// steps conventionally reference. File-producing actions promote
// last_file_id/last_file_url, contact-producing actions last_contact_id.
// Callers hold the handle mutex.
func mergeContext(run *Run, node *plan.Node, res *action.Result) {
	if run.Context == nil {
		run.Context = make(map[string]any)
	}
	run.Context[node.ID+"_result"] = res.Data
	if res.Data == nil {
		return
	}

	rid, ok := res.Data["id"]
	if !ok {
		return
	}
	switch {
	case strings.HasPrefix(node.Action, "file.") || strings.HasPrefix(node.Action, "drive."):
		run.Context["last_file_id"] = rid
		if url, ok := res.Data["web_url"].(string); ok && url != "" {
			run.Context["last_file_url"] = url
		}
	case strings.HasPrefix(node.Action, "contact."):
		run.Context["last_contact_id"] = rid
	}
}
