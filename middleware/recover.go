package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/batonhq/baton/action"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *action.Invocation, next Handler) (res *action.Result, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("action handler panicked",
					slog.String("action", inv.Name),
					slog.String("run_id", inv.RunID.String()),
					slog.String("step_id", inv.StepID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				res = nil
				retErr = fmt.Errorf("panic in action %s: %v", inv.Name, r)
			}
		}()
		return next(ctx, inv)
	}
}
