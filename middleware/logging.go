package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/batonhq/baton/action"
)

// Logging returns middleware that logs action start and completion.
// Parameters are never logged here; the audit middleware records a
// redacted copy instead.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *action.Invocation, next Handler) (*action.Result, error) {
		logger.Info("action started",
			slog.String("action", inv.Name),
			slog.String("run_id", inv.RunID.String()),
			slog.String("step_id", inv.StepID),
			slog.Int("attempt", inv.Attempt),
		)

		start := time.Now()
		res, err := next(ctx, inv)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			logger.Error("action failed",
				slog.String("action", inv.Name),
				slog.String("run_id", inv.RunID.String()),
				slog.String("step_id", inv.StepID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		case res != nil && !res.Succeeded():
			logger.Warn("action returned error result",
				slog.String("action", inv.Name),
				slog.String("run_id", inv.RunID.String()),
				slog.String("step_id", inv.StepID),
				slog.Duration("elapsed", elapsed),
				slog.String("error_kind", res.Error),
				slog.Int("code", res.Code),
			)
		default:
			logger.Info("action completed",
				slog.String("action", inv.Name),
				slog.String("run_id", inv.RunID.String()),
				slog.String("step_id", inv.StepID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return res, err
	}
}
