package middleware

import (
	"context"
	"time"

	"github.com/batonhq/baton/action"
	"github.com/batonhq/baton/audit"
)

// Audit returns middleware that writes a redacted record of every
// invocation to the audit trail. Recording is best-effort: trail failures
// never affect the invocation's outcome.
func Audit(rec *audit.Recorder) Middleware {
	return func(ctx context.Context, inv *action.Invocation, next Handler) (*action.Result, error) {
		start := time.Now()
		res, err := next(ctx, inv)

		r := &audit.Record{
			Action:  inv.Name,
			StepID:  inv.StepID,
			Params:  inv.Params,
			Elapsed: time.Since(start),
		}
		if !inv.RunID.IsNil() {
			r.RunID = inv.RunID.String()
		}
		if inv.Caller != nil {
			r.UserID = inv.Caller.UserID
		}
		switch {
		case err != nil:
			r.Outcome = audit.OutcomeError
			r.Reason = err.Error()
		case res != nil && !res.Succeeded():
			r.Outcome = audit.OutcomeError
			r.Severity = audit.SeverityWarning
			r.Reason = res.Error
		default:
			r.Outcome = audit.OutcomeSuccess
		}
		rec.Record(ctx, r)

		return res, err
	}
}

// Offload returns middleware that hands oversized responses to the
// offloader, replacing them with a reference envelope. It sits inside
// Audit in the standard chain so audit records see the compact envelope
// rather than the raw payload.
func Offload(off *audit.Offloader) Middleware {
	return func(ctx context.Context, inv *action.Invocation, next Handler) (*action.Result, error) {
		res, err := next(ctx, inv)
		if err != nil {
			return res, err
		}
		return off.Offload(ctx, inv, res), nil
	}
}
