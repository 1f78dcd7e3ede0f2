package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/batonhq/baton/action"
)

// tracerName is the instrumentation scope name for baton tracing.
const tracerName = "github.com/batonhq/baton"

// Tracing returns middleware that wraps action execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: baton.action, baton.run_id, baton.step_id,
// baton.attempt, baton.user_id. On error, the span status is set to
// codes.Error with the error message; an error-status result sets the same.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, inv *action.Invocation, next Handler) (*action.Result, error) {
		userID := ""
		if inv.Caller != nil {
			userID = inv.Caller.UserID
		}
		ctx, span := tracer.Start(ctx, "baton.action.execute",
			trace.WithAttributes(
				attribute.String("baton.action", inv.Name),
				attribute.String("baton.run_id", inv.RunID.String()),
				attribute.String("baton.step_id", inv.StepID),
				attribute.Int("baton.attempt", inv.Attempt),
				attribute.String("baton.user_id", userID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		res, err := next(ctx, inv)
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res != nil && !res.Succeeded():
			span.SetStatus(codes.Error, res.Error)
		default:
			span.SetStatus(codes.Ok, "")
		}

		return res, err
	}
}
