package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/batonhq/baton/action"
)

// meterName is the instrumentation scope name for baton metrics.
const meterName = "github.com/batonhq/baton"

// Metrics returns middleware that records per-action execution metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - baton.action.duration (Float64Histogram): execution time in seconds,
//     with attributes: action, status ("ok" or "error")
//   - baton.action.executions (Int64Counter): total executions,
//     with attributes: action, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"baton.action.duration",
		metric.WithDescription("Duration of action execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"baton.action.executions",
		metric.WithDescription("Total number of action executions"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, inv *action.Invocation, next Handler) (*action.Result, error) {
		start := time.Now()
		res, err := next(ctx, inv)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil || (res != nil && !res.Succeeded()) {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("action", inv.Name),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return res, err
	}
}
