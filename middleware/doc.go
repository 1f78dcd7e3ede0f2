// Package middleware provides composable middleware for action execution.
//
// A [Middleware] is a function that wraps an action handler. Middleware are
// composed into a chain using [Chain] and applied around every boundary
// invocation. They are applied right-to-left: the first middleware in the
// slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs action name, run, duration, and outcome at each call
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the invocation context after the action's deadline
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-action duration and outcome counters
//   - [Audit] — writes a redacted record of the invocation to the audit trail
//   - [Offload] — replaces oversized responses with a blob-store envelope
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, inv *action.Invocation, next middleware.Handler) (*action.Result, error) {
//	        // pre-processing
//	        res, err := next(ctx, inv)
//	        // post-processing
//	        return res, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
