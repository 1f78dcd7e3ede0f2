package middleware

import (
	"context"

	"github.com/batonhq/baton/action"
)

// Handler is the terminal function that executes an action.
type Handler func(ctx context.Context, inv *action.Invocation) (*action.Result, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the invocation being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, inv *action.Invocation, next Handler) (*action.Result, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, inv *action.Invocation, next Handler) (*action.Result, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context, inv *action.Invocation) (*action.Result, error) {
				return mw(ctx, inv, prev)
			}
		}
		return h(ctx, inv)
	}
}

// Apply binds a middleware (usually a Chain product) to a terminal
// handler, producing a plain Handler the runner or boundary can call.
func Apply(mw Middleware, terminal Handler) Handler {
	return func(ctx context.Context, inv *action.Invocation) (*action.Result, error) {
		return mw(ctx, inv, terminal)
	}
}
