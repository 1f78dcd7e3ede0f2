// Package workflow executes validated plans. The Runner walks a plan's
// nodes in order, checks dependencies, substitutes accumulated context into
// parameters, invokes actions through a pluggable executor with per-step
// timeouts and retries, and persists the run after every step so progress
// survives a crash.
//
// Runs are bounded by a concurrency semaphore and can be cancelled between
// steps; an in-flight step is never interrupted. Lifecycle transitions are
// reported to an Emitter, which the engine backs with the extension
// registry.
package workflow
