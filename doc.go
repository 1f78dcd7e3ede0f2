// Package baton provides a composable workflow orchestration engine for
// integration hubs. It turns action proposals into validated execution
// plans, runs them with dependency-aware scheduling, retries, and context
// chaining, and learns preferred action sequences from run feedback.
//
// Baton is designed as a library, not a service. Import it, register
// actions as ordinary Go functions, and hand prompts to the engine:
//
//	eng := engine.New(baton.DefaultConfig(),
//	    engine.WithStateBackend(memory.New()),
//	    engine.WithProposer(myProposer),
//	)
//
// # Architecture
//
// Baton follows a composable backend pattern: the state package defines a
// small key-value Backend interface and every subsystem (workflow runs,
// result cache, learned patterns, audit trail) persists through it. A
// single backend — in-memory, Redis, or Postgres — serves all of them.
//
// Cross-cutting behavior (logging, tracing, metrics, auditing, payload
// offload, timeouts) is applied as middleware around every action
// invocation, and lifecycle extensions observe runs without being able
// to fail them.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package baton
