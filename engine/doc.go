// Package engine wires all Baton subsystems together and provides the
// application-level API for registering actions and orchestrating prompts.
//
// The engine package sits above every subsystem package and below the
// application layer: it owns construction order, the default middleware
// chain, and the subscriptions that connect the bus back into state and
// learning.
//
// # Building an Engine
//
//	eng := engine.New(baton.DefaultConfig(),
//	    engine.WithStateBackend(memory.New()),
//	    engine.WithBroker(event.NewMemoryBroker()),
//	    engine.WithProposer(planner),
//	    engine.WithLogger(logger),
//	)
//
// Every collaborator is optional. Without a state backend the engine runs
// with persistence degraded to no-ops; without a broker events are kept
// in history but not delivered; without a proposer Orchestrate returns
// baton.ErrNoProposer while direct action execution keeps working.
//
// # Registering Actions
//
//	eng.Register(
//	    action.NewDefinition("mail.send", sendMail,
//	        action.WithCategory("mail"),
//	        action.WithEstimatedDuration(5*time.Second)),
//	    action.NewDefinition("files.search", searchFiles,
//	        action.WithCache(10*time.Minute)),
//	)
//
// # Orchestrating
//
//	out, err := eng.Orchestrate(ctx, engine.Request{
//	    Prompt: "send the quarterly report to finance",
//	    UserID: "u-1",
//	})
//
// Orchestrate asks the learning subsystem for hints, hands the prompt to
// the proposer, validates the proposal into a plan, and runs it. Pass
// Mode workflow.ModeSuggestion to get the plan without running it, or
// Detached to launch the run in the background.
//
// # Middleware
//
// Actions execute under a fixed chain: panic recovery, tracing, metrics,
// logging, audit, offload, timeout. WithMiddleware appends custom
// middleware inside that chain, closest to the action.
package engine
