// Package schedule provides recurring orchestration on cron expressions.
//
// An [Entry] binds a cron spec to a stored [Request]; every time the spec
// comes due the scheduler replays the request through the engine's
// orchestrate path, exactly as if a caller had submitted the prompt again.
//
// # Entry
//
//   - Spec: standard 5-field cron expression or a descriptor such as
//     "@hourly" or "@every 30s"
//   - Request: the prompt, user, and context replayed on every fire
//   - Enabled: whether the entry fires
//   - LastRunAt / NextRunAt: fire bookkeeping (managed internally)
//
// Entries live in memory and are mirrored into the state store under
// schedule:{id} so they remain visible alongside the runs they start.
//
// # Scheduler
//
// The [Scheduler] evaluates due entries on every tick, consumes the
// occurrence, and starts a run through the engine-provided
// [OrchestrateFunc]. A failed start is logged and counted but never
// replayed and never stops the loop. The hook registry's ScheduleFired
// extension point fires after each successful start.
//
// Schedules are process-local: baton embeds in a single process, so there
// is no leader election and no distributed firing lock.
package schedule
