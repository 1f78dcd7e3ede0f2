package baton

import "errors"

var (
	// Configuration errors.
	ErrNoBackend  = errors.New("baton: no state backend configured")
	ErrNoProposer = errors.New("baton: no proposer configured")

	// Not found errors.
	ErrKeyNotFound      = errors.New("baton: key not found")
	ErrActionNotFound   = errors.New("baton: action not found")
	ErrRunNotFound      = errors.New("baton: run not found")
	ErrPatternNotFound  = errors.New("baton: pattern not found")
	ErrFeedbackNotFound = errors.New("baton: feedback not found")
	ErrEntryNotFound    = errors.New("baton: schedule entry not found")

	// Conflict errors.
	ErrActionExists = errors.New("baton: action already registered")
	ErrEntryExists  = errors.New("baton: duplicate schedule entry")

	// Plan errors.
	ErrEmptyPlan     = errors.New("baton: plan has no executable steps")
	ErrEmptyProposal = errors.New("baton: proposal has no steps")

	// Execution errors.
	ErrStepTimeout       = errors.New("baton: step timed out")
	ErrRetriesExhausted  = errors.New("baton: step retries exhausted")
	ErrRunNotCancellable = errors.New("baton: run is not cancellable")
	ErrEngineStopped     = errors.New("baton: engine stopped")
	ErrBrokerClosed      = errors.New("baton: broker closed")
)
