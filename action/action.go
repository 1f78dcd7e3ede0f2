// Package action defines the unit of work the engine executes: named
// functions over loosely-typed parameters, registered once and invoked by
// workflows or directly. Integrations (mail, files, contacts, calendars)
// expose their operations as actions; the engine stays agnostic about what
// an action talks to.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/batonhq/baton/id"
)

// Params is the loosely-typed argument bag an action receives. Values are
// JSON-compatible; workflows substitute `${key}` placeholders into them
// before execution.
type Params map[string]any

// Caller identifies who an action runs on behalf of.
type Caller struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is an action's outcome. Integrations map remote API failures into
// a Result with StatusError; the Go error return from Func is reserved for
// transport and programming failures.
type Result struct {
	Status  string         `json:"status"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    int            `json:"code,omitempty"`
}

// Succeeded reports whether the result carries a success status.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// Success builds a successful result with the given payload.
func Success(data map[string]any) *Result {
	return &Result{Status: StatusSuccess, Data: data}
}

// Failure builds an error result with a machine-readable kind and an
// HTTP-style code.
func Failure(kind string, code int, message string) *Result {
	return &Result{Status: StatusError, Error: kind, Code: code, Message: message}
}

// Func is the executable body of an action.
type Func func(ctx context.Context, caller *Caller, params Params) (*Result, error)

// Options tune how the engine runs an action.
type Options struct {
	// Timeout bounds one attempt. Zero derives the bound from
	// EstimatedDuration plus the engine's step buffer.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Negative means "use the engine default".
	MaxRetries int

	// Cacheable marks results safe to memoize by parameter fingerprint.
	Cacheable bool

	// CacheTTL bounds how long a memoized result lives. Zero uses the
	// store's cache default.
	CacheTTL time.Duration

	// Category groups related actions for learned patterns.
	Category string

	// EstimatedDuration is the planner's per-step duration estimate.
	EstimatedDuration time.Duration
}

// DefaultOptions returns the options applied when a definition sets none.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        -1,
		EstimatedDuration: time.Minute,
	}
}

// Option mutates Options at registration time.
type Option func(*Options)

// WithTimeout sets an explicit per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithMaxRetries sets how many times a failed attempt is retried.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.MaxRetries = n
		}
	}
}

// WithCache marks the action memoizable for the given TTL.
func WithCache(ttl time.Duration) Option {
	return func(o *Options) {
		o.Cacheable = true
		o.CacheTTL = ttl
	}
}

// WithCategory tags the action's functional family.
func WithCategory(category string) Option {
	return func(o *Options) { o.Category = category }
}

// WithEstimatedDuration sets the planner's duration estimate.
func WithEstimatedDuration(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.EstimatedDuration = d
		}
	}
}

// Definition binds a name to an executable and its options.
type Definition struct {
	Name string
	Func Func
	Opts Options
}

// NewDefinition builds a definition with defaults applied.
func NewDefinition(name string, fn Func, opts ...Option) *Definition {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Definition{Name: name, Func: fn, Opts: o}
}

// Typed wraps a handler taking a concrete parameter struct. The Params map
// is JSON round-tripped into T at call time, so registration stays
// type-erased while handlers keep their types.
func Typed[T any](fn func(ctx context.Context, caller *Caller, in T) (*Result, error)) Func {
	return func(ctx context.Context, caller *Caller, params Params) (*Result, error) {
		var in T
		if len(params) > 0 {
			raw, err := json.Marshal(params)
			if err != nil {
				return nil, fmt.Errorf("baton/action: encode params: %w", err)
			}
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("baton/action: decode params: %w", err)
			}
		}
		return fn(ctx, caller, in)
	}
}

// Invocation is one attempt at an action as the middleware chain sees it.
type Invocation struct {
	RunID   id.RunID
	StepID  string
	Name    string
	Params  Params
	Caller  *Caller
	Attempt int
	Timeout time.Duration
}
