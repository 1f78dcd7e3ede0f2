package baton

import "time"

// Config holds configuration for the Engine and its subsystems.
type Config struct {
	// SessionTTL is how long a run's state entry lives while the run is
	// in flight. Every persist while running refreshes it.
	SessionTTL time.Duration

	// RetainedSessionTTL is how long a run's state entry is retained
	// after it reaches a terminal state.
	RetainedSessionTTL time.Duration

	// ResourceTTL is how long tracked resource references live.
	ResourceTTL time.Duration

	// UserContextTTL is how long per-user working context lives.
	UserContextTTL time.Duration

	// CacheTTL is how long memoized action results live.
	CacheTTL time.Duration

	// AuditTTL is how long audit entries are retained.
	AuditTTL time.Duration

	// PatternTTL is how long learned patterns are retained.
	PatternTTL time.Duration

	// StepTimeoutBuffer is added to a plan's estimated duration to form
	// the per-run execution deadline.
	StepTimeoutBuffer time.Duration

	// DefaultMaxRetries is the retry budget for steps that don't set
	// their own.
	DefaultMaxRetries int

	// MaxConcurrentRuns bounds the number of runs executing at once.
	MaxConcurrentRuns int

	// OffloadThreshold is the payload size in bytes above which action
	// results are offloaded to blob storage.
	OffloadThreshold int

	// EventHistory is the number of recent events the bus retains.
	EventHistory int

	// SweepInterval is how often expired state entries are purged.
	SweepInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight runs
	// during graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SessionTTL:         1 * time.Hour,
		RetainedSessionTTL: 24 * time.Hour,
		ResourceTTL:        24 * time.Hour,
		UserContextTTL:     2 * time.Hour,
		CacheTTL:           1 * time.Hour,
		AuditTTL:           720 * time.Hour,
		PatternTTL:         2160 * time.Hour,
		StepTimeoutBuffer:  60 * time.Second,
		DefaultMaxRetries:  3,
		MaxConcurrentRuns:  10,
		OffloadThreshold:   10 << 20,
		EventHistory:       100,
		SweepInterval:      1 * time.Hour,
		ShutdownTimeout:    30 * time.Second,
	}
}
