package baton

import "time"

// HealthStatus classifies the availability of a subsystem.
type HealthStatus string

const (
	// HealthHealthy means the subsystem and its backend are reachable.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded means the subsystem is running without a backend
	// and operations silently no-op.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy means the configured backend is unreachable.
	HealthUnhealthy HealthStatus = "unhealthy"
)

// rank orders statuses from best to worst for aggregation.
func (s HealthStatus) rank() int {
	switch s {
	case HealthHealthy:
		return 0
	case HealthDegraded:
		return 1
	default:
		return 2
	}
}

// Worst returns the worse of two statuses.
func (s HealthStatus) Worst(other HealthStatus) HealthStatus {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// Health describes the availability of a subsystem.
type Health struct {
	Status  HealthStatus  `json:"status"`
	Latency time.Duration `json:"latency,omitempty"`
	Error   string        `json:"error,omitempty"`
}
