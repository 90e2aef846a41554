package domain

import "time"

// CircuitBreakerState is the per-system breaker state.
type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half_open"
)

// CircuitState is a snapshot of one external system's breaker. It is volatile
// process state (or shared via Redis), never persisted with the sync log.
type CircuitState struct {
	State         CircuitBreakerState `json:"state"`
	FailureCount  int                 `json:"failure_count"`
	LastFailureAt time.Time           `json:"last_failure_at"`
	OpenedAt      time.Time           `json:"opened_at"`
}
