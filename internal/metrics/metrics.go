package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncAttemptsTotal tracks adapter attempts per system and outcome
	SyncAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncgate_sync_attempts_total",
			Help: "Total number of sync attempts",
		},
		[]string{"system", "outcome"},
	)

	// SkippedCircuitOpenTotal tracks entries skipped because of an open circuit
	SkippedCircuitOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncgate_skipped_circuit_open_total",
			Help: "Total number of entries skipped due to an open circuit",
		},
		[]string{"system"},
	)

	// DeadLettersTotal tracks entries moved to the dead-letter state
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncgate_dead_letters_total",
			Help: "Total number of entries dead-lettered",
		},
		[]string{"system"},
	)

	// CircuitState exposes the per-system breaker state (0=closed, 1=open, 2=half_open)
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncgate_circuit_state",
			Help: "Circuit breaker state per system (0=closed, 1=open, 2=half_open)",
		},
		[]string{"system"},
	)

	// BatchDuration tracks how long one retry-queue drain takes
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "syncgate_batch_duration_seconds",
			Help:    "Duration of one retry queue batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RetryQueueDepth tracks the number of entries currently in retrying status
	RetryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncgate_retry_queue_depth",
			Help: "Number of entries currently awaiting retry",
		},
	)
)
