package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/oversync/syncgate/internal/breaker"
	"github.com/oversync/syncgate/internal/core/domain"
	"github.com/oversync/syncgate/internal/infra/storage"
	"github.com/oversync/syncgate/internal/metrics"
)

// QueueStats is the single-call dashboard snapshot: queue depth, dead-letter
// count, and every circuit's state.
type QueueStats struct {
	Retrying    int                            `json:"retrying"`
	DeadLetters int                            `json:"dead_letters"`
	Circuits    map[string]domain.CircuitState `json:"circuits"`
}

// Queue exposes the administrative and observability operations over the
// retry queue.
type Queue struct {
	repo       storage.SyncLogRepository
	registry   breaker.Registry
	maxRetries int
	log        *slog.Logger

	now func() time.Time
}

// NewQueue creates the admin service. defaultMaxRetries applies to entries
// enqueued without an explicit ceiling.
func NewQueue(
	repo storage.SyncLogRepository,
	registry breaker.Registry,
	defaultMaxRetries int,
) *Queue {
	if defaultMaxRetries <= 0 {
		defaultMaxRetries = 5
	}
	return &Queue{
		repo:       repo,
		registry:   registry,
		maxRetries: defaultMaxRetries,
		log:        slog.Default(),
		now:        time.Now,
	}
}

// Enqueue creates a pending entry due immediately. This is how upstream sync
// flows hand work to the subsystem.
func (q *Queue) Enqueue(
	ctx context.Context,
	systemName, operation string,
	payload []byte,
	maxRetries int,
) (*domain.SyncLogEntry, error) {
	if systemName == "" || operation == "" {
		return nil, fmt.Errorf("system name and operation are required")
	}
	if maxRetries <= 0 {
		maxRetries = q.maxRetries
	}

	now := q.now()
	entry := &domain.SyncLogEntry{
		ID:          uuid.New().String(),
		SystemName:  systemName,
		Operation:   operation,
		Payload:     payload,
		Status:      domain.SyncStatusPending,
		MaxRetries:  maxRetries,
		NextRetryAt: &now,
		CreatedAt:   now,
	}
	if err := q.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to enqueue sync entry: %w", err)
	}

	q.log.Info("sync entry enqueued",
		"id", entry.ID, "system", systemName, "operation", operation)
	return entry, nil
}

// Entries returns what's about to run: retrying and in_progress entries
// ordered by next_retry_at ascending.
func (q *Queue) Entries(ctx context.Context, limit int) ([]*domain.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return q.repo.ListQueue(ctx, limit)
}

// Dismiss administratively closes a retrying or failed entry. Returns false
// when the entry is missing or its status disallows dismissal.
func (q *Queue) Dismiss(ctx context.Context, id string) (bool, error) {
	ok, err := q.repo.Dismiss(ctx, id, "dismissed by operator")
	if err != nil {
		return false, err
	}
	if ok {
		q.log.Info("sync entry dismissed", "id", id)
	}
	return ok, nil
}

// DeadLetters returns exhausted entries, newest-updated first.
func (q *Queue) DeadLetters(ctx context.Context, limit int) ([]*domain.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return q.repo.ListDeadLetters(ctx, limit)
}

// ResetDeadLetter revives a dead letter: retry budget restored, due now.
// Returns false when the entry is missing or not in failed status.
func (q *Queue) ResetDeadLetter(ctx context.Context, id string) (bool, error) {
	ok, err := q.repo.ResetDeadLetter(ctx, id, q.now(), "manually reset by operator")
	if err != nil {
		return false, err
	}
	if ok {
		q.log.Info("dead letter reset", "id", id)
	}
	return ok, nil
}

// Stats returns the dashboard snapshot and refreshes the queue-depth gauge.
func (q *Queue) Stats(ctx context.Context) (*QueueStats, error) {
	retrying, err := q.repo.CountByStatus(ctx, domain.SyncStatusRetrying)
	if err != nil {
		return nil, fmt.Errorf("failed to count retrying entries: %w", err)
	}
	deadLetters, err := q.repo.CountDeadLetters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count dead letters: %w", err)
	}

	circuits := q.registry.AllStatuses(ctx)
	for system, c := range circuits {
		metrics.CircuitState.WithLabelValues(system).Set(circuitGaugeValue(c.State))
	}
	metrics.RetryQueueDepth.Set(float64(retrying))

	return &QueueStats{
		Retrying:    retrying,
		DeadLetters: deadLetters,
		Circuits:    circuits,
	}, nil
}

func circuitGaugeValue(state domain.CircuitBreakerState) float64 {
	switch state {
	case domain.CircuitOpen:
		return 1
	case domain.CircuitHalfOpen:
		return 2
	default:
		return 0
	}
}
