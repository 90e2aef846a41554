package storage

import (
	"context"
	"errors"
	"time"

	"github.com/oversync/syncgate/internal/core/domain"
)

var (
	// ErrEntryNotFound is returned when a sync log entry doesn't exist
	ErrEntryNotFound = errors.New("sync log entry not found")
)

// SyncLogRepository handles sync log persistence. Transition methods are
// conditional updates: they only move an entry from the statuses the state
// machine allows, and report whether the transition happened, so concurrent
// processors cannot double-apply a transition.
type SyncLogRepository interface {
	// Create persists a new entry
	Create(ctx context.Context, entry *domain.SyncLogEntry) error

	// GetByID retrieves an entry; (nil, nil) when missing
	GetByID(ctx context.Context, id string) (*domain.SyncLogEntry, error)

	// ListDue returns up to limit entries in pending/retrying with
	// next_retry_at <= now, oldest-due first
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.SyncLogEntry, error)

	// ClaimForProcessing atomically moves a due entry to in_progress.
	// Returns false when the entry was already taken or transitioned away.
	ClaimForProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error)

	// MarkSuccess completes an entry, storing the adapter response
	MarkSuccess(ctx context.Context, id string, response []byte, completedAt time.Time) error

	// MarkRetrying schedules the next attempt: status retrying,
	// retry_count+1, next_retry_at set
	MarkRetrying(ctx context.Context, id string, nextRetryAt time.Time) error

	// MarkFailed dead-letters an entry, appending note to its error history
	MarkFailed(ctx context.Context, id string, note string) error

	// AppendError appends msg to the entry's capped error history
	AppendError(ctx context.Context, id string, msg string) error

	// Dismiss moves a retrying/failed entry to dismissed; false when the
	// entry is missing or its status disallows dismissal
	Dismiss(ctx context.Context, id string, note string) (bool, error)

	// ResetDeadLetter revives a failed entry: retry_count 0, due now,
	// status retrying; false when missing or not failed
	ResetDeadLetter(ctx context.Context, id string, now time.Time, note string) (bool, error)

	// ListQueue returns retrying/in_progress entries by next_retry_at asc
	ListQueue(ctx context.Context, limit int) ([]*domain.SyncLogEntry, error)

	// ListDeadLetters returns exhausted failed entries, newest-updated first
	ListDeadLetters(ctx context.Context, limit int) ([]*domain.SyncLogEntry, error)

	// CountByStatus returns the number of entries in the given status
	CountByStatus(ctx context.Context, status domain.SyncLogStatus) (int, error)

	// CountDeadLetters returns the number of exhausted failed entries
	CountDeadLetters(ctx context.Context) (int, error)
}
