package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oversync/syncgate/internal/core/domain"
)

// SyncLogRepo implements storage.SyncLogRepository using PostgreSQL.
type SyncLogRepo struct {
	db *DB
}

// NewSyncLogRepo creates a new PostgreSQL sync log repository.
func NewSyncLogRepo(db *DB) *SyncLogRepo {
	return &SyncLogRepo{db: db}
}

const syncLogColumns = `id, system_name, operation, payload, status, retry_count, max_retries,
		next_retry_at, error_message, response, started_at, completed_at, created_at, updated_at`

// appendErrorSQL appends a message to the capped error history. concat_ws
// skips the NULL produced by nullif, so an empty history gets no leading
// newline.
const appendErrorSQL = `right(concat_ws(E'\n', nullif(error_message, ''), $2::text), $3)`

// Create persists a new entry.
func (r *SyncLogRepo) Create(ctx context.Context, entry *domain.SyncLogEntry) error {
	query := `
		INSERT INTO sync_logs (id, system_name, operation, payload, status, retry_count,
			max_retries, next_retry_at, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.SystemName,
		entry.Operation,
		entry.Payload,
		entry.Status,
		entry.RetryCount,
		entry.MaxRetries,
		entry.NextRetryAt,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync log entry: %w", err)
	}
	return nil
}

// GetByID retrieves an entry by id.
func (r *SyncLogRepo) GetByID(ctx context.Context, id string) (*domain.SyncLogEntry, error) {
	query := `SELECT ` + syncLogColumns + ` FROM sync_logs WHERE id = $1`

	var entry domain.SyncLogEntry
	err := r.db.GetContext(ctx, &entry, query, id)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync log entry: %w", err)
	}
	return &entry, nil
}

// ListDue returns due pending/retrying entries, oldest-due first.
func (r *SyncLogRepo) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.SyncLogEntry, error) {
	query := `
		SELECT ` + syncLogColumns + `
		FROM sync_logs
		WHERE status IN ('pending', 'retrying') AND next_retry_at <= $1
		ORDER BY next_retry_at ASC
		LIMIT $2
	`
	var entries []*domain.SyncLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due entries: %w", err)
	}
	return entries, nil
}

// ClaimForProcessing atomically moves a due entry to in_progress.
func (r *SyncLogRepo) ClaimForProcessing(
	ctx context.Context,
	id string,
	startedAt time.Time,
) (bool, error) {
	query := `
		UPDATE sync_logs
		SET status = 'in_progress', started_at = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'retrying')
	`
	res, err := r.db.ExecContext(ctx, query, id, startedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkSuccess completes an entry.
func (r *SyncLogRepo) MarkSuccess(
	ctx context.Context,
	id string,
	response []byte,
	completedAt time.Time,
) error {
	query := `
		UPDATE sync_logs
		SET status = 'success', response = $2, completed_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, response, completedAt)
	return err
}

// MarkRetrying schedules the next attempt.
func (r *SyncLogRepo) MarkRetrying(ctx context.Context, id string, nextRetryAt time.Time) error {
	query := `
		UPDATE sync_logs
		SET status = 'retrying', retry_count = retry_count + 1, next_retry_at = $2,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, nextRetryAt)
	return err
}

// MarkFailed dead-letters an entry.
func (r *SyncLogRepo) MarkFailed(ctx context.Context, id string, note string) error {
	query := `
		UPDATE sync_logs
		SET status = 'failed', error_message = ` + appendErrorSQL + `, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, note, domain.MaxErrorHistoryBytes)
	return err
}

// AppendError appends a failure message to the entry's error history.
func (r *SyncLogRepo) AppendError(ctx context.Context, id string, msg string) error {
	query := `
		UPDATE sync_logs
		SET error_message = ` + appendErrorSQL + `, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, msg, domain.MaxErrorHistoryBytes)
	return err
}

// Dismiss moves a retrying/failed entry to dismissed.
func (r *SyncLogRepo) Dismiss(ctx context.Context, id string, note string) (bool, error) {
	query := `
		UPDATE sync_logs
		SET status = 'dismissed', error_message = ` + appendErrorSQL + `, updated_at = NOW()
		WHERE id = $1 AND status IN ('retrying', 'failed')
	`
	res, err := r.db.ExecContext(ctx, query, id, note, domain.MaxErrorHistoryBytes)
	if err != nil {
		return false, fmt.Errorf("failed to dismiss entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ResetDeadLetter revives a failed entry for another round of retries.
func (r *SyncLogRepo) ResetDeadLetter(
	ctx context.Context,
	id string,
	now time.Time,
	note string,
) (bool, error) {
	query := `
		UPDATE sync_logs
		SET status = 'retrying', retry_count = 0, next_retry_at = $4,
			error_message = ` + appendErrorSQL + `, updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
	`
	res, err := r.db.ExecContext(ctx, query, id, note, domain.MaxErrorHistoryBytes, now)
	if err != nil {
		return false, fmt.Errorf("failed to reset dead letter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListQueue returns retrying/in_progress entries by next_retry_at ascending.
func (r *SyncLogRepo) ListQueue(ctx context.Context, limit int) ([]*domain.SyncLogEntry, error) {
	query := `
		SELECT ` + syncLogColumns + `
		FROM sync_logs
		WHERE status IN ('retrying', 'in_progress')
		ORDER BY next_retry_at ASC NULLS LAST
		LIMIT $1
	`
	var entries []*domain.SyncLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list retry queue: %w", err)
	}
	return entries, nil
}

// ListDeadLetters returns exhausted failed entries, newest-updated first.
func (r *SyncLogRepo) ListDeadLetters(
	ctx context.Context,
	limit int,
) ([]*domain.SyncLogEntry, error) {
	query := `
		SELECT ` + syncLogColumns + `
		FROM sync_logs
		WHERE status = 'failed' AND retry_count >= max_retries
		ORDER BY updated_at DESC
		LIMIT $1
	`
	var entries []*domain.SyncLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return entries, nil
}

// CountByStatus returns the number of entries in a status.
func (r *SyncLogRepo) CountByStatus(
	ctx context.Context,
	status domain.SyncLogStatus,
) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sync_logs WHERE status = $1`
	if err := r.db.GetContext(ctx, &count, query, string(status)); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// CountDeadLetters returns the number of exhausted failed entries.
func (r *SyncLogRepo) CountDeadLetters(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sync_logs WHERE status = 'failed' AND retry_count >= max_retries`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return count, nil
}
