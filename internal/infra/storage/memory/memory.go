package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oversync/syncgate/internal/core/domain"
)

// SyncLogRepo is an in-memory storage.SyncLogRepository, used when no
// database is configured and by tests.
type SyncLogRepo struct {
	mu      sync.RWMutex
	entries map[string]*domain.SyncLogEntry
}

// NewSyncLogRepo creates an empty in-memory repository.
func NewSyncLogRepo() *SyncLogRepo {
	return &SyncLogRepo{entries: make(map[string]*domain.SyncLogEntry)}
}

func (r *SyncLogRepo) Create(ctx context.Context, entry *domain.SyncLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.entries[cp.ID] = &cp
	return nil
}

func (r *SyncLogRepo) GetByID(ctx context.Context, id string) (*domain.SyncLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *SyncLogRepo) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.SyncLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*domain.SyncLogEntry
	for _, e := range r.entries {
		if e.Status != domain.SyncStatusPending && e.Status != domain.SyncStatusRetrying {
			continue
		}
		if e.NextRetryAt == nil || e.NextRetryAt.After(now) {
			continue
		}
		cp := *e
		due = append(due, &cp)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRetryAt.Before(*due[j].NextRetryAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *SyncLogRepo) ClaimForProcessing(
	ctx context.Context,
	id string,
	startedAt time.Time,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false, nil
	}
	if e.Status != domain.SyncStatusPending && e.Status != domain.SyncStatusRetrying {
		return false, nil
	}
	e.Status = domain.SyncStatusInProgress
	at := startedAt
	e.StartedAt = &at
	e.UpdatedAt = time.Now()
	return true, nil
}

func (r *SyncLogRepo) MarkSuccess(
	ctx context.Context,
	id string,
	response []byte,
	completedAt time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	e.Status = domain.SyncStatusSuccess
	e.Response = response
	at := completedAt
	e.CompletedAt = &at
	e.UpdatedAt = time.Now()
	return nil
}

func (r *SyncLogRepo) MarkRetrying(ctx context.Context, id string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	e.Status = domain.SyncStatusRetrying
	e.RetryCount++
	at := nextRetryAt
	e.NextRetryAt = &at
	e.UpdatedAt = time.Now()
	return nil
}

func (r *SyncLogRepo) MarkFailed(ctx context.Context, id string, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	e.Status = domain.SyncStatusFailed
	e.ErrorMessage = domain.AppendError(e.ErrorMessage, note)
	e.UpdatedAt = time.Now()
	return nil
}

func (r *SyncLogRepo) AppendError(ctx context.Context, id string, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	e.ErrorMessage = domain.AppendError(e.ErrorMessage, msg)
	e.UpdatedAt = time.Now()
	return nil
}

func (r *SyncLogRepo) Dismiss(ctx context.Context, id string, note string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false, nil
	}
	if e.Status != domain.SyncStatusRetrying && e.Status != domain.SyncStatusFailed {
		return false, nil
	}
	e.Status = domain.SyncStatusDismissed
	e.ErrorMessage = domain.AppendError(e.ErrorMessage, note)
	e.UpdatedAt = time.Now()
	return true, nil
}

func (r *SyncLogRepo) ResetDeadLetter(
	ctx context.Context,
	id string,
	now time.Time,
	note string,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false, nil
	}
	if e.Status != domain.SyncStatusFailed {
		return false, nil
	}
	e.Status = domain.SyncStatusRetrying
	e.RetryCount = 0
	at := now
	e.NextRetryAt = &at
	e.ErrorMessage = domain.AppendError(e.ErrorMessage, note)
	e.UpdatedAt = time.Now()
	return true, nil
}

func (r *SyncLogRepo) ListQueue(ctx context.Context, limit int) ([]*domain.SyncLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.SyncLogEntry
	for _, e := range r.entries {
		if e.Status != domain.SyncStatusRetrying && e.Status != domain.SyncStatusInProgress {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}

	// next_retry_at ascending, nil last
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].NextRetryAt, out[j].NextRetryAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SyncLogRepo) ListDeadLetters(
	ctx context.Context,
	limit int,
) ([]*domain.SyncLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.SyncLogEntry
	for _, e := range r.entries {
		if e.IsDeadLetter() {
			cp := *e
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SyncLogRepo) CountByStatus(
	ctx context.Context,
	status domain.SyncLogStatus,
) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.entries {
		if e.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *SyncLogRepo) CountDeadLetters(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.entries {
		if e.IsDeadLetter() {
			count++
		}
	}
	return count, nil
}
