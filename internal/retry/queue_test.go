package retry

import (
	"context"
	"testing"
	"time"

	"github.com/oversync/syncgate/internal/breaker"
	"github.com/oversync/syncgate/internal/core/domain"
	"github.com/oversync/syncgate/internal/infra/storage/memory"
)

func newTestQueue(repo *memory.SyncLogRepo) *Queue {
	registry := breaker.NewMemoryRegistry(breaker.DefaultConfig())
	return NewQueue(repo, registry, 5)
}

func TestEnqueue(t *testing.T) {
	repo := memory.NewSyncLogRepo()
	q := newTestQueue(repo)
	ctx := context.Background()

	entry, err := q.Enqueue(ctx, "erp", "order.create", []byte(`{"order_id":42}`), 0)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if entry.ID == "" {
		t.Error("expected generated id")
	}
	if entry.Status != domain.SyncStatusPending {
		t.Errorf("status = %s, want pending", entry.Status)
	}
	if entry.MaxRetries != 5 {
		t.Errorf("max_retries = %d, want default 5", entry.MaxRetries)
	}
	if entry.NextRetryAt == nil {
		t.Fatal("expected next_retry_at set")
	}

	// Due immediately.
	due, err := repo.ListDue(ctx, time.Now().Add(time.Second), 10)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 1 || due[0].ID != entry.ID {
		t.Errorf("enqueued entry not due: %v", due)
	}
}

func TestEnqueueValidation(t *testing.T) {
	q := newTestQueue(memory.NewSyncLogRepo())
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "", "order.create", nil, 0); err == nil {
		t.Error("expected error for empty system name")
	}
	if _, err := q.Enqueue(ctx, "erp", "", nil, 0); err == nil {
		t.Error("expected error for empty operation")
	}
}

func TestDismiss(t *testing.T) {
	repo := memory.NewSyncLogRepo()
	q := newTestQueue(repo)
	ctx := context.Background()

	seedEntry(t, repo, &domain.SyncLogEntry{
		ID: "r1", SystemName: "erp", Operation: "op",
		Status: domain.SyncStatusRetrying, MaxRetries: 5,
	})
	seedEntry(t, repo, &domain.SyncLogEntry{
		ID: "s1", SystemName: "erp", Operation: "op",
		Status: domain.SyncStatusSuccess, MaxRetries: 5,
	})

	ok, err := q.Dismiss(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("Dismiss retrying: ok=%v err=%v", ok, err)
	}
	entry, _ := repo.GetByID(ctx, "r1")
	if entry.Status != domain.SyncStatusDismissed {
		t.Errorf("status = %s, want dismissed", entry.Status)
	}

	// Completed entries and unknown ids are not dismissable.
	if ok, _ := q.Dismiss(ctx, "s1"); ok {
		t.Error("dismissed a successful entry")
	}
	if ok, _ := q.Dismiss(ctx, "missing"); ok {
		t.Error("dismissed a missing entry")
	}
}

func TestDeadLettersAndReset(t *testing.T) {
	repo := memory.NewSyncLogRepo()
	q := newTestQueue(repo)
	ctx := context.Background()

	seedEntry(t, repo, &domain.SyncLogEntry{
		ID: "dead-1", SystemName: "erp", Operation: "op",
		Status: domain.SyncStatusFailed, RetryCount: 5, MaxRetries: 5,
	})
	seedEntry(t, repo, &domain.SyncLogEntry{
		ID: "alive-1", SystemName: "erp", Operation: "op",
		Status: domain.SyncStatusRetrying, RetryCount: 2, MaxRetries: 5,
	})

	dead, err := q.DeadLetters(ctx, 0)
	if err != nil {
		t.Fatalf("DeadLetters: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != "dead-1" {
		t.Fatalf("dead letters = %v, want [dead-1]", dead)
	}

	ok, err := q.ResetDeadLetter(ctx, "dead-1")
	if err != nil || !ok {
		t.Fatalf("ResetDeadLetter: ok=%v err=%v", ok, err)
	}
	entry, _ := repo.GetByID(ctx, "dead-1")
	if entry.Status != domain.SyncStatusRetrying {
		t.Errorf("status = %s, want retrying", entry.Status)
	}
	if entry.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", entry.RetryCount)
	}
	if entry.NextRetryAt == nil {
		t.Error("expected next_retry_at set")
	}

	// Only failed entries can be reset.
	if ok, _ := q.ResetDeadLetter(ctx, "alive-1"); ok {
		t.Error("reset a non-dead entry")
	}
	if ok, _ := q.ResetDeadLetter(ctx, "missing"); ok {
		t.Error("reset a missing entry")
	}
}

func TestStats(t *testing.T) {
	repo := memory.NewSyncLogRepo()
	registry := breaker.NewMemoryRegistry(breaker.DefaultConfig())
	q := NewQueue(repo, registry, 5)
	ctx := context.Background()

	seedEntry(t, repo, &domain.SyncLogEntry{
		ID: "r1", SystemName: "erp", Operation: "op",
		Status: domain.SyncStatusRetrying, MaxRetries: 5,
	})
	seedEntry(t, repo, &domain.SyncLogEntry{
		ID: "r2", SystemName: "crm", Operation: "op",
		Status: domain.SyncStatusRetrying, MaxRetries: 5,
	})
	seedEntry(t, repo, &domain.SyncLogEntry{
		ID: "dead-1", SystemName: "erp", Operation: "op",
		Status: domain.SyncStatusFailed, RetryCount: 5, MaxRetries: 5,
	})
	registry.RecordFailure(ctx, "erp")

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Retrying != 2 {
		t.Errorf("retrying = %d, want 2", stats.Retrying)
	}
	if stats.DeadLetters != 1 {
		t.Errorf("dead_letters = %d, want 1", stats.DeadLetters)
	}
	circuit, ok := stats.Circuits["erp"]
	if !ok {
		t.Fatal("missing erp circuit in stats")
	}
	if circuit.FailureCount != 1 {
		t.Errorf("erp failure_count = %d, want 1", circuit.FailureCount)
	}
}
