package retry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/oversync/syncgate/internal/core/domain"
	"github.com/oversync/syncgate/internal/infra/storage/memory"
)

func newTestScheduler(repo *memory.SyncLogRepo, clock *time.Time) *Scheduler {
	s := NewScheduler(repo, SchedulerConfig{
		BaseDelay:      5 * time.Second,
		MaxDelay:       300 * time.Second,
		JitterFraction: 0.25,
	})
	s.now = func() time.Time { return *clock }
	s.randFloat = func() float64 { return 0 }
	return s
}

func seedEntry(t *testing.T, repo *memory.SyncLogRepo, entry *domain.SyncLogEntry) {
	t.Helper()
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestBackoffDelayCurve(t *testing.T) {
	s := newTestScheduler(memory.NewSyncLogRepo(), &time.Time{})

	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 80 * time.Second},
		{5, 160 * time.Second},
		{6, 300 * time.Second}, // capped
		{10, 300 * time.Second},
	}
	for _, tc := range cases {
		if got := s.BackoffDelay(tc.retryCount); got != tc.want {
			t.Errorf("BackoffDelay(%d) = %v, want %v", tc.retryCount, got, tc.want)
		}
	}
}

func TestNextRetryAtJitterBounds(t *testing.T) {
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(memory.NewSyncLogRepo(), &clock)

	// Lower bound: zero jitter lands exactly at now + delay.
	s.randFloat = func() float64 { return 0 }
	if got := s.NextRetryAt(1); !got.Equal(clock.Add(10 * time.Second)) {
		t.Errorf("min jitter: got %v, want %v", got, clock.Add(10*time.Second))
	}

	// Upper bound: jitter never exceeds JitterFraction * delay.
	s.randFloat = func() float64 { return 0.999999 }
	max := clock.Add(10*time.Second + time.Duration(0.25*float64(10*time.Second)))
	if got := s.NextRetryAt(1); got.After(max) {
		t.Errorf("max jitter: got %v, beyond bound %v", got, max)
	}
}

func TestScheduleRetrySchedulesNextAttempt(t *testing.T) {
	repo := memory.NewSyncLogRepo()
	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(repo, &clock)
	ctx := context.Background()

	seedEntry(t, repo, &domain.SyncLogEntry{
		ID:         "e1",
		SystemName: "erp",
		Operation:  "order.create",
		Status:     domain.SyncStatusInProgress,
		RetryCount: 1,
		MaxRetries: 5,
	})

	scheduled, err := s.ScheduleRetry(ctx, "e1")
	if err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}
	if !scheduled {
		t.Fatal("expected retry to be scheduled")
	}

	entry, _ := repo.GetByID(ctx, "e1")
	if entry.Status != domain.SyncStatusRetrying {
		t.Errorf("status = %s, want retrying", entry.Status)
	}
	if entry.RetryCount != 2 {
		t.Errorf("retry_count = %d, want 2", entry.RetryCount)
	}
	want := clock.Add(10 * time.Second) // base * 2^1, zero jitter
	if entry.NextRetryAt == nil || !entry.NextRetryAt.Equal(want) {
		t.Errorf("next_retry_at = %v, want %v", entry.NextRetryAt, want)
	}
}

func TestScheduleRetryDeadLettersAtBudget(t *testing.T) {
	repo := memory.NewSyncLogRepo()
	clock := time.Now()
	s := newTestScheduler(repo, &clock)
	ctx := context.Background()

	seedEntry(t, repo, &domain.SyncLogEntry{
		ID:         "e1",
		SystemName: "erp",
		Operation:  "order.create",
		Status:     domain.SyncStatusInProgress,
		RetryCount: 5,
		MaxRetries: 5,
	})

	scheduled, err := s.ScheduleRetry(ctx, "e1")
	if err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}
	if scheduled {
		t.Fatal("expected dead-letter, not a scheduled retry")
	}

	entry, _ := repo.GetByID(ctx, "e1")
	if entry.Status != domain.SyncStatusFailed {
		t.Errorf("status = %s, want failed", entry.Status)
	}
	if !entry.IsDeadLetter() {
		t.Error("expected entry to be a dead letter")
	}
	if !strings.Contains(entry.ErrorMessage, "retry budget exhausted") {
		t.Errorf("error message missing dead-letter note: %q", entry.ErrorMessage)
	}
}

func TestScheduleRetryMissingEntry(t *testing.T) {
	s := newTestScheduler(memory.NewSyncLogRepo(), &time.Time{})

	scheduled, err := s.ScheduleRetry(context.Background(), "nope")
	if err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}
	if scheduled {
		t.Error("missing entry should not schedule a retry")
	}
}

func TestScheduleRetryAfterDeadLetterReset(t *testing.T) {
	repo := memory.NewSyncLogRepo()
	clock := time.Now()
	s := newTestScheduler(repo, &clock)
	ctx := context.Background()

	seedEntry(t, repo, &domain.SyncLogEntry{
		ID:         "e1",
		SystemName: "erp",
		Operation:  "order.create",
		Status:     domain.SyncStatusFailed,
		RetryCount: 5,
		MaxRetries: 5,
	})

	ok, err := repo.ResetDeadLetter(ctx, "e1", clock, "manual reset")
	if err != nil || !ok {
		t.Fatalf("ResetDeadLetter: ok=%v err=%v", ok, err)
	}

	// Budget restored, so the scheduler treats it like a fresh failure.
	scheduled, err := s.ScheduleRetry(ctx, "e1")
	if err != nil {
		t.Fatalf("ScheduleRetry: %v", err)
	}
	if !scheduled {
		t.Fatal("reset entry should be schedulable again")
	}
	entry, _ := repo.GetByID(ctx, "e1")
	if entry.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", entry.RetryCount)
	}
}
