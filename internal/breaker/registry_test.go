package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/oversync/syncgate/internal/core/domain"
)

func newTestRegistry(threshold int, timeout time.Duration) (*MemoryRegistry, *time.Time) {
	r := NewMemoryRegistry(Config{FailureThreshold: threshold, ResetTimeout: timeout})
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestRegistry_ClosedByDefault(t *testing.T) {
	r, _ := newTestRegistry(5, time.Minute)
	ctx := context.Background()

	if r.IsOpen(ctx, "erp") {
		t.Error("new circuit should be closed")
	}
	if s := r.Status(ctx, "erp"); s.State != domain.CircuitClosed {
		t.Errorf("expected closed, got %s", s.State)
	}
}

func TestRegistry_OpensAtThreshold(t *testing.T) {
	r, _ := newTestRegistry(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		r.RecordFailure(ctx, "erp")
		if r.IsOpen(ctx, "erp") {
			t.Fatalf("circuit open after %d failures, threshold is 5", i+1)
		}
	}

	r.RecordFailure(ctx, "erp")
	if !r.IsOpen(ctx, "erp") {
		t.Error("circuit should be open after 5 failures")
	}

	s := r.Status(ctx, "erp")
	if s.FailureCount != 5 {
		t.Errorf("expected failure_count 5, got %d", s.FailureCount)
	}
	if s.OpenedAt.IsZero() {
		t.Error("opened_at should be set")
	}
}

func TestRegistry_SuccessResets(t *testing.T) {
	r, _ := newTestRegistry(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r.RecordFailure(ctx, "erp")
	}
	r.RecordSuccess(ctx, "erp")

	s := r.Status(ctx, "erp")
	if s.State != domain.CircuitClosed {
		t.Errorf("expected closed, got %s", s.State)
	}
	if s.FailureCount != 0 {
		t.Errorf("expected failure_count 0, got %d", s.FailureCount)
	}
}

func TestRegistry_TripAndRecovery(t *testing.T) {
	r, now := newTestRegistry(2, time.Minute)
	ctx := context.Background()

	r.RecordFailure(ctx, "erp")
	r.RecordFailure(ctx, "erp")
	if !r.IsOpen(ctx, "erp") {
		t.Fatal("circuit should be open after 2 failures with threshold 2")
	}

	// Timeout not elapsed yet.
	*now = now.Add(30 * time.Second)
	if !r.IsOpen(ctx, "erp") {
		t.Fatal("circuit should still be open before reset timeout")
	}

	// After the timeout the circuit half-opens and admits a probe.
	*now = now.Add(31 * time.Second)
	if r.IsOpen(ctx, "erp") {
		t.Fatal("circuit should admit a probe after reset timeout")
	}
	if s := r.Status(ctx, "erp"); s.State != domain.CircuitHalfOpen {
		t.Fatalf("expected half_open, got %s", s.State)
	}

	r.RecordSuccess(ctx, "erp")
	s := r.Status(ctx, "erp")
	if s.State != domain.CircuitClosed || s.FailureCount != 0 {
		t.Errorf("expected closed/0 after probe success, got %s/%d", s.State, s.FailureCount)
	}
}

func TestRegistry_HalfOpenFailureReopens(t *testing.T) {
	r, now := newTestRegistry(2, time.Minute)
	ctx := context.Background()

	r.RecordFailure(ctx, "erp")
	r.RecordFailure(ctx, "erp")

	*now = now.Add(2 * time.Minute)
	if r.IsOpen(ctx, "erp") {
		t.Fatal("expected half_open probe to be allowed")
	}

	openedBefore := r.Status(ctx, "erp").OpenedAt
	r.RecordFailure(ctx, "erp")

	s := r.Status(ctx, "erp")
	if s.State != domain.CircuitOpen {
		t.Fatalf("expected open after failed probe, got %s", s.State)
	}
	if !s.OpenedAt.After(openedBefore) {
		t.Error("failed probe should reset opened_at")
	}
	if r.IsOpen(ctx, "erp") != true {
		t.Error("circuit should be open again")
	}
}

func TestRegistry_AllStatuses(t *testing.T) {
	r, _ := newTestRegistry(1, time.Minute)
	ctx := context.Background()

	r.RecordFailure(ctx, "erp")
	r.RecordSuccess(ctx, "crm")
	r.IsOpen(ctx, "billing")

	all := r.AllStatuses(ctx)
	if len(all) != 3 {
		t.Fatalf("expected 3 circuits, got %d", len(all))
	}
	if all["erp"].State != domain.CircuitOpen {
		t.Errorf("erp should be open, got %s", all["erp"].State)
	}
	if all["crm"].State != domain.CircuitClosed {
		t.Errorf("crm should be closed, got %s", all["crm"].State)
	}
	if all["billing"].State != domain.CircuitClosed {
		t.Errorf("billing should be closed, got %s", all["billing"].State)
	}
}
