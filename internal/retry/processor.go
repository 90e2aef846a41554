package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oversync/syncgate/internal/breaker"
	"github.com/oversync/syncgate/internal/core/domain"
	"github.com/oversync/syncgate/internal/infra/storage"
	"github.com/oversync/syncgate/internal/metrics"
)

// ProcessorConfig controls batch behavior.
type ProcessorConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// BatchResult summarizes one retry-queue drain. Processed counts every entry
// selected, including those skipped for an open circuit. Failed counts failed
// attempts, not dead letters: an entry that fails and is rescheduled still
// increments it.
type BatchResult struct {
	Processed          int `json:"processed"`
	Succeeded          int `json:"succeeded"`
	Failed             int `json:"failed"`
	SkippedCircuitOpen int `json:"skipped_circuit_open"`
}

// Processor drains due retries: it consults the circuit breaker registry,
// re-invokes the external adapter, and routes outcomes back through the
// scheduler and the registry.
type Processor struct {
	repo      storage.SyncLogRepository
	registry  breaker.Registry
	scheduler *Scheduler
	adapter   Adapter
	batchSize int
	log       *slog.Logger

	// serializes overlapping invocations; the cron trigger also skips runs
	// while one is still in flight
	mu sync.Mutex

	now func() time.Time
}

// NewProcessor creates a batch processor.
func NewProcessor(
	cfg ProcessorConfig,
	repo storage.SyncLogRepository,
	registry breaker.Registry,
	scheduler *Scheduler,
	adapter Adapter,
) *Processor {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Processor{
		repo:      repo,
		registry:  registry,
		scheduler: scheduler,
		adapter:   adapter,
		batchSize: batchSize,
		log:       slog.Default(),
		now:       time.Now,
	}
}

// ProcessRetryQueue drains currently-due work with bounded effort. A single
// entry's failure never aborts the batch; only a store failure on the initial
// selection propagates.
func (p *Processor) ProcessRetryQueue(ctx context.Context) (*BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	entries, err := p.repo.ListDue(ctx, start, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select due entries: %w", err)
	}

	result := &BatchResult{Processed: len(entries)}
	for _, entry := range entries {
		p.processEntry(ctx, entry, result)
	}

	if result.Processed > 0 {
		p.log.Info("retry queue drained",
			"processed", result.Processed,
			"succeeded", result.Succeeded,
			"failed", result.Failed,
			"skipped_circuit_open", result.SkippedCircuitOpen,
		)
	}
	return result, nil
}

func (p *Processor) processEntry(
	ctx context.Context,
	entry *domain.SyncLogEntry,
	result *BatchResult,
) {
	// An open circuit leaves the entry untouched; it stays due and costs
	// only this check on future batches until the system is probed again.
	if p.registry.IsOpen(ctx, entry.SystemName) {
		result.SkippedCircuitOpen++
		metrics.SkippedCircuitOpenTotal.WithLabelValues(entry.SystemName).Inc()
		p.log.Debug("circuit open, skipping entry",
			"id", entry.ID, "system", entry.SystemName)
		return
	}

	claimed, err := p.repo.ClaimForProcessing(ctx, entry.ID, p.now())
	if err != nil {
		p.log.Error("failed to claim entry", "id", entry.ID, "error", err)
		return
	}
	if !claimed {
		// Another worker took it between selection and claim.
		p.log.Debug("entry already claimed", "id", entry.ID)
		return
	}

	response, err := p.attempt(ctx, entry)
	if err == nil {
		if err := p.repo.MarkSuccess(ctx, entry.ID, response, p.now()); err != nil {
			p.log.Error("failed to mark entry success", "id", entry.ID, "error", err)
		}
		p.registry.RecordSuccess(ctx, entry.SystemName)
		result.Succeeded++
		metrics.SyncAttemptsTotal.WithLabelValues(entry.SystemName, "success").Inc()
		p.log.Info("sync retry succeeded",
			"id", entry.ID, "system", entry.SystemName, "operation", entry.Operation)
		return
	}

	p.registry.RecordFailure(ctx, entry.SystemName)
	if appendErr := p.repo.AppendError(ctx, entry.ID, err.Error()); appendErr != nil {
		p.log.Error("failed to append error message", "id", entry.ID, "error", appendErr)
	}

	scheduled, schedErr := p.scheduler.ScheduleRetry(ctx, entry.ID)
	if schedErr != nil {
		p.log.Error("failed to schedule retry", "id", entry.ID, "error", schedErr)
	} else if !scheduled {
		metrics.DeadLettersTotal.WithLabelValues(entry.SystemName).Inc()
		p.log.Warn("entry dead-lettered",
			"id", entry.ID, "system", entry.SystemName,
			"retry_count", entry.RetryCount, "error", err)
	}

	result.Failed++
	metrics.SyncAttemptsTotal.WithLabelValues(entry.SystemName, "failure").Inc()
	p.log.Warn("sync retry failed",
		"id", entry.ID, "system", entry.SystemName,
		"operation", entry.Operation, "error", err)
}

// attempt invokes the adapter, converting a panic into a failed attempt so a
// misbehaving adapter cannot abort the batch.
func (p *Processor) attempt(
	ctx context.Context,
	entry *domain.SyncLogEntry,
) (response []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return p.adapter.Attempt(ctx, entry.SystemName, entry.Operation, entry.Payload)
}
