package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/oversync/syncgate/internal/infra/storage"
)

// SchedulerConfig controls the backoff curve.
type SchedulerConfig struct {
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	JitterFraction float64       `yaml:"jitter_fraction"`
}

// DefaultSchedulerConfig provides the standard curve: 5s doubling up to 5min,
// with up to 25% jitter.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BaseDelay:      5 * time.Second,
		MaxDelay:       300 * time.Second,
		JitterFraction: 0.25,
	}
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 5 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 300 * time.Second
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.25
	}
	return c
}

// Scheduler computes retry times and transitions failed entries between
// retrying and dead-lettered.
type Scheduler struct {
	repo storage.SyncLogRepository
	cfg  SchedulerConfig

	now       func() time.Time
	randFloat func() float64
}

// NewScheduler creates a scheduler over the given store.
func NewScheduler(repo storage.SyncLogRepository, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		repo:      repo,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		randFloat: rand.Float64,
	}
}

// BackoffDelay returns the base delay for the given retry count:
// min(base * 2^count, max), no jitter.
func (s *Scheduler) BackoffDelay(retryCount int) time.Duration {
	delay := float64(s.cfg.BaseDelay) * math.Pow(2, float64(retryCount))
	if delay > float64(s.cfg.MaxDelay) {
		return s.cfg.MaxDelay
	}
	return time.Duration(delay)
}

// NextRetryAt returns now + backoff + jitter. Jitter is drawn uniformly from
// [0, JitterFraction * delay] so entries that failed together do not retry
// in lockstep.
func (s *Scheduler) NextRetryAt(retryCount int) time.Time {
	delay := s.BackoffDelay(retryCount)
	jitter := time.Duration(s.randFloat() * s.cfg.JitterFraction * float64(delay))
	return s.now().Add(delay + jitter)
}

// ScheduleRetry schedules the next attempt for a failed entry, or
// dead-letters it once the retry budget is spent. Returns true when a retry
// was scheduled, false when the entry is missing or was dead-lettered.
// Storage failures are the only errors returned.
func (s *Scheduler) ScheduleRetry(ctx context.Context, id string) (bool, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to load entry %s: %w", id, err)
	}
	if entry == nil {
		return false, nil
	}

	if entry.RetryCount >= entry.MaxRetries {
		note := fmt.Sprintf(
			"dead-lettered: retry budget exhausted (%d/%d)",
			entry.RetryCount, entry.MaxRetries,
		)
		if err := s.repo.MarkFailed(ctx, id, note); err != nil {
			return false, fmt.Errorf("failed to dead-letter entry %s: %w", id, err)
		}
		return false, nil
	}

	nextAt := s.NextRetryAt(entry.RetryCount)
	if err := s.repo.MarkRetrying(ctx, id, nextAt); err != nil {
		return false, fmt.Errorf("failed to schedule retry for %s: %w", id, err)
	}
	return true, nil
}
