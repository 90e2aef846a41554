package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/oversync/syncgate/internal/core/domain"
)

// Registry decides, per external system, whether a sync attempt may proceed,
// and absorbs success/failure feedback. All operations are total: backend
// trouble in shared implementations degrades to "closed" rather than
// surfacing an error, because the breaker is protection, not a correctness
// gate.
type Registry interface {
	// IsOpen reports whether attempts against the system are currently
	// blocked. An open circuit whose reset timeout has elapsed transitions
	// to half_open and admits a trial attempt (returns false).
	IsOpen(ctx context.Context, systemName string) bool

	// RecordSuccess resets the system's circuit to closed.
	RecordSuccess(ctx context.Context, systemName string)

	// RecordFailure increments the failure count and opens the circuit once
	// the threshold is reached. A failure while half_open reopens the
	// circuit immediately.
	RecordFailure(ctx context.Context, systemName string)

	// Status returns a read-only snapshot for one system.
	Status(ctx context.Context, systemName string) domain.CircuitState

	// AllStatuses returns snapshots for every system seen so far.
	AllStatuses(ctx context.Context) map[string]domain.CircuitState
}

// Config controls breaker thresholds. Thresholds apply uniformly; they are
// configuration, not per-system constants.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// DefaultConfig returns the standard thresholds: open after 5 consecutive
// failures, probe again after 60s.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 60 * time.Second
	}
	return c
}

// MemoryRegistry is the in-process Registry. Circuits are created lazily on
// first reference and live for the process lifetime; state resets on restart.
type MemoryRegistry struct {
	mu       sync.Mutex
	circuits map[string]*domain.CircuitState
	cfg      Config

	now func() time.Time
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry(cfg Config) *MemoryRegistry {
	return &MemoryRegistry{
		circuits: make(map[string]*domain.CircuitState),
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// get returns the circuit for a system, creating a closed one on first
// reference. Caller must hold r.mu.
func (r *MemoryRegistry) get(systemName string) *domain.CircuitState {
	c, ok := r.circuits[systemName]
	if !ok {
		c = &domain.CircuitState{State: domain.CircuitClosed}
		r.circuits[systemName] = c
	}
	return c
}

// IsOpen implements Registry. The open -> half_open transition happens here,
// under the registry lock, so it occurs exactly once per reset window even
// with concurrent callers.
func (r *MemoryRegistry) IsOpen(_ context.Context, systemName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(systemName)
	switch c.State {
	case domain.CircuitOpen:
		if r.now().Sub(c.OpenedAt) >= r.cfg.ResetTimeout {
			c.State = domain.CircuitHalfOpen
			return false
		}
		return true
	case domain.CircuitHalfOpen:
		return false
	default:
		return false
	}
}

// RecordSuccess implements Registry.
func (r *MemoryRegistry) RecordSuccess(_ context.Context, systemName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(systemName)
	c.State = domain.CircuitClosed
	c.FailureCount = 0
}

// RecordFailure implements Registry.
func (r *MemoryRegistry) RecordFailure(_ context.Context, systemName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c := r.get(systemName)
	c.FailureCount++
	c.LastFailureAt = now

	// A failed half_open probe reopens immediately; otherwise open once the
	// threshold is reached.
	if c.State == domain.CircuitHalfOpen || c.FailureCount >= r.cfg.FailureThreshold {
		c.State = domain.CircuitOpen
		c.OpenedAt = now
	}
}

// Status implements Registry.
func (r *MemoryRegistry) Status(_ context.Context, systemName string) domain.CircuitState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.get(systemName)
}

// AllStatuses implements Registry.
func (r *MemoryRegistry) AllStatuses(_ context.Context) map[string]domain.CircuitState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]domain.CircuitState, len(r.circuits))
	for name, c := range r.circuits {
		out[name] = *c
	}
	return out
}
