package redis

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oversync/syncgate/internal/breaker"
	"github.com/oversync/syncgate/internal/core/domain"
)

// CircuitRegistry implements breaker.Registry on Redis so multiple worker
// processes share one view of each system's circuit. State lives in one hash
// per system with a TTL, so an idle system's circuit eventually evaporates.
//
// Redis trouble never blocks processing: every operation degrades to a closed
// circuit and a log line. The breaker is protection, not a correctness gate.
type CircuitRegistry struct {
	rdb *redis.Client
	cfg breaker.Config
	log *slog.Logger

	now func() time.Time
}

const circuitTTL = 24 * time.Hour

// NewCircuitRegistry creates a Redis-backed registry.
func NewCircuitRegistry(client *Client, cfg breaker.Config) *CircuitRegistry {
	return &CircuitRegistry{
		rdb: client.rdb,
		cfg: cfg,
		log: slog.Default(),
		now: time.Now,
	}
}

func circuitKey(systemName string) string {
	return "circuit:" + systemName
}

func (r *CircuitRegistry) load(ctx context.Context, systemName string) (domain.CircuitState, bool) {
	fields, err := r.rdb.HGetAll(ctx, circuitKey(systemName)).Result()
	if err != nil {
		r.log.Warn("redis circuit read failed, treating as closed",
			"system", systemName, "error", err)
		return domain.CircuitState{State: domain.CircuitClosed}, false
	}
	if len(fields) == 0 {
		return domain.CircuitState{State: domain.CircuitClosed}, true
	}

	state := domain.CircuitState{State: domain.CircuitBreakerState(fields["state"])}
	if state.State == "" {
		state.State = domain.CircuitClosed
	}
	state.FailureCount, _ = strconv.Atoi(fields["failure_count"])
	if v, err := strconv.ParseInt(fields["last_failure_at"], 10, 64); err == nil && v > 0 {
		state.LastFailureAt = time.Unix(v, 0)
	}
	if v, err := strconv.ParseInt(fields["opened_at"], 10, 64); err == nil && v > 0 {
		state.OpenedAt = time.Unix(v, 0)
	}
	return state, true
}

func (r *CircuitRegistry) store(ctx context.Context, systemName string, fields map[string]any) {
	key := circuitKey(systemName)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, circuitTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("redis circuit write failed", "system", systemName, "error", err)
	}
}

// IsOpen implements breaker.Registry.
func (r *CircuitRegistry) IsOpen(ctx context.Context, systemName string) bool {
	state, ok := r.load(ctx, systemName)
	if !ok {
		return false
	}

	switch state.State {
	case domain.CircuitOpen:
		if r.now().Sub(state.OpenedAt) >= r.cfg.ResetTimeout {
			r.store(ctx, systemName, map[string]any{
				"state": string(domain.CircuitHalfOpen),
			})
			return false
		}
		return true
	default:
		return false
	}
}

// RecordSuccess implements breaker.Registry.
func (r *CircuitRegistry) RecordSuccess(ctx context.Context, systemName string) {
	r.store(ctx, systemName, map[string]any{
		"state":         string(domain.CircuitClosed),
		"failure_count": 0,
	})
}

// RecordFailure implements breaker.Registry. The read-modify-write is not
// atomic across processes; a concurrently recorded failure can be undercounted
// by one, which at worst delays the circuit opening by a single attempt.
func (r *CircuitRegistry) RecordFailure(ctx context.Context, systemName string) {
	now := r.now()
	state, ok := r.load(ctx, systemName)
	if !ok {
		return
	}

	count, err := r.rdb.HIncrBy(ctx, circuitKey(systemName), "failure_count", 1).Result()
	if err != nil {
		r.log.Warn("redis circuit increment failed", "system", systemName, "error", err)
		return
	}

	fields := map[string]any{"last_failure_at": now.Unix()}
	if state.State == domain.CircuitHalfOpen || int(count) >= r.cfg.FailureThreshold {
		fields["state"] = string(domain.CircuitOpen)
		fields["opened_at"] = now.Unix()
	}
	r.store(ctx, systemName, fields)
}

// Status implements breaker.Registry.
func (r *CircuitRegistry) Status(ctx context.Context, systemName string) domain.CircuitState {
	state, _ := r.load(ctx, systemName)
	return state
}

// AllStatuses implements breaker.Registry.
func (r *CircuitRegistry) AllStatuses(ctx context.Context) map[string]domain.CircuitState {
	out := make(map[string]domain.CircuitState)

	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, "circuit:*", 100).Result()
		if err != nil {
			r.log.Warn("redis circuit scan failed", "error", err)
			return out
		}
		for _, key := range keys {
			system := key[len("circuit:"):]
			if state, ok := r.load(ctx, system); ok {
				out[system] = state
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out
}
