package adapter

import (
	"context"
	"fmt"

	"github.com/oversync/syncgate/internal/retry"
)

// Registry routes attempts to the adapter configured for each system. An
// unknown system is an ordinary failed attempt: the entry retries and
// eventually dead-letters instead of wedging the batch.
type Registry struct {
	adapters map[string]retry.Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]retry.Adapter)}
}

// Register installs the adapter for a system name.
func (r *Registry) Register(systemName string, a retry.Adapter) {
	r.adapters[systemName] = a
}

// Attempt implements retry.Adapter.
func (r *Registry) Attempt(
	ctx context.Context,
	systemName, operation string,
	payload []byte,
) ([]byte, error) {
	a, ok := r.adapters[systemName]
	if !ok {
		return nil, fmt.Errorf("no adapter configured for system %q", systemName)
	}
	return a.Attempt(ctx, systemName, operation, payload)
}
