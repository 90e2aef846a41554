package retry

import "context"

// Adapter performs one sync attempt against an external system of record.
// Implementations carry their own timeouts; the processor treats a returned
// error (or panic) as a failed attempt and never lets it abort a batch.
type Adapter interface {
	Attempt(ctx context.Context, systemName, operation string, payload []byte) ([]byte, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, systemName, operation string, payload []byte) ([]byte, error)

func (f AdapterFunc) Attempt(
	ctx context.Context,
	systemName, operation string,
	payload []byte,
) ([]byte, error) {
	return f(ctx, systemName, operation, payload)
}
