package pool

import "context"

// Adapter supplies the three protocol-specific operations the base
// pool cannot implement itself. Implementations MUST verify remote
// identity where applicable in CreateClient and return only verified
// clients; ProbeClient must be a cheap liveness check; CloseClient
// must swallow errors from the underlying disconnect (log only) and
// detach any listeners it attached in CreateClient.
type Adapter[T any] interface {
	CreateClient(ctx context.Context, endpoint Endpoint) (T, error)
	ProbeClient(ctx context.Context, client T) bool
	CloseClient(client T)
}

// ErrorNotifier is an optional capability a client value returned from
// CreateClient may implement: if the underlying connection can detect
// a failure asynchronously (a dropped subscription, a broken
// keep-alive) outside of the regular probe cycle, the pool listens on
// the returned channel for the client's lifetime and, on the first
// error, flips the client unhealthy and reports it on the pool's
// error event pathway immediately rather than waiting for the next
// probe. A nil or never-sent channel is a valid no-op implementation.
type ErrorNotifier interface {
	NotifyErrors() <-chan error
}
