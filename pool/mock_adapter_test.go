package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// mockClient is the trivial T used throughout this package's tests.
type mockClient struct {
	id     int
	closed bool
}

// mockAdapter is a configurable Adapter[*mockClient] for exercising
// the base pool without a real network dependency.
type mockAdapter struct {
	mu sync.Mutex

	nextID int32

	// failURLs, when set, makes CreateClient fail for that endpoint.
	failURLs map[string]bool

	// probeResult, when set for a URL, is returned by ProbeClient;
	// absent entries default to true.
	probeResult map[string]bool

	created int32
	closedN int32
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{
		failURLs:    make(map[string]bool),
		probeResult: make(map[string]bool),
	}
}

func (a *mockAdapter) CreateClient(ctx context.Context, ep Endpoint) (*mockClient, error) {
	a.mu.Lock()
	fail := a.failURLs[ep.URL]
	a.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("mock: dial %s refused", ep.URL)
	}
	id := atomic.AddInt32(&a.nextID, 1)
	atomic.AddInt32(&a.created, 1)
	return &mockClient{id: int(id)}, nil
}

func (a *mockAdapter) ProbeClient(ctx context.Context, c *mockClient) bool {
	return !c.closed
}

func (a *mockAdapter) CloseClient(c *mockClient) {
	c.closed = true
	atomic.AddInt32(&a.closedN, 1)
}

func (a *mockAdapter) setFails(url string, fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failURLs[url] = fail
}

var _ Adapter[*mockClient] = (*mockAdapter)(nil)
