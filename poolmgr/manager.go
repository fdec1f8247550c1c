// Package poolmgr is a named-pool registry on top of package pool,
// modeled on the per-chain-id RPCPoolManager pattern used by
// multi-chain RPC clients: one manager keyed by network name, each
// entry started/stopped/monitored uniformly regardless of which
// protocol adapter it was built with.
//
// Because pool.Pool[T] is generic per client type but a registry must
// hold pools of different T side by side, Manager stores each pool
// behind the non-generic managedPool interface for lifecycle/stats/
// events, and offers the package-level generic function WithClient
// for type-safe acquire/release against a specific named pool (Go
// methods cannot themselves be generic).
package poolmgr

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/poolmetrics"
	"github.com/relaymesh/connpool/rlog"
)

// managedPool is the subset of pool.Pool[T]'s API that doesn't depend
// on T; every pool.Pool[T] satisfies it regardless of T.
type managedPool interface {
	Name() string
	Start(context.Context) error
	Stop()
	GetStats() pool.Stats
	Events() (<-chan pool.Event, func())
}

type entry struct {
	poolType string
	pool     managedPool
	typed    any // the concrete *pool.Pool[T], for WithClient's type assertion

	// signingAdapter, when set, is the *cosmosadapter.SigningAdapter
	// backing this entry. Only signing pools populate it; it's read by
	// WithCosmosSigningClient to build the per-wallet creation closure
	// passed to pool.Pool.AcquireTransient.
	signingAdapter any

	cancel context.CancelFunc
}

// Manager owns a named set of pools, aggregates their events onto one
// stream, and bridges each into a shared metrics collector.
type Manager struct {
	log     rlog.Logger
	metrics *poolmetrics.Collector

	mu      sync.RWMutex
	entries map[string]*entry

	events    chan pool.Event
	forwardWG sync.WaitGroup
}

// NewManager returns an empty Manager. metrics may be nil to disable
// the Prometheus bridge (e.g. in tests).
func NewManager(log rlog.Logger, metrics *poolmetrics.Collector) *Manager {
	return &Manager{
		log:     log.New("component", "poolmgr"),
		metrics: metrics,
		entries: make(map[string]*entry),
		events:  make(chan pool.Event, 256),
	}
}

// Register adds a new named pool of client type T. It does not start
// the pool; call StartAll or Start the returned pool yourself, then
// have Manager pick up its lifecycle via this registration.
func Register[T any](m *Manager, poolType string, p *pool.Pool[T]) error {
	return register(m, poolType, p, nil)
}

// registerSigning is Register plus a stashed signingAdapter, used
// exclusively by the Cosmos-signing registration helpers in typed.go
// so WithCosmosSigningClient can reach CreateClientWithWallet.
func registerSigning[T any](m *Manager, poolType string, p *pool.Pool[T], signingAdapter any) error {
	return register(m, poolType, p, signingAdapter)
}

func register[T any](m *Manager, poolType string, p *pool.Pool[T], signingAdapter any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	if _, exists := m.entries[name]; exists {
		return fmt.Errorf("poolmgr: %w: %s", pool.ErrDuplicatePool, name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{poolType: poolType, pool: p, typed: p, signingAdapter: signingAdapter, cancel: cancel}
	m.entries[name] = e

	events, unsubscribe := p.Events()
	m.forwardWG.Add(1)
	go func() {
		defer m.forwardWG.Done()
		defer unsubscribe()
		m.forward(ctx, events)
	}()

	if m.metrics != nil {
		bridgeEvents, bridgeUnsub := p.Events()
		m.forwardWG.Add(1)
		go func() {
			defer m.forwardWG.Done()
			defer bridgeUnsub()
			m.metrics.Bridge(ctx, bridgeEvents)
		}()
	}

	return nil
}

func (m *Manager) forward(ctx context.Context, events <-chan pool.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			select {
			case m.events <- ev:
			default:
				// Manager's aggregate stream is best-effort too; a slow
				// consumer must never stall a pool's own goroutines.
			}
		}
	}
}

// Events returns the manager's aggregate event stream, merging every
// registered pool's events. It is not per-subscriber buffered beyond
// the single shared channel created in NewManager; callers that need
// isolation should drain promptly.
func (m *Manager) Events() <-chan pool.Event { return m.events }

// WithClient acquires a client from the named pool of type T, invokes
// fn, and releases the client afterward regardless of fn's outcome.
// It is the single entry point callers should use to exercise a pool
// rather than reaching for Acquire directly, so release is never
// forgotten.
func WithClient[T any](ctx context.Context, m *Manager, name string, fn func(T) error) error {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("poolmgr: %w: %s", pool.ErrUnknownPool, name)
	}
	p, ok := e.typed.(*pool.Pool[T])
	if !ok {
		return fmt.Errorf("poolmgr: pool %q is not of the requested client type", name)
	}

	client, release, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(client)
}

// StartAll starts every registered pool in parallel and returns the
// first error encountered, if any (the others still run to
// completion via errgroup).
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		g.Go(func() error { return e.pool.Start(gctx) })
	}
	return g.Wait()
}

// StopAll stops every registered pool in parallel and tears down each
// pool's event-forwarding and metrics-bridge goroutines.
func (m *Manager) StopAll() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.pool.Stop()
			e.cancel()
		}()
	}
	wg.Wait()
	m.forwardWG.Wait()
}

// Remove stops and unregisters a single named pool without affecting
// the rest, for dynamic reconfiguration.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("poolmgr: %w: %s", pool.ErrUnknownPool, name)
	}
	delete(m.entries, name)
	m.mu.Unlock()

	e.pool.Stop()
	e.cancel()
	return nil
}

// Names returns every currently registered pool name.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	return names
}
