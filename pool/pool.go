package pool

import (
	"context"
	"sync"
	"time"

	"github.com/relaymesh/connpool/pool/poolevent"
	"github.com/relaymesh/connpool/rlog"
)

// Pool owns every PooledClient[T] for one named set of endpoints
// serving a single protocol family and logical network. It is safe
// for concurrent use; all mutation of endpoint -> client lists,
// breaker state, and health records happens under mu.
type Pool[T any] struct {
	cfg     Config
	adapter Adapter[T]
	log     rlog.Logger
	bus     *poolevent.Bus

	mu             sync.Mutex
	running        bool
	clients        map[string][]*PooledClient[T]
	pending        map[string]int // in-flight creations, counted against the endpoint cap
	health         map[string]*EndpointHealth
	breakers       map[string]*breaker
	requestsServed uint64
	totalLatency   time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Pool for the given config and adapter. The pool is
// not started until Start is called.
func New[T any](cfg Config, adapter Adapter[T], log rlog.Logger) *Pool[T] {
	p := &Pool[T]{
		cfg:      cfg,
		adapter:  adapter,
		log:      log.New("pool", cfg.Name),
		bus:      poolevent.NewBus(),
		clients:  make(map[string][]*PooledClient[T]),
		pending:  make(map[string]int),
		health:   make(map[string]*EndpointHealth),
		breakers: make(map[string]*breaker),
	}
	for _, ep := range cfg.Endpoints {
		p.health[ep.URL] = &EndpointHealth{URL: ep.URL, Healthy: true}
		p.breakers[ep.URL] = &breaker{}
	}
	return p
}

// Name returns the pool's configured name.
func (p *Pool[T]) Name() string { return p.cfg.Name }

// Events returns a subscription to this pool's event stream. Call the
// returned function to unsubscribe.
func (p *Pool[T]) Events() (<-chan Event, func()) { return p.bus.Subscribe() }

func (p *Pool[T]) publish(typ EventType, endpoint string, data map[string]any) {
	p.bus.Publish(Event{
		Type:      typ,
		Pool:      p.cfg.Name,
		Endpoint:  endpoint,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Start pre-warms clients and launches the health-probe and reap
// loops. It is idempotent: calling Start again on a running pool logs
// a warning and returns nil.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.log.Warn("start called on already-running pool")
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.prewarm(ctx)

	p.wg.Add(2)
	go p.healthLoop()
	go p.reapLoop()

	p.publish(EventPoolStarted, "", nil)
	p.log.Info("pool started", "endpoints", len(p.cfg.Endpoints))
	return nil
}

// prewarm creates floor(minConnections/endpointCount) clients on each
// endpoint. Creation failures are logged and counted against the
// endpoint's breaker but never abort start.
func (p *Pool[T]) prewarm(ctx context.Context) {
	n := len(p.cfg.Endpoints)
	if n == 0 || p.cfg.MinConnections <= 0 {
		return
	}
	perEndpoint := p.cfg.MinConnections / n
	if perEndpoint == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, ep := range p.cfg.Endpoints {
		ep := ep
		for i := 0; i < perEndpoint; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := p.createAndStore(ctx, ep); err != nil {
					p.log.Warn("prewarm failed", "endpoint", ep.URL, "err", err)
				}
			}()
		}
	}
	wg.Wait()
}

// Stop halts the timers and closes every client on every endpoint in
// parallel, best-effort. It is idempotent.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	all := p.clients
	p.clients = make(map[string][]*PooledClient[T])
	p.mu.Unlock()

	p.wg.Wait()

	var wg sync.WaitGroup
	for url, clients := range all {
		for _, c := range clients {
			c := c
			url := url
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.adapter.CloseClient(c.Client)
				p.publish(EventConnectionDestroyed, url, map[string]any{"client_id": c.ID})
			}()
		}
	}
	wg.Wait()

	p.publish(EventPoolStopped, "", nil)
	p.log.Info("pool stopped")
}

// GetStats returns a value-copy snapshot of the pool's current state.
func (p *Pool[T]) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{
		Name:           p.cfg.Name,
		RequestsServed: p.requestsServed,
	}
	if p.requestsServed > 0 {
		stats.AverageLatency = p.totalLatency / time.Duration(p.requestsServed)
	}
	for _, ep := range p.cfg.Endpoints {
		h := *p.health[ep.URL]
		h.clampErrorCount()
		stats.Endpoints = append(stats.Endpoints, h)
		if b := p.breakers[ep.URL]; b != nil && b.open {
			stats.CircuitBreakerOpen = true
		}
		for _, c := range p.clients[ep.URL] {
			stats.TotalConnections++
			if c.InUse {
				stats.ActiveConnections++
			} else if c.Healthy {
				stats.IdleConnections++
			} else {
				stats.FailedConnections++
			}
		}
	}
	return stats
}
