package pool

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// createAndStore dials a new client on endpoint, records it under the
// pool lock, and accounts creation failures against the endpoint's
// breaker: each creation failure increments the breaker's error
// count.
func (p *Pool[T]) createAndStore(ctx context.Context, ep Endpoint) (*PooledClient[T], error) {
	timeout := p.cfg.endpointConnectTimeout(ep)
	dialCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	client, err := p.adapter.CreateClient(dialCtx, ep)
	if err != nil {
		p.recordCreateFailure(ep.URL, err)
		return nil, newErr(ErrClientCreateFailed, p.cfg.Name, ep.URL, err)
	}

	pc := &PooledClient[T]{
		ID:         uuid.NewString(),
		Client:     client,
		Endpoint:   ep.URL,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
		Healthy:    true,
	}

	p.mu.Lock()
	p.clients[ep.URL] = append(p.clients[ep.URL], pc)
	p.mu.Unlock()

	p.publish(EventConnectionCreated, ep.URL, map[string]any{
		"client_id":        pc.ID,
		"duration_seconds": time.Since(start).Seconds(),
	})

	if notifier, ok := any(client).(ErrorNotifier); ok {
		if ch := notifier.NotifyErrors(); ch != nil {
			go p.watchClientErrors(pc, ch)
		}
	}
	return pc, nil
}

// watchClientErrors listens for an out-of-band failure report from an
// adapter that implements ErrorNotifier and flips the client unhealthy
// the moment one arrives, instead of waiting for the next health
// probe. It exits when the pool stops or the adapter closes its
// channel, whichever comes first; it is not tracked by p.wg since it
// may start at any time during the pool's life, not only at Start.
func (p *Pool[T]) watchClientErrors(pc *PooledClient[T], errCh <-chan error) {
	select {
	case <-p.stopCh:
		return
	case err, ok := <-errCh:
		if !ok || err == nil {
			return
		}
		p.mu.Lock()
		pc.Healthy = false
		if h := p.health[pc.Endpoint]; h != nil {
			h.Healthy = false
			h.ErrorCount++
			h.LastError = err.Error()
		}
		p.mu.Unlock()

		p.log.Warn("client reported async error", "endpoint", pc.Endpoint, "err", err)
		p.publish(EventError, pc.Endpoint, map[string]any{"err": err.Error(), "error_type": "client_error"})
	}
}

// recordCreateFailure increments the endpoint's breaker error count
// and trips the breaker open if the configured threshold is reached.
//
// The circuit_breaker{opened} event is published while p.mu is still
// held, not after unlocking: Bus.Publish never blocks (drop-oldest) and
// never touches p.mu, so there's no deadlock risk, and publishing
// inside the critical section guarantees no concurrent Acquire can
// observe the tripped breaker and fail with ErrCircuitBreakerOpen
// before the event reaches subscribers.
func (p *Pool[T]) recordCreateFailure(url string, cause error) {
	p.mu.Lock()
	b := p.breakers[url]
	h := p.health[url]
	var tripped bool
	if b != nil {
		b.errorCount++
		if !b.open && b.errorCount >= p.cfg.CircuitBreakerThreshold {
			b.open = true
			b.openedAt = time.Now()
			tripped = true
		}
	}
	if h != nil {
		h.ErrorCount++
		h.LastError = cause.Error()
	}
	if tripped {
		p.publish(EventCircuitBreaker, url, map[string]any{"action": "opened"})
	}
	p.mu.Unlock()

	p.log.Warn("client creation failed", "endpoint", url, "err", cause)
	p.publish(EventError, url, map[string]any{"err": cause.Error(), "error_type": "client_create_failed"})
	if tripped {
		p.log.Warn("circuit breaker opened", "endpoint", url)
	}
}

// Acquire selects a healthy endpoint, leases a client on it (reusing
// an idle one or creating/failing over as needed), and returns the
// live client plus an idempotent release function.
func (p *Pool[T]) Acquire(ctx context.Context) (T, func(), error) {
	var zero T

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return zero, func() {}, newErr(ErrPoolStopped, p.cfg.Name, "", nil)
	}
	candidates := p.candidateEndpoints()
	if len(candidates) == 0 {
		err := p.noCandidatesError()
		p.mu.Unlock()
		return zero, func() {}, err
	}
	selected := selectWeighted(candidates, p.requestsServed)
	p.requestsServed++
	p.mu.Unlock()

	pc, err := p.acquireOnEndpoint(ctx, selected, map[string]bool{})
	if err != nil {
		return zero, func() {}, err
	}

	start := time.Now()
	release := p.releaseFunc(pc, start)
	return pc.Client, release, nil
}

// noCandidatesError decides between NoHealthyEndpoints and
// CircuitBreakerOpen when selection finds nothing to choose from.
// With a single configured endpoint that is specifically breaker-open
// (as opposed to merely unhealthy), CircuitBreakerOpen is the more
// informative error to return; every other empty-candidate case is
// NoHealthyEndpoints. Must be called with p.mu held.
func (p *Pool[T]) noCandidatesError() error {
	if len(p.cfg.Endpoints) == 1 {
		ep := p.cfg.Endpoints[0]
		if b := p.breakers[ep.URL]; b != nil && b.open {
			return newErr(ErrCircuitBreakerOpen, p.cfg.Name, ep.URL, nil)
		}
	}
	return newErr(ErrNoHealthyEndpoints, p.cfg.Name, "", nil)
}

// acquireOnEndpoint reuses an idle client on ep, creates one if there's
// spare capacity, or fails over to an alternative endpoint. excluded
// tracks endpoints already tried in this acquisition chain so the
// failover recursion can't bounce back and forth.
func (p *Pool[T]) acquireOnEndpoint(ctx context.Context, ep Endpoint, excluded map[string]bool) (*PooledClient[T], error) {
	excluded[ep.URL] = true

	p.mu.Lock()
	capLimit := p.cfg.endpointCap(ep)
	var idle *PooledClient[T]
	for _, c := range p.clients[ep.URL] {
		if idle == nil && !c.InUse && c.Healthy {
			idle = c
		}
	}
	if idle != nil {
		idle.InUse = true
		idle.LastUsedAt = time.Now()
		p.mu.Unlock()
		return idle, nil
	}
	// Reserve the slot before dialing: in-flight creations count against
	// the cap, so two concurrent acquisitions can't both pass this check
	// and push the endpoint past its limit.
	count := len(p.clients[ep.URL]) + p.pending[ep.URL]
	hasCapacity := capLimit <= 0 || count < capLimit
	if hasCapacity {
		p.pending[ep.URL]++
	}
	p.mu.Unlock()

	if hasCapacity {
		pc, err := p.createAndStore(ctx, ep)
		p.mu.Lock()
		p.pending[ep.URL]--
		if err == nil {
			pc.InUse = true
			pc.LastUsedAt = time.Now()
		}
		p.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return pc, nil
	}

	p.mu.Lock()
	alternatives := p.alternativeEndpoints(ep.URL)
	p.mu.Unlock()
	for _, alt := range alternatives {
		if excluded[alt.URL] {
			continue
		}
		return p.acquireOnEndpoint(ctx, alt, excluded)
	}

	return nil, newErr(ErrCapacityExhausted, p.cfg.Name, ep.URL, nil)
}

// releaseFunc returns a one-shot, idempotent release closure. It
// captures only the client pointer and the pool, never retains the
// caller's context, and is safe to call from any goroutine.
func (p *Pool[T]) releaseFunc(pc *PooledClient[T], start time.Time) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			pc.InUse = false
			pc.LastUsedAt = time.Now()
			p.totalLatency += time.Since(start)
			p.mu.Unlock()

			p.publish(EventConnectionReleased, pc.Endpoint, map[string]any{"client_id": pc.ID})
		})
	}
}

// AcquireTransient is the acquisition path for clients that cannot be
// pooled across callers: currently, signing clients bound to a
// caller-supplied wallet. It reuses the pool's ordinary endpoint
// selection (weighted round robin, health- and breaker-aware) so a
// wallet-bound client still benefits from load distribution and
// circuit breaking, but the client itself is always freshly created by
// create and always closed on release rather than being stored in
// p.clients or offered for idle reuse. Creation failures are still
// accounted against the endpoint's breaker, matching Acquire.
func (p *Pool[T]) AcquireTransient(ctx context.Context, create func(context.Context, Endpoint) (T, error)) (T, func(), error) {
	var zero T

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return zero, func() {}, newErr(ErrPoolStopped, p.cfg.Name, "", nil)
	}
	candidates := p.candidateEndpoints()
	if len(candidates) == 0 {
		err := p.noCandidatesError()
		p.mu.Unlock()
		return zero, func() {}, err
	}
	selected := selectWeighted(candidates, p.requestsServed)
	p.requestsServed++
	p.mu.Unlock()

	timeout := p.cfg.endpointConnectTimeout(selected)
	dialCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dialStart := time.Now()
	client, err := create(dialCtx, selected)
	if err != nil {
		p.recordCreateFailure(selected.URL, err)
		return zero, func() {}, newErr(ErrClientCreateFailed, p.cfg.Name, selected.URL, err)
	}
	id := uuid.NewString()
	p.publish(EventConnectionCreated, selected.URL, map[string]any{
		"client_id":        id,
		"duration_seconds": time.Since(dialStart).Seconds(),
	})

	start := time.Now()
	var once sync.Once
	release := func() {
		once.Do(func() {
			p.mu.Lock()
			p.totalLatency += time.Since(start)
			p.mu.Unlock()

			p.publish(EventConnectionReleased, selected.URL, map[string]any{"client_id": id})
			p.adapter.CloseClient(client)
			p.publish(EventConnectionDestroyed, selected.URL, map[string]any{"client_id": id})
		})
	}
	return client, release, nil
}
