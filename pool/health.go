package pool

import (
	"context"
	"time"
)

// healthLoop runs the periodic liveness probe for every endpoint
// until Stop is called.
func (p *Pool[T]) healthLoop() {
	defer p.wg.Done()

	interval := p.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.probeAll()
		}
	}
}

// probeAll probes every configured endpoint due for a check. An
// endpoint with its own HealthCheckInterval override is skipped while
// its last probe is more recent than that interval; everything else is
// probed on every tick.
func (p *Pool[T]) probeAll() {
	now := time.Now()
	for _, ep := range p.cfg.Endpoints {
		if ep.HealthCheckInterval > 0 {
			p.mu.Lock()
			last := p.health[ep.URL].LastCheck
			p.mu.Unlock()
			if !last.IsZero() && now.Sub(last) < ep.HealthCheckInterval {
				continue
			}
		}
		p.probeEndpoint(ep)
	}
}

func (p *Pool[T]) probeEndpoint(ep Endpoint) {
	ctx := context.Background()
	timeout := p.cfg.endpointConnectTimeout(ep)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p.mu.Lock()
	var idle *PooledClient[T]
	for _, c := range p.clients[ep.URL] {
		if !c.InUse {
			idle = c
			break
		}
	}
	p.mu.Unlock()

	var (
		client    T
		temporary bool
	)
	if idle != nil {
		client = idle.Client
	} else {
		created, err := p.adapter.CreateClient(ctx, ep)
		if err != nil {
			p.recordProbeResult(ep.URL, false, 0, err)
			return
		}
		client = created
		temporary = true
	}

	start := time.Now()
	ok := p.adapter.ProbeClient(ctx, client)
	latency := time.Since(start)

	if temporary {
		p.adapter.CloseClient(client)
	}

	var probeErr error
	if !ok {
		probeErr = newErr(ErrProbeFailed, p.cfg.Name, ep.URL, nil)
	}
	p.recordProbeResult(ep.URL, ok, latency, probeErr)
}

// recordProbeResult updates EndpointHealth and, on failure, accounts
// the error against the breaker: each failed probe increments the
// breaker's error count. A successful probe
// decrements EndpointHealth.ErrorCount by one, clamped at zero, but
// never touches the breaker's error count directly; only the lazy
// Open->Closed transition in resetIfExpired clears that.
//
// As in recordCreateFailure, the circuit_breaker{opened} event is
// published before p.mu is released, so a concurrent Acquire can never
// observe the newly-tripped breaker and fail with ErrCircuitBreakerOpen
// ahead of the event that explains why.
func (p *Pool[T]) recordProbeResult(url string, ok bool, latency time.Duration, probeErr error) {
	p.mu.Lock()
	h := p.health[url]
	if h != nil {
		h.Healthy = ok
		h.Latency = latency
		h.LastCheck = time.Now()
		if ok {
			h.ErrorCount--
			h.clampErrorCount()
		} else {
			h.ErrorCount++
			if probeErr != nil {
				h.LastError = probeErr.Error()
			}
		}
	}
	var tripped bool
	if !ok {
		if b := p.breakers[url]; b != nil {
			b.errorCount++
			if !b.open && b.errorCount >= p.cfg.CircuitBreakerThreshold {
				b.open = true
				b.openedAt = time.Now()
				tripped = true
			}
		}
	}
	if tripped {
		p.publish(EventCircuitBreaker, url, map[string]any{"action": "opened"})
	}
	p.mu.Unlock()

	p.publish(EventHealthCheck, url, map[string]any{"healthy": ok, "latency_ms": latency.Milliseconds()})
	if tripped {
		p.log.Warn("circuit breaker opened", "endpoint", url)
	}
	if !ok {
		p.log.Debug("health probe failed", "endpoint", url)
	}
}
