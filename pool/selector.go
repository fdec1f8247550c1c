package pool

import "time"

// resetIfExpired implements the lazy Open->Closed breaker transition:
// a selection attempt touching an open-breaker endpoint after
// CircuitBreakerTimeout has elapsed clears the breaker before
// selection proceeds. Must be called with p.mu held.
func (p *Pool[T]) resetIfExpired(url string, now time.Time) {
	b := p.breakers[url]
	if b == nil || !b.open {
		return
	}
	if now.Sub(b.openedAt) >= p.cfg.CircuitBreakerTimeout {
		b.open = false
		b.errorCount = 0
		p.publish(EventCircuitBreaker, url, map[string]any{"action": "reset"})
	}
}

// candidateEndpoints returns, in config order, the endpoints that are
// both healthy and not breaker-open at this instant. Must be called
// with p.mu held; it mutates breaker state via resetIfExpired as a
// side effect.
func (p *Pool[T]) candidateEndpoints() []Endpoint {
	now := time.Now()
	out := make([]Endpoint, 0, len(p.cfg.Endpoints))
	for _, ep := range p.cfg.Endpoints {
		p.resetIfExpired(ep.URL, now)
		h := p.health[ep.URL]
		b := p.breakers[ep.URL]
		if h != nil && h.Healthy && (b == nil || !b.open) {
			out = append(out, ep)
		}
	}
	return out
}

// selectWeighted implements weighted round-robin keyed by the
// monotonic requestsServed counter. Given candidates in config order,
// let W be the sum of their weights and i = requestsServed mod W; walk
// candidates in
// order accumulating weight until the running sum exceeds i. Ties
// (equal accumulated position) resolve to config order because the
// walk is deterministic and linear.
func selectWeighted(candidates []Endpoint, requestsServed uint64) Endpoint {
	total := 0
	for _, ep := range candidates {
		total += ep.weight()
	}
	i := int(requestsServed % uint64(total))
	running := 0
	for _, ep := range candidates {
		running += ep.weight()
		if running > i {
			return ep
		}
	}
	// unreachable given the invariant total > i, but keeps the
	// compiler happy and is a safe fallback.
	return candidates[len(candidates)-1]
}

// alternativeEndpoints returns the healthy, non-breaker-open
// candidates other than excludeURL, in config order. Must be called
// with p.mu held.
func (p *Pool[T]) alternativeEndpoints(excludeURL string) []Endpoint {
	all := p.candidateEndpoints()
	out := make([]Endpoint, 0, len(all))
	for _, ep := range all {
		if ep.URL != excludeURL {
			out = append(out, ep)
		}
	}
	return out
}
