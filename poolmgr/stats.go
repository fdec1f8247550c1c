package poolmgr

import "github.com/relaymesh/connpool/pool"

// EndpointStats is the JSON projection of one endpoint's health
// record within a PoolStats snapshot.
type EndpointStats struct {
	URL        string  `json:"url"`
	IsHealthy  bool    `json:"isHealthy"`
	Latency    float64 `json:"latency"` // seconds
	LastCheck  int64   `json:"lastCheck"`
	ErrorCount int     `json:"errorCount"`
	LastError  string  `json:"lastError,omitempty"`
}

// PoolStats is the JSON projection of one pool's snapshot, matching
// the external stats surface's documented field names.
type PoolStats struct {
	Name               string          `json:"name"`
	Type               string          `json:"-"` // internal only; not part of the documented shape
	TotalConnections   int             `json:"totalConnections"`
	ActiveConnections  int             `json:"activeConnections"`
	IdleConnections    int             `json:"idleConnections"`
	FailedConnections  int             `json:"failedConnections"`
	RequestsServed     uint64          `json:"requestsServed"`
	AverageLatency     float64         `json:"averageLatency"` // seconds
	CircuitBreakerOpen bool            `json:"circuitBreakerOpen"`
	Endpoints          []EndpointStats `json:"endpoints"`
}

// ManagerStats is the aggregate, point-in-time snapshot across every
// registered pool, matching the external /stats JSON shape.
type ManagerStats struct {
	TotalPools          int         `json:"totalPools"`
	ActivePools         int         `json:"activePools"`
	TotalConnections    int         `json:"totalConnections"`
	ActiveConnections   int         `json:"activeConnections"`
	TotalRequestsServed uint64      `json:"totalRequestsServed"`
	AverageLatency      float64     `json:"averageLatency"` // seconds
	Pools               []PoolStats `json:"pools"`
	UnhealthyPools      []string    `json:"unhealthyPools"`
	CircuitBreakersOpen []string    `json:"circuitBreakersOpen"`
}

func toPoolStats(poolType string, s pool.Stats) PoolStats {
	endpoints := make([]EndpointStats, 0, len(s.Endpoints))
	for _, ep := range s.Endpoints {
		endpoints = append(endpoints, EndpointStats{
			URL:        ep.URL,
			IsHealthy:  ep.Healthy,
			Latency:    ep.Latency.Seconds(),
			LastCheck:  ep.LastCheck.Unix(),
			ErrorCount: ep.ErrorCount,
			LastError:  ep.LastError,
		})
	}
	return PoolStats{
		Name:               s.Name,
		Type:               poolType,
		TotalConnections:   s.TotalConnections,
		ActiveConnections:  s.ActiveConnections,
		IdleConnections:    s.IdleConnections,
		FailedConnections:  s.FailedConnections,
		RequestsServed:     s.RequestsServed,
		AverageLatency:     s.AverageLatency.Seconds(),
		CircuitBreakerOpen: s.CircuitBreakerOpen,
		Endpoints:          endpoints,
	}
}

// Stats returns an aggregate snapshot of every registered pool,
// summed into ManagerStats per the documented external shape.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := ManagerStats{
		TotalPools: len(entries),
		Pools:      make([]PoolStats, 0, len(entries)),
	}

	var totalLatencyWeighted float64
	for _, e := range entries {
		ps := toPoolStats(e.poolType, e.pool.GetStats())
		out.Pools = append(out.Pools, ps)

		out.TotalConnections += ps.TotalConnections
		out.ActiveConnections += ps.ActiveConnections
		out.TotalRequestsServed += ps.RequestsServed
		totalLatencyWeighted += ps.AverageLatency * float64(ps.RequestsServed)

		if ps.TotalConnections > 0 {
			out.ActivePools++
		}
		if ps.CircuitBreakerOpen {
			out.CircuitBreakersOpen = append(out.CircuitBreakersOpen, ps.Name)
		}

		healthyEndpoints := 0
		for _, ep := range ps.Endpoints {
			if ep.IsHealthy {
				healthyEndpoints++
			}
		}
		if healthyEndpoints == 0 {
			out.UnhealthyPools = append(out.UnhealthyPools, ps.Name)
		}
	}
	if out.TotalRequestsServed > 0 {
		out.AverageLatency = totalLatencyWeighted / float64(out.TotalRequestsServed)
	}

	return out
}

// SampleMetrics pushes every registered pool's current stats into the
// manager's metrics collector, if one was configured. Call this on a
// timer (see poolmetrics.SampleLoop).
func (m *Manager) SampleMetrics() {
	if m.metrics == nil {
		return
	}
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		m.metrics.SamplePool(e.poolType, e.pool.GetStats())
	}
}
