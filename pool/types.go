// Package pool implements a generic, protocol-agnostic RPC connection
// pool: it owns long-lived client objects for a set of endpoints,
// load-balances acquisitions across them, isolates failing endpoints
// with a circuit breaker, probes liveness, reaps idle clients, and
// reports stats and events. Protocol adapters (package ethadapter,
// cosmosadapter) supply the three operations the pool cannot know on
// its own: how to create, probe, and close a client.
package pool

import (
	"time"

	"github.com/relaymesh/connpool/pool/poolevent"
)

// Endpoint is the address of one remote RPC node plus the knobs a
// pool may override per-endpoint. Endpoints are immutable for the
// life of a pool; URL is its identity.
type Endpoint struct {
	URL                 string
	Weight              int           // selection weight, default 1
	MaxConnections      int           // 0 means "use pool-wide cap"
	ConnectTimeout      time.Duration // 0 means "use pool-wide timeout"
	HealthCheckInterval time.Duration // 0 means "use pool-wide interval"
}

func (e Endpoint) weight() int {
	if e.Weight <= 0 {
		return 1
	}
	return e.Weight
}

// Config is the pool-wide configuration. Name, Endpoints and the caps
// below are recognized keys per the external configuration surface;
// unrecognized keys are rejected at load time by package poolconfig,
// not here.
type Config struct {
	Name                      string
	Endpoints                 []Endpoint
	MaxConnectionsPerEndpoint int
	MinConnections            int
	ConnectTimeout            time.Duration
	IdleTimeout               time.Duration
	HealthCheckInterval       time.Duration
	ReapInterval              time.Duration // hint: IdleTimeout/2 if zero
	CircuitBreakerThreshold   int
	CircuitBreakerTimeout     time.Duration
	MaxRetries                int           // informational only, passed to adapters
	RetryDelay                time.Duration // informational only, passed to adapters
}

func (c Config) reapInterval() time.Duration {
	if c.ReapInterval > 0 {
		return c.ReapInterval
	}
	return c.IdleTimeout / 2
}

func (c Config) endpointCap(ep Endpoint) int {
	if ep.MaxConnections > 0 {
		return ep.MaxConnections
	}
	return c.MaxConnectionsPerEndpoint
}

func (c Config) endpointConnectTimeout(ep Endpoint) time.Duration {
	if ep.ConnectTimeout > 0 {
		return ep.ConnectTimeout
	}
	return c.ConnectTimeout
}

// PooledClient is the ownership unit: one live client handle plus the
// pool-owned bookkeeping around it. It is exclusively owned by the
// Pool; callers only ever see the embedded Client value via Acquire,
// never this wrapper.
type PooledClient[T any] struct {
	// ID uniquely identifies this client across the pool's event
	// stream, correlating its created/released/destroyed events.
	ID string

	Client     T
	Endpoint   string
	CreatedAt  time.Time
	LastUsedAt time.Time
	InUse      bool
	Healthy    bool

	// ChainID is not set by the base pool: createAndStore leaves it
	// empty for every client, and adapters have no way to fill it in.
	// The chain id an adapter verified is only available on the
	// adapter's own client value (e.g. cosmosadapter.QueryClient.ChainID).
	ChainID string
}

// EndpointHealth is the externally visible health record for one
// endpoint.
type EndpointHealth struct {
	URL        string
	Healthy    bool
	Latency    time.Duration
	LastCheck  time.Time
	ErrorCount int
	LastError  string
}

func (h *EndpointHealth) clampErrorCount() {
	if h.ErrorCount < 0 {
		h.ErrorCount = 0
	}
}

// breaker is the per-endpoint circuit breaker state machine.
// Closed<->Open only; reset happens lazily on the next selection
// attempt that touches the endpoint once CircuitBreakerTimeout has
// elapsed (the alternative, probe-driven reset, was not adopted; see
// DESIGN.md).
type breaker struct {
	open       bool
	openedAt   time.Time
	errorCount int
}

// Stats is a point-in-time, value-copy snapshot of one pool.
type Stats struct {
	Name               string
	TotalConnections   int
	ActiveConnections  int
	IdleConnections    int
	FailedConnections  int
	RequestsServed     uint64
	AverageLatency     time.Duration
	CircuitBreakerOpen bool
	Endpoints          []EndpointHealth
}

// Event re-exports poolevent.Event so callers importing package pool
// don't need a second import for the common case of reading events
// off Pool.Events().
type Event = poolevent.Event

// EventType re-exports poolevent.Type.
type EventType = poolevent.Type

const (
	EventPoolStarted         = poolevent.PoolStarted
	EventPoolStopped         = poolevent.PoolStopped
	EventConnectionCreated   = poolevent.ConnectionCreated
	EventConnectionReleased  = poolevent.ConnectionReleased
	EventConnectionDestroyed = poolevent.ConnectionDestroyed
	EventHealthCheck         = poolevent.HealthCheck
	EventCircuitBreaker      = poolevent.CircuitBreaker
	EventError               = poolevent.Error
)
