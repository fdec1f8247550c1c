// Package poolmetrics exposes pool state as Prometheus collectors: a
// fixed set of labeled gauges, counters, and histograms under the
// connection_pool_ prefix, updated both by periodic snapshot sampling
// and reactively from the pool/manager event stream.
package poolmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaymesh/connpool/pool"
)

const namespace = "connection_pool"

// Collector owns every metric this module exposes. It is built around
// a private prometheus.Registry rather than the global
// prometheus.DefaultRegisterer so a hosting process can mount several
// independent collectors (e.g. one per test) without collisions.
type Collector struct {
	Registry *prometheus.Registry

	clientsTotal  *prometheus.GaugeVec
	clientsActive *prometheus.GaugeVec
	clientsIdle   *prometheus.GaugeVec
	clientsFailed *prometheus.GaugeVec

	endpointHealthy *prometheus.GaugeVec
	endpointLatency *prometheus.GaugeVec
	breakerOpen     *prometheus.GaugeVec

	requestsTotal     *prometheus.CounterVec
	clientsCreated    *prometheus.CounterVec
	clientsDestroyed  *prometheus.CounterVec
	healthChecksTotal *prometheus.CounterVec
	breakerTripsTotal *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec

	requestDuration  *prometheus.HistogramVec
	creationDuration *prometheus.HistogramVec
}

// NewCollector registers every collector on a fresh registry and
// returns it.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		Registry: reg,
		clientsTotal: gaugeVec(reg, "clients_total", "Total tracked clients.", "pool", "pool_type", "endpoint"),
		clientsActive: gaugeVec(reg, "clients_active", "Clients currently leased.", "pool", "pool_type", "endpoint"),
		clientsIdle: gaugeVec(reg, "clients_idle", "Clients idle and available.", "pool", "pool_type", "endpoint"),
		clientsFailed: gaugeVec(reg, "clients_failed", "Clients marked unhealthy.", "pool", "pool_type", "endpoint"),
		endpointHealthy: gaugeVec(reg, "endpoint_healthy", "1 if the endpoint's last probe succeeded.", "pool", "endpoint"),
		endpointLatency: gaugeVec(reg, "endpoint_latency_seconds", "Last observed probe latency.", "pool", "endpoint"),
		breakerOpen: gaugeVec(reg, "breaker_open", "1 if the endpoint's circuit breaker is open.", "pool", "endpoint"),
		requestsTotal: counterVec(reg, "requests_total", "Acquisitions by outcome.", "pool", "status"),
		clientsCreated: counterVec(reg, "clients_created_total", "Clients created.", "pool", "endpoint"),
		clientsDestroyed: counterVec(reg, "clients_destroyed_total", "Clients destroyed.", "pool", "endpoint"),
		healthChecksTotal: counterVec(reg, "health_checks_total", "Health probes by result.", "pool", "endpoint", "result"),
		breakerTripsTotal: counterVec(reg, "breaker_trips_total", "Circuit breaker open transitions.", "pool", "endpoint"),
		errorsTotal: counterVec(reg, "errors_total", "Errors by kind.", "pool", "error_type"),
		requestDuration: histogramVec(reg, "request_duration_seconds", "Acquire-to-release duration.",
			[]float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}, "pool"),
		creationDuration: histogramVec(reg, "client_creation_duration_seconds", "Client creation duration.",
			[]float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}, "pool"),
	}
	return c
}

func gaugeVec(reg *prometheus.Registry, name, help string, labels ...string) *prometheus.GaugeVec {
	v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	reg.MustRegister(v)
	return v
}

func counterVec(reg *prometheus.Registry, name, help string, labels ...string) *prometheus.CounterVec {
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	reg.MustRegister(v)
	return v
}

func histogramVec(reg *prometheus.Registry, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: buckets,
	}, labels)
	reg.MustRegister(v)
	return v
}

// SamplePool updates the gauge-like metrics from a point-in-time
// pool.Stats snapshot (pool.Pool.GetStats). Call this on a fixed
// interval from the manager. Stats aggregates connection counts at
// the pool level rather than per endpoint, so clientsTotal/Active/
// Idle/Failed carry an empty endpoint label; per-endpoint detail is
// limited to what EndpointHealth and the circuit breaker expose.
func (c *Collector) SamplePool(poolType string, s pool.Stats) {
	c.clientsTotal.WithLabelValues(s.Name, poolType, "").Set(float64(s.TotalConnections))
	c.clientsActive.WithLabelValues(s.Name, poolType, "").Set(float64(s.ActiveConnections))
	c.clientsIdle.WithLabelValues(s.Name, poolType, "").Set(float64(s.IdleConnections))
	c.clientsFailed.WithLabelValues(s.Name, poolType, "").Set(float64(s.FailedConnections))

	for _, ep := range s.Endpoints {
		c.endpointLatency.WithLabelValues(s.Name, ep.URL).Set(ep.Latency.Seconds())
		if ep.Healthy {
			c.endpointHealthy.WithLabelValues(s.Name, ep.URL).Set(1)
		} else {
			c.endpointHealthy.WithLabelValues(s.Name, ep.URL).Set(0)
		}
	}
	if s.CircuitBreakerOpen {
		c.breakerOpen.WithLabelValues(s.Name, "").Set(1)
	} else {
		c.breakerOpen.WithLabelValues(s.Name, "").Set(0)
	}
}

// RecordRequest records one acquire-to-release cycle's outcome and
// duration.
func (c *Collector) RecordRequest(poolName string, success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.requestsTotal.WithLabelValues(poolName, status).Inc()
	c.requestDuration.WithLabelValues(poolName).Observe(d.Seconds())
}

// RecordCreation records one client-creation attempt's duration.
func (c *Collector) RecordCreation(poolName string, d time.Duration) {
	c.creationDuration.WithLabelValues(poolName).Observe(d.Seconds())
}

// ClientCreated/ClientDestroyed/HealthCheck/BreakerTrip/ErrorSeen are the
// reactive, event-driven counters (see Bridge in collector.go).
func (c *Collector) ClientCreated(pool, endpoint string) {
	c.clientsCreated.WithLabelValues(pool, endpoint).Inc()
}

func (c *Collector) ClientDestroyed(pool, endpoint string) {
	c.clientsDestroyed.WithLabelValues(pool, endpoint).Inc()
}

func (c *Collector) HealthCheck(pool, endpoint string, healthy bool) {
	result := "success"
	if !healthy {
		result = "failure"
	}
	c.healthChecksTotal.WithLabelValues(pool, endpoint, result).Inc()
}

func (c *Collector) BreakerTrip(pool, endpoint string) {
	c.breakerTripsTotal.WithLabelValues(pool, endpoint).Inc()
}

func (c *Collector) ErrorSeen(pool, errType string) {
	c.errorsTotal.WithLabelValues(pool, errType).Inc()
}

// Track wraps an arbitrary operation, recording its duration and
// success/failure to the request counters and histogram.
func (c *Collector) Track(ctx context.Context, poolName string, op func(context.Context) error) error {
	start := time.Now()
	err := op(ctx)
	c.RecordRequest(poolName, err == nil, time.Since(start))
	return err
}
