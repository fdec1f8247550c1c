package poolconfig

import (
	"time"

	"github.com/relaymesh/connpool/pool"
)

// Dev returns a single-endpoint, fast-cycling configuration suited to
// a local devnet: short timeouts so a broken local node is noticed
// quickly, no pre-warming.
func Dev(name string, endpoints ...string) pool.Config {
	return pool.Config{
		Name:                      name,
		Endpoints:                 toEndpoints(endpoints),
		MaxConnectionsPerEndpoint: 5,
		MinConnections:            0,
		ConnectTimeout:            2 * time.Second,
		IdleTimeout:               30 * time.Second,
		HealthCheckInterval:       5 * time.Second,
		CircuitBreakerThreshold:   3,
		CircuitBreakerTimeout:     10 * time.Second,
		MaxRetries:                2,
		RetryDelay:                200 * time.Millisecond,
	}
}

// Testnet returns a moderate configuration tolerant of the flakier
// uptime typical of public testnet RPC providers.
func Testnet(name string, endpoints ...string) pool.Config {
	return pool.Config{
		Name:                      name,
		Endpoints:                 toEndpoints(endpoints),
		MaxConnectionsPerEndpoint: 10,
		MinConnections:            2,
		ConnectTimeout:            5 * time.Second,
		IdleTimeout:               2 * time.Minute,
		HealthCheckInterval:       15 * time.Second,
		CircuitBreakerThreshold:   5,
		CircuitBreakerTimeout:     30 * time.Second,
		MaxRetries:                3,
		RetryDelay:                500 * time.Millisecond,
	}
}

// Prod returns a conservative configuration for production relaying:
// deep pre-warmed pools, longer breaker cool-down so a momentarily
// degraded provider isn't hammered back into failure the moment it
// recovers.
func Prod(name string, endpoints ...string) pool.Config {
	return pool.Config{
		Name:                      name,
		Endpoints:                 toEndpoints(endpoints),
		MaxConnectionsPerEndpoint: 25,
		MinConnections:            10,
		ConnectTimeout:            5 * time.Second,
		IdleTimeout:               5 * time.Minute,
		HealthCheckInterval:       30 * time.Second,
		CircuitBreakerThreshold:   8,
		CircuitBreakerTimeout:     time.Minute,
		MaxRetries:                5,
		RetryDelay:                time.Second,
	}
}

func toEndpoints(urls []string) []pool.Endpoint {
	endpoints := make([]pool.Endpoint, 0, len(urls))
	for _, u := range urls {
		endpoints = append(endpoints, pool.Endpoint{URL: u, Weight: 1})
	}
	return endpoints
}
