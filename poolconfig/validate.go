package poolconfig

import (
	"fmt"

	"github.com/relaymesh/connpool/pool"
)

// Validate rejects a pool.Config that would behave surprisingly at
// runtime rather than letting the pool discover the problem lazily.
// Every rejection names the offending field.
func Validate(cfg pool.Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("poolconfig: name is required")
	}
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("poolconfig: %s: at least one endpoint is required", cfg.Name)
	}
	seen := make(map[string]bool, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("poolconfig: %s: endpoint url must not be empty", cfg.Name)
		}
		if seen[ep.URL] {
			return fmt.Errorf("poolconfig: %s: duplicate endpoint %q", cfg.Name, ep.URL)
		}
		seen[ep.URL] = true
		if ep.Weight < 0 {
			return fmt.Errorf("poolconfig: %s: endpoint %q has negative weight %d", cfg.Name, ep.URL, ep.Weight)
		}
	}
	if cfg.MaxConnectionsPerEndpoint < 0 {
		return fmt.Errorf("poolconfig: %s: max_connections_per_endpoint must not be negative", cfg.Name)
	}
	if cfg.MinConnections < 0 {
		return fmt.Errorf("poolconfig: %s: min_connections must not be negative", cfg.Name)
	}
	if cfg.MaxConnectionsPerEndpoint > 0 && cfg.MinConnections > cfg.MaxConnectionsPerEndpoint*len(cfg.Endpoints) {
		return fmt.Errorf("poolconfig: %s: min_connections (%d) exceeds total capacity (%d)",
			cfg.Name, cfg.MinConnections, cfg.MaxConnectionsPerEndpoint*len(cfg.Endpoints))
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("poolconfig: %s: circuit_breaker_threshold must be positive", cfg.Name)
	}
	if cfg.CircuitBreakerTimeout <= 0 {
		return fmt.Errorf("poolconfig: %s: circuit_breaker_timeout must be positive", cfg.Name)
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("poolconfig: %s: idle_timeout must be positive", cfg.Name)
	}
	if cfg.HealthCheckInterval <= 0 {
		return fmt.Errorf("poolconfig: %s: health_check_interval must be positive", cfg.Name)
	}
	return nil
}
