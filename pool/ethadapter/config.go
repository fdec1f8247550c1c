// Package ethadapter is the Ethereum-family pool.Adapter: it dials
// go-ethereum's ethclient, verifies the remote's chain ID matches the
// configured one, and throttles per-client request rate with
// golang.org/x/time/rate the way the Ethereum JSON-RPC throttle knobs
// in the broader matic stack do.
package ethadapter

import (
	"math/big"

	"golang.org/x/time/rate"
)

// Config configures one Ethereum-family pool.
type Config struct {
	// ChainID is the expected EIP-155 chain id. CreateClient rejects
	// any endpoint reporting a different one.
	ChainID *big.Int

	// RequestsPerSecond and Burst bound each client's call rate; zero
	// RequestsPerSecond disables throttling.
	RequestsPerSecond float64
	Burst             int
}

func (c Config) limiter() *rate.Limiter {
	if c.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := c.Burst
	if burst <= 0 {
		burst = int(c.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), burst)
}
