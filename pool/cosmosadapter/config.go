// Package cosmosadapter provides two pool.Adapter implementations for
// Cosmos SDK / CometBFT chains: a read-only query adapter (Query) and
// a transaction-signing adapter (Signing) that additionally requires a
// Wallet. Both verify the endpoint's reported chain id against the
// configured one before the client is handed back, the same identity
// check ethadapter performs for Ethereum endpoints.
package cosmosadapter

import (
	"time"

	grpcRetry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"google.golang.org/grpc/codes"
)

// Config configures one Cosmos pool, query or signing.
type Config struct {
	// ChainID is the expected network id reported by the RPC node
	// status call; a mismatch fails CreateClient. The gRPC connection
	// is not consulted for it.
	ChainID string

	// GRPCAddress is the host:port of the chain's gRPC query endpoint.
	// When empty, GRPC-backed query types are not constructed and only
	// the RPC HTTP client is used.
	GRPCAddress string

	DialTimeout time.Duration

	// RetryMax and RetryBackoff configure the gRPC client's retry
	// interceptor.
	RetryMax     uint
	RetryBackoff time.Duration

	// AddressPrefix is the expected bech32 human-readable part of
	// signing account addresses (e.g. "cosmos", "osmo"). When set, the
	// signing adapter encodes the wallet account's address with
	// sdk.AccAddress.String() and rejects it if the resulting prefix
	// differs. That encoding uses the process-global sdk.Config
	// prefix, so the check compares the global prefix with this one;
	// the account's address bytes themselves carry no prefix.
	AddressPrefix string

	// GasPrice is a single "<amount><denom>" decimal coin (e.g.
	// "0.025uatom") the signing adapter parses and attaches to every
	// SigningClient it hands out, so callers building transactions on
	// top of this pool don't each need their own copy of the chain's
	// gas price.
	GasPrice string
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 10 * time.Second
}

func (c Config) retryOptions() []grpcRetry.CallOption {
	max := c.RetryMax
	if max == 0 {
		max = 5
	}
	backoff := c.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return []grpcRetry.CallOption{
		grpcRetry.WithMax(max),
		grpcRetry.WithBackoff(grpcRetry.BackoffLinear(backoff)),
		grpcRetry.WithCodes(codes.Internal, codes.Unavailable, codes.Aborted, codes.NotFound),
	}
}
