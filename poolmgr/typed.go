package poolmgr

import (
	"context"
	"fmt"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/pool/cosmosadapter"
	"github.com/relaymesh/connpool/pool/ethadapter"
)

// Pool type labels stored on each entry, also surfaced in PoolStats.
const (
	PoolTypeEthereum      = "ethereum"
	PoolTypeCosmosQuery   = "cosmos-query"
	PoolTypeCosmosSigning = "cosmos-signing"
)

// AddEthereumPool registers an Ethereum Base Pool under its
// configured name (the network name).
func AddEthereumPool(m *Manager, p *pool.Pool[*ethadapter.Client]) error {
	return Register(m, PoolTypeEthereum, p)
}

// RemoveEthereumPool stops and unregisters the named Ethereum pool.
func RemoveEthereumPool(m *Manager, network string) error {
	return removeTyped(m, network, PoolTypeEthereum)
}

// WithEthereumClient acquires a client from the named Ethereum pool,
// invokes fn, and releases the client on every exit path.
func WithEthereumClient(ctx context.Context, m *Manager, network string, fn func(*ethadapter.Client) error) error {
	return WithClient(ctx, m, network, fn)
}

// AddCosmosPool registers a Cosmos-query Base Pool under its
// configured name (the chain id).
func AddCosmosPool(m *Manager, p *pool.Pool[*cosmosadapter.QueryClient]) error {
	return Register(m, PoolTypeCosmosQuery, p)
}

// RemoveCosmosPool stops and unregisters the named Cosmos-query pool.
func RemoveCosmosPool(m *Manager, chainID string) error {
	return removeTyped(m, chainID, PoolTypeCosmosQuery)
}

// WithCosmosQueryClient acquires a client from the named Cosmos-query
// pool, invokes fn, and releases the client on every exit path.
func WithCosmosQueryClient(ctx context.Context, m *Manager, chainID string, fn func(*cosmosadapter.QueryClient) error) error {
	return WithClient(ctx, m, chainID, fn)
}

// AddCosmosSigningPool registers a Cosmos-signing Base Pool and its
// adapter together. The adapter is required (not just the pool)
// because signing clients are created per acquisition with a
// caller-supplied wallet via CreateClientWithWallet, not reused out of
// an idle list like every other adapter's clients.
//
// Cosmos-query and Cosmos-signing pools share one flat name
// namespace with Ethereum pools; give the signing pool a name distinct
// from its query-pool counterpart for the same chain (e.g.
// "<chainID>-signing") if both are registered side by side.
func AddCosmosSigningPool(m *Manager, p *pool.Pool[*cosmosadapter.SigningClient], adapter *cosmosadapter.SigningAdapter) error {
	return registerSigning(m, PoolTypeCosmosSigning, p, adapter)
}

// RemoveCosmosSigningPool stops and unregisters the named Cosmos-signing
// pool.
func RemoveCosmosSigningPool(m *Manager, name string) error {
	return removeTyped(m, name, PoolTypeCosmosSigning)
}

// WithCosmosSigningClient acquires a signing client bound to wallet
// from the named Cosmos-signing pool, invokes fn, and releases
// (closing the client, since signing clients aren't pooled) on every
// exit path.
func WithCosmosSigningClient(ctx context.Context, m *Manager, name string, wallet cosmosadapter.Wallet, fn func(*cosmosadapter.SigningClient) error) error {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("poolmgr: %w: %s", pool.ErrUnknownPool, name)
	}

	p, ok := e.typed.(*pool.Pool[*cosmosadapter.SigningClient])
	if !ok {
		return fmt.Errorf("poolmgr: pool %q is not a cosmos-signing pool", name)
	}
	adapter, ok := e.signingAdapter.(*cosmosadapter.SigningAdapter)
	if !ok {
		return fmt.Errorf("poolmgr: pool %q has no signing adapter registered", name)
	}

	client, release, err := p.AcquireTransient(ctx, func(ctx context.Context, ep pool.Endpoint) (*cosmosadapter.SigningClient, error) {
		return adapter.CreateClientWithWallet(ctx, ep, wallet)
	})
	if err != nil {
		return err
	}
	defer release()
	return fn(client)
}

// removeTyped removes name after checking it was registered under
// wantType, so e.g. RemoveEthereumPool can't be used to tear down a
// Cosmos pool that happens to share a name.
func removeTyped(m *Manager, name, wantType string) error {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("poolmgr: %w: %s", pool.ErrUnknownPool, name)
	}
	if e.poolType != wantType {
		return fmt.Errorf("poolmgr: pool %q is not a %s pool", name, wantType)
	}
	return m.Remove(name)
}
