package cosmosadapter

import (
	"context"
	"fmt"

	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/rlog"
)

// WalletAccount is the minimal shape a Wallet exposes for one signing
// key: its address and public key, and the ability to produce a
// signature over an arbitrary payload (the sign-mode/tx-building
// concerns live above this pool, in the relayer's transaction
// pipeline; this adapter only guarantees the signing key is reachable
// before handing out a client).
type WalletAccount interface {
	Address() sdk.AccAddress
	PubKey() cryptotypes.PubKey
	Sign(payload []byte) ([]byte, error)
}

// Wallet enumerates the signing keys it holds, modeled on
// cosmos-sdk's keyring.Keyring.List reduced to what this pool needs.
type Wallet interface {
	Accounts(ctx context.Context) ([]WalletAccount, error)
}

// SigningClient embeds a read-only QueryClient plus the wallet account
// bound at creation time, so signing code built on top of Acquire can
// query chain state and sign from the same leased client.
type SigningClient struct {
	*QueryClient
	Account WalletAccount

	// GasPrice is Config.GasPrice parsed once at creation time, ready
	// for a caller building a transaction's fee to use directly.
	GasPrice sdk.DecCoin
}

// SigningAdapter implements pool.Adapter[*SigningClient]. A wallet is
// not configured on the adapter itself; it is supplied per
// acquisition via CreateClientWithWallet (see poolmgr.WithCosmosSigningClient),
// since the same signing pool may be exercised by callers signing
// with different wallets.
type SigningAdapter struct {
	query *QueryAdapter
	log   rlog.Logger
}

// NewSigning returns a SigningAdapter bound to cfg.
func NewSigning(cfg Config, log rlog.Logger) *SigningAdapter {
	return &SigningAdapter{
		query: NewQuery(cfg, log),
		log:   log.New("adapter", "cosmos-signing"),
	}
}

var _ pool.Adapter[*SigningClient] = (*SigningAdapter)(nil)

// CreateClient always fails: a wallet-less creation on the signing
// variant is a programmer error that must fail loudly at first use
// rather than silently falling back to a read-only client. Pool-level
// acquisition for this adapter must go through
// pool.Pool.AcquireTransient with CreateClientWithWallet, which
// poolmgr.WithCosmosSigningClient wires up.
func (a *SigningAdapter) CreateClient(ctx context.Context, ep pool.Endpoint) (*SigningClient, error) {
	return nil, fmt.Errorf("cosmosadapter: %w: signing clients require CreateClientWithWallet", pool.ErrWalletRequired)
}

// CreateClientWithWallet verifies wallet has at least one account and
// that the first one can be fetched, dials and identity-checks the
// underlying query client, and returns a SigningClient bound to that
// account. Signing clients built this way are not pooled across
// wallets: the caller is expected to close them on release via
// pool.Pool.AcquireTransient rather than leasing them out of an idle
// list.
func (a *SigningAdapter) CreateClientWithWallet(ctx context.Context, ep pool.Endpoint, wallet Wallet) (*SigningClient, error) {
	if wallet == nil {
		return nil, fmt.Errorf("cosmosadapter: %w", pool.ErrWalletRequired)
	}
	accounts, err := wallet.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("cosmosadapter: list wallet accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("cosmosadapter: %w: wallet has no accounts", pool.ErrWalletRequired)
	}
	account := accounts[0]
	if account == nil || account.Address().Empty() {
		return nil, fmt.Errorf("cosmosadapter: wallet's first account has no address")
	}
	if prefix := a.query.cfg.AddressPrefix; prefix != "" {
		hrp, _, err := bech32.DecodeAndConvert(account.Address().String())
		if err != nil {
			return nil, fmt.Errorf("cosmosadapter: decode wallet account address: %w", err)
		}
		if hrp != prefix {
			return nil, fmt.Errorf("cosmosadapter: wallet account address prefix %q does not match configured %q", hrp, prefix)
		}
	}

	var gasPrice sdk.DecCoin
	if raw := a.query.cfg.GasPrice; raw != "" {
		gasPrice, err = sdk.ParseDecCoin(raw)
		if err != nil {
			return nil, fmt.Errorf("cosmosadapter: parse gas price %q: %w", raw, err)
		}
	}

	qc, err := a.query.CreateClient(ctx, ep)
	if err != nil {
		return nil, err
	}
	return &SigningClient{QueryClient: qc, Account: account, GasPrice: gasPrice}, nil
}

// ProbeClient checks the underlying query client's liveness and that
// the bound wallet account is still available.
func (a *SigningAdapter) ProbeClient(ctx context.Context, c *SigningClient) bool {
	if c.Account == nil || c.Account.Address().Empty() {
		return false
	}
	return a.query.ProbeClient(ctx, c.QueryClient)
}

func (a *SigningAdapter) CloseClient(c *SigningClient) {
	a.query.CloseClient(c.QueryClient)
}
