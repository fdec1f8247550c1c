package cosmosadapter

import (
	"context"
	"errors"
	"io"
	"testing"

	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/rlog"
)

func testLogger() rlog.Logger { return rlog.NewWithWriter(io.Discard) }

func TestSigningAdapterCreateClientAlwaysFails(t *testing.T) {
	a := NewSigning(Config{ChainID: "test-1"}, testLogger())

	_, err := a.CreateClient(context.Background(), pool.Endpoint{URL: "https://node-a"})
	if !errors.Is(err, pool.ErrWalletRequired) {
		t.Fatalf("expected ErrWalletRequired, got %v", err)
	}
}

type fakeAccount struct {
	addr sdk.AccAddress
}

func (a *fakeAccount) Address() sdk.AccAddress             { return a.addr }
func (a *fakeAccount) PubKey() cryptotypes.PubKey           { return nil }
func (a *fakeAccount) Sign(payload []byte) ([]byte, error) { return payload, nil }

type fakeWallet struct {
	accounts []WalletAccount
	err      error
}

func (w *fakeWallet) Accounts(ctx context.Context) ([]WalletAccount, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.accounts, nil
}

func TestCreateClientWithWalletRequiresWallet(t *testing.T) {
	a := NewSigning(Config{ChainID: "test-1"}, testLogger())

	_, err := a.CreateClientWithWallet(context.Background(), pool.Endpoint{URL: "https://node-a"}, nil)
	if !errors.Is(err, pool.ErrWalletRequired) {
		t.Fatalf("expected ErrWalletRequired, got %v", err)
	}
}

func TestCreateClientWithWalletRequiresAtLeastOneAccount(t *testing.T) {
	a := NewSigning(Config{ChainID: "test-1"}, testLogger())

	_, err := a.CreateClientWithWallet(context.Background(), pool.Endpoint{URL: "https://node-a"}, &fakeWallet{})
	if !errors.Is(err, pool.ErrWalletRequired) {
		t.Fatalf("expected ErrWalletRequired for an empty wallet, got %v", err)
	}
}

func TestCreateClientWithWalletPropagatesAccountsError(t *testing.T) {
	a := NewSigning(Config{ChainID: "test-1"}, testLogger())

	_, err := a.CreateClientWithWallet(context.Background(), pool.Endpoint{URL: "https://node-a"}, &fakeWallet{err: errors.New("keyring locked")})
	if err == nil {
		t.Fatal("expected error when Accounts fails")
	}
}
