package ethadapter

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/rlog"
)

type rpcRequest struct {
	Method string          `json:"method"`
	ID     json.RawMessage `json:"id"`
}

// fakeNode is a minimal JSON-RPC server answering exactly the two
// calls the adapter needs: eth_chainId and eth_blockNumber.
func fakeNode(t *testing.T, chainIDHex string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var result string
		switch req.Method {
		case "eth_chainId":
			result = chainIDHex
		case "eth_blockNumber":
			result = "0x10"
		default:
			http.Error(w, "unsupported method "+req.Method, http.StatusNotImplemented)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func testLogger() rlog.Logger { return rlog.NewWithWriter(io.Discard) }

func TestCreateClientAcceptsMatchingChainID(t *testing.T) {
	srv := fakeNode(t, "0x1")
	defer srv.Close()

	a := New(Config{ChainID: big.NewInt(1)}, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := a.CreateClient(ctx, pool.Endpoint{URL: srv.URL})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	defer a.CloseClient(client)

	if !a.ProbeClient(ctx, client) {
		t.Fatalf("expected probe to succeed")
	}
}

func TestCreateClientRejectsMismatchedChainID(t *testing.T) {
	srv := fakeNode(t, "0x2")
	defer srv.Close()

	a := New(Config{ChainID: big.NewInt(1)}, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := a.CreateClient(ctx, pool.Endpoint{URL: srv.URL}); err == nil {
		t.Fatal("expected chain id mismatch to fail CreateClient")
	}
}

func TestClientWaitAdmitsFirstCallWithinBurst(t *testing.T) {
	srv := fakeNode(t, "0x1")
	defer srv.Close()

	a := New(Config{ChainID: big.NewInt(1), RequestsPerSecond: 1000, Burst: 1}, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := a.CreateClient(ctx, pool.Endpoint{URL: srv.URL})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	defer a.CloseClient(client)

	if err := client.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
}
