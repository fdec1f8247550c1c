package cosmosadapter

import (
	"context"
	"fmt"

	grpcRetry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/rlog"
)

// QueryClient is a read-only Cosmos endpoint: a CometBFT RPC client
// for status/block queries plus, when Config.GRPCAddress is set, a
// gRPC connection for ABCI query services.
type QueryClient struct {
	RPC  *rpchttp.HTTP
	GRPC *grpc.ClientConn

	ChainID string
	Height  int64
}

// QueryAdapter implements pool.Adapter[*QueryClient].
type QueryAdapter struct {
	cfg Config
	log rlog.Logger
}

// NewQuery returns a QueryAdapter bound to cfg.
func NewQuery(cfg Config, log rlog.Logger) *QueryAdapter {
	return &QueryAdapter{cfg: cfg, log: log.New("adapter", "cosmos-query")}
}

var _ pool.Adapter[*QueryClient] = (*QueryAdapter)(nil)

// CreateClient builds the RPC client and (if configured) dials the
// gRPC connection, one after the other, then runs the RPC Status call
// under an errgroup context bounded by the dial timeout and verifies
// the reported chain id matches Config.ChainID. A failed Status call
// or a chain id mismatch closes the gRPC connection.
func (a *QueryAdapter) CreateClient(ctx context.Context, ep pool.Endpoint) (*QueryClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, a.cfg.dialTimeout())
	defer cancel()

	rpc, err := rpchttp.New(ep.URL, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("cosmosadapter: dial rpc %s: %w", ep.URL, err)
	}

	var conn *grpc.ClientConn
	if a.cfg.GRPCAddress != "" {
		opts := a.cfg.retryOptions()
		conn, err = grpc.Dial(a.cfg.GRPCAddress,
			grpc.WithUnaryInterceptor(grpcRetry.UnaryClientInterceptor(opts...)),
			grpc.WithStreamInterceptor(grpcRetry.StreamClientInterceptor(opts...)),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return nil, fmt.Errorf("cosmosadapter: dial grpc %s: %w", a.cfg.GRPCAddress, err)
		}
	}

	var chainID string
	var height int64
	g, gctx := errgroup.WithContext(dialCtx)
	g.Go(func() error {
		status, err := rpc.Status(gctx)
		if err != nil {
			return fmt.Errorf("status query: %w", err)
		}
		chainID = status.NodeInfo.Network
		height = status.SyncInfo.LatestBlockHeight
		return nil
	})
	if err := g.Wait(); err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("cosmosadapter: %s: %w", ep.URL, err)
	}

	if a.cfg.ChainID != "" && chainID != a.cfg.ChainID {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("cosmosadapter: %s reports chain id %q, want %q", ep.URL, chainID, a.cfg.ChainID)
	}

	return &QueryClient{RPC: rpc, GRPC: conn, ChainID: chainID, Height: height}, nil
}

// ProbeClient fetches the chain id and the latest height concurrently
// via errgroup, mirroring CreateClient's dial-time verification: both
// legs must succeed and the reported chain id must still match the
// configured one, or the endpoint is considered down.
func (a *QueryAdapter) ProbeClient(ctx context.Context, c *QueryClient) bool {
	var chainID string
	var height int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status, err := c.RPC.Status(gctx)
		if err != nil {
			return fmt.Errorf("chain id query: %w", err)
		}
		chainID = status.NodeInfo.Network
		return nil
	})
	g.Go(func() error {
		status, err := c.RPC.Status(gctx)
		if err != nil {
			return fmt.Errorf("height query: %w", err)
		}
		height = status.SyncInfo.LatestBlockHeight
		return nil
	})
	if err := g.Wait(); err != nil {
		return false
	}
	if a.cfg.ChainID != "" && chainID != a.cfg.ChainID {
		return false
	}
	if height <= 0 {
		return false
	}
	c.ChainID = chainID
	c.Height = height
	return true
}

// CloseClient tears down the gRPC connection; the RPC HTTP client has
// no persistent connection to close.
func (a *QueryAdapter) CloseClient(c *QueryClient) {
	if c.GRPC != nil {
		if err := c.GRPC.Close(); err != nil {
			a.log.Debug("grpc close error", "err", err)
		}
	}
}
