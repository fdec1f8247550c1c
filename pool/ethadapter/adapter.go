package ethadapter

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/rlog"
)

// Client is the value handed back from pool.Pool[*Client].Acquire: the
// live ethclient plus the limiter that throttles calls made through
// it. Callers should route every RPC call through Wait before issuing
// it against Raw.
type Client struct {
	Raw     *ethclient.Client
	limiter *rate.Limiter

	sub   ethereum.Subscription
	errCh chan error
}

// Wait blocks until the client's rate limiter permits one more call.
func (c *Client) Wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// NotifyErrors implements pool.ErrorNotifier: a dropped newHeads
// subscription is reported here so the pool learns of it immediately
// rather than at the next health probe.
func (c *Client) NotifyErrors() <-chan error { return c.errCh }

// watchSub forwards the subscription's terminal error, if any, onto
// errCh and returns. It drains heads rather than storing them: this
// client only cares that the subscription is alive, not its payload.
func (c *Client) watchSub(heads <-chan *types.Header) {
	for {
		select {
		case err, ok := <-c.sub.Err():
			if !ok || err == nil {
				return
			}
			select {
			case c.errCh <- err:
			default:
			}
			return
		case <-heads:
		}
	}
}

// Adapter implements pool.Adapter[*Client] for Ethereum-family JSON-RPC
// endpoints.
type Adapter struct {
	cfg Config
	log rlog.Logger
}

// New returns an Adapter bound to cfg.
func New(cfg Config, log rlog.Logger) *Adapter {
	return &Adapter{cfg: cfg, log: log.New("adapter", "ethereum")}
}

var _ pool.Adapter[*Client] = (*Adapter)(nil)

// CreateClient dials endpoint.URL and verifies its chain ID matches
// Config.ChainID before handing the client back, satisfying the
// Adapter contract that CreateClient returns only identity-verified
// clients.
func (a *Adapter) CreateClient(ctx context.Context, ep pool.Endpoint) (*Client, error) {
	raw, err := ethclient.DialContext(ctx, ep.URL)
	if err != nil {
		return nil, fmt.Errorf("ethadapter: dial %s: %w", ep.URL, err)
	}

	if a.cfg.ChainID != nil {
		got, err := raw.ChainID(ctx)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("ethadapter: chain id query %s: %w", ep.URL, err)
		}
		if got.Cmp(a.cfg.ChainID) != 0 {
			raw.Close()
			return nil, fmt.Errorf("ethadapter: %s reports chain id %s, want %s", ep.URL, got, a.cfg.ChainID)
		}
	}

	c := &Client{Raw: raw, limiter: a.cfg.limiter(), errCh: make(chan error, 1)}

	// Best-effort: most endpoints in this pool's domain are plain HTTP
	// JSON-RPC and don't support subscriptions, in which case this
	// fails immediately and c simply never reports an async error.
	// Where it does succeed (a websocket or IPC endpoint), a dropped
	// subscription is the cheapest signal available that the
	// connection has gone bad between probes.
	heads := make(chan *types.Header)
	if sub, err := raw.SubscribeNewHead(ctx, heads); err == nil {
		c.sub = sub
		go c.watchSub(heads)
	}

	return c, nil
}

// ProbeClient issues a lightweight liveness check: fetching the
// latest block number. An error or a non-positive height both count
// as failure. A client whose rate limiter is currently exhausted is
// still considered live; Wait is only enforced on the caller's own
// RPC calls, not on this probe.
func (a *Adapter) ProbeClient(ctx context.Context, c *Client) bool {
	height, err := c.Raw.BlockNumber(ctx)
	return err == nil && height > 0
}

// CloseClient detaches the newHeads subscription, if one was
// established, and disconnects the underlying client. ethclient.Close
// never returns an error so there is nothing to swallow here.
func (a *Adapter) CloseClient(c *Client) {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.Raw.Close()
}
