// Command poold is a demo host process for the connection pool: it
// loads one pool config (from a yaml file or a named preset), wires it
// to the Ethereum adapter, starts a poolmgr.Manager, and serves the
// poolhttp surface until interrupted. It exists to exercise the library end-to-end, the same
// role cmd/geth plays for the node itself in go-ethereum.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/relaymesh/connpool/pool"
	"github.com/relaymesh/connpool/pool/ethadapter"
	"github.com/relaymesh/connpool/poolconfig"
	"github.com/relaymesh/connpool/poolhttp"
	"github.com/relaymesh/connpool/poolmetrics"
	"github.com/relaymesh/connpool/poolmgr"
	"github.com/relaymesh/connpool/rlog"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a pool config yaml file",
	}
	presetFlag = &cli.StringFlag{
		Name:  "preset",
		Usage: "named preset to use instead of --config: dev, testnet, or prod",
		Value: "dev",
	}
	endpointsFlag = &cli.StringSliceFlag{
		Name:  "endpoint",
		Usage: "endpoint URL (repeatable); used with --preset",
	}
	chainIDFlag = &cli.Int64Flag{
		Name:  "chain-id",
		Usage: "expected Ethereum chain id",
		Value: 1,
	}
	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "address to serve /stats, /metrics and /healthz on",
		Value: "127.0.0.1:9191",
	}
)

func main() {
	app := &cli.App{
		Name:   "poold",
		Usage:  "run an Ethereum-family RPC connection pool with an HTTP control surface",
		Flags:  []cli.Flag{configFlag, presetFlag, endpointsFlag, chainIDFlag, listenFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := rlog.New()

	cfg, ethCfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	metrics := poolmetrics.NewCollector()
	mgr := poolmgr.NewManager(log, metrics)

	adapter := ethadapter.New(ethCfg, log)
	p := pool.New[*ethadapter.Client](cfg, adapter, log)
	if err := poolmgr.AddEthereumPool(mgr, p); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.StartAll(ctx); err != nil {
		return fmt.Errorf("poold: starting pools: %w", err)
	}
	defer mgr.StopAll()

	go poolmetrics.SampleLoop(ctx, 15*time.Second, mgr.SampleMetrics)

	srv := &http.Server{Addr: c.String("listen"), Handler: poolhttp.Handler(mgr, metrics)}
	go func() {
		log.Info("serving http", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// loadConfig returns the pool config plus the Ethereum adapter config
// derived from it: from the file's chain_id/throttle_* keys when
// --config is given, or from --chain-id with throttling disabled when
// building a config from a preset.
func loadConfig(c *cli.Context) (pool.Config, ethadapter.Config, error) {
	if path := c.String("config"); path != "" {
		cfg, f, err := poolconfig.LoadFile(path)
		if err != nil {
			return pool.Config{}, ethadapter.Config{}, err
		}
		ethCfg, err := f.EthereumConfig()
		if err != nil {
			return pool.Config{}, ethadapter.Config{}, err
		}
		if ethCfg.ChainID == nil {
			ethCfg.ChainID = big.NewInt(c.Int64("chain-id"))
		}
		return cfg, ethCfg, nil
	}

	endpoints := c.StringSlice("endpoint")
	if len(endpoints) == 0 {
		return pool.Config{}, ethadapter.Config{}, fmt.Errorf("poold: provide --config or at least one --endpoint")
	}

	var cfg pool.Config
	switch c.String("preset") {
	case "dev":
		cfg = poolconfig.Dev("ethereum", endpoints...)
	case "testnet":
		cfg = poolconfig.Testnet("ethereum", endpoints...)
	case "prod":
		cfg = poolconfig.Prod("ethereum", endpoints...)
	default:
		return pool.Config{}, ethadapter.Config{}, fmt.Errorf("poold: unknown preset %q", c.String("preset"))
	}
	if err := poolconfig.Validate(cfg); err != nil {
		return pool.Config{}, ethadapter.Config{}, err
	}
	return cfg, ethadapter.Config{ChainID: big.NewInt(c.Int64("chain-id"))}, nil
}
