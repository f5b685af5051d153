// Command trader runs one trading client: an order gateway session, the
// multicast market data consumer with snapshot recovery, and one of the
// maker, taker or random algos behind the shared risk gate.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"matchbox/domain/types"
	"matchbox/infra/config"
	"matchbox/infra/logging"
	"matchbox/trading/blotter"
	"matchbox/trading/engine"
	"matchbox/trading/gateway"
	"matchbox/trading/mdconsumer"
	"matchbox/trading/risk"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "path to trader config YAML")
	flag.Parse()

	cfg, err := config.LoadTrader(*cfgPath)
	if err != nil {
		return err
	}
	clientID := types.ClientID(cfg.ClientID)
	log := logging.New(cfg.Logging, fmt.Sprintf("trading_main_%d.log", clientID))
	log.Info("trader starting", "client", clientID, "algo", cfg.Algo)

	maxLoss, err := decimal.NewFromString(cfg.Risk.MaxLoss)
	if err != nil {
		return fmt.Errorf("trader: risk.max_loss: %w", err)
	}
	limits := risk.Limits{
		MaxOrderSize: types.Qty(cfg.Risk.MaxOrderSize),
		MaxPosition:  cfg.Risk.MaxPosition,
		MaxLoss:      maxLoss,
	}

	gw, err := gateway.Dial(cfg.OrderAddr, clientID, log)
	if err != nil {
		return err
	}
	defer gw.Close()

	md, err := mdconsumer.New(mdconsumer.Config{
		IncrementalAddr: cfg.IncrementalAddr,
		SnapshotAddr:    cfg.SnapshotAddr,
		Interface:       cfg.Interface,
	}, log)
	if err != nil {
		return err
	}

	blot, err := blotter.Open(cfg.BlotterPath)
	if err != nil {
		return err
	}
	defer blot.Close()

	eng := engine.New(clientID, gw, md, limits, blot, log)
	algo, err := buildAlgo(cfg, eng, clientID, log)
	if err != nil {
		return err
	}
	eng.SetAlgo(algo)
	eng.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")

	eng.Stop()
	md.Close()
	total := eng.Keeper.Total()
	log.Info("trader stopped", "pnl", total.String())
	return nil
}

func buildAlgo(cfg config.Trader, eng *engine.Engine, clientID types.ClientID, log *slog.Logger) (engine.Algo, error) {
	switch cfg.Algo {
	case config.AlgoMaker:
		thresh, err := decimal.NewFromString(cfg.MakerThresh)
		if err != nil {
			return nil, fmt.Errorf("trader: maker_threshold: %w", err)
		}
		return engine.NewMarketMaker(eng, types.Qty(cfg.MakerClip), thresh, log), nil
	case config.AlgoTaker:
		thresh, err := decimal.NewFromString(cfg.TakerThresh)
		if err != nil {
			return nil, fmt.Errorf("trader: taker_threshold: %w", err)
		}
		return engine.NewLiquidityTaker(eng, types.Qty(cfg.TakerClip), thresh, log), nil
	case config.AlgoRandom:
		return engine.NewRandomFlow(eng, clientID, types.Qty(cfg.TakerClip), log), nil
	}
	return nil, fmt.Errorf("trader: unknown algo %q", cfg.Algo)
}
