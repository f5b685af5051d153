// Command exchange runs the whole venue in one process: the matching
// engine, the order server, the market data publisher with its bridges,
// and the ops and admin surfaces.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"matchbox/api/adminserver"
	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/infra/config"
	"matchbox/infra/logging"
	"matchbox/infra/memory"
	"matchbox/infra/metrics"
	"matchbox/jobs/firehose"
	"matchbox/jobs/tape"
	"matchbox/marketdata"
	"matchbox/matcher"
	"matchbox/orderserver"
	"matchbox/service/ops"
)

// statsSource answers the admin stats RPC from the publisher's shadow
// books, which are safe to read while the engine runs.
type statsSource struct {
	start  int64
	shadow *marketdata.Shadow
}

func (s *statsSource) StartUnix() int64 { return s.start }

func (s *statsSource) OpenOrders(t types.TickerID) int {
	return len(s.shadow.Orders(t))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "path to exchange config YAML")
	flag.Parse()

	cfg, err := config.LoadExchange(*cfgPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Logging, "exchange_main.log")
	log.Info("exchange starting",
		"order", cfg.Order.ListenAddr,
		"incremental", cfg.MarketData.IncrementalAddr,
		"snapshot", cfg.MarketData.SnapshotAddr)

	requests := memory.NewRing[messages.ClientRequest](types.RequestRingSize)
	responses := memory.NewRing[messages.ClientResponse](types.ResponseRingSize)
	updates := memory.NewRing[messages.MarketUpdate](types.UpdateRingSize)

	var taps []marketdata.Tap

	tp, err := tape.Open(cfg.Tape.JournalDir, kafkaBrokers(cfg), cfg.Kafka.TapeTopic, log)
	if err != nil {
		return err
	}
	defer tp.Close()
	taps = append(taps, tp)

	var fh *firehose.Firehose
	if cfg.Kafka.Enabled {
		fh = firehose.New(cfg.Kafka.Brokers, cfg.Kafka.FirehoseTopic, log)
		defer fh.Close()
		taps = append(taps, fh)
	}

	ws := marketdata.NewWSBridge(log)
	defer ws.Close()
	taps = append(taps, ws)

	publisher, err := marketdata.New(marketdata.Config{
		IncrementalAddr: cfg.MarketData.IncrementalAddr,
		SnapshotAddr:    cfg.MarketData.SnapshotAddr,
		SnapshotEvery:   cfg.SnapshotEvery(),
	}, updates, log, taps...)
	if err != nil {
		return err
	}

	engine := matcher.New(requests, responses, updates, log)
	server := orderserver.New(orderserver.Config{ListenAddr: cfg.Order.ListenAddr}, requests, responses, log)

	sample := func() {
		metrics.RequestRingDepth.Set(float64(requests.Len()))
		metrics.ResponseRingDepth.Set(float64(responses.Len()))
		metrics.UpdateRingDepth.Set(float64(updates.Len()))
	}
	opsSrv := ops.New(cfg.Ops.ListenAddr, publisher.Shadow(), ws, cfg.Ops.DepthLevels, sample, log)

	stats := &statsSource{start: time.Now().Unix(), shadow: publisher.Shadow()}
	adminSrv := adminserver.New(cfg.Admin.ListenAddr, adminserver.NewService(publisher.Shadow(), stats), log)

	publisher.Start()
	engine.Start()
	if err := server.Start(); err != nil {
		return err
	}
	opsSrv.Start()
	if err := adminSrv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")

	// Edge first, then core, then egress, so nothing in flight is lost.
	server.Stop()
	engine.Stop()
	publisher.Stop()
	adminSrv.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	opsSrv.Stop(shutdownCtx)
	log.Info("exchange stopped")
	return nil
}

func kafkaBrokers(cfg config.Exchange) []string {
	if !cfg.Kafka.Enabled {
		return nil
	}
	return cfg.Kafka.Brokers
}
