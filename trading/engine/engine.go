// Package engine is the trading client's core loop: one goroutine that
// folds the market data stream into features, routes the exchange's
// responses through the order manager and position keeper, and gives the
// algo its callbacks. Everything the algo sees is single-threaded.
package engine

import (
	"log/slog"
	"time"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/trading/blotter"
	"matchbox/trading/features"
	"matchbox/trading/gateway"
	"matchbox/trading/mdconsumer"
	"matchbox/trading/position"
	"matchbox/trading/risk"
)

// Algo reacts to the engine's callbacks. All callbacks run on the engine
// goroutine.
type Algo interface {
	// OnBookUpdate fires after a non-trade update changed a book.
	OnBookUpdate(t types.TickerID)
	// OnTrade fires for every trade on the public tape.
	OnTrade(u *messages.MarketUpdate)
	// OnResponse fires for every response to this client's own orders.
	OnResponse(r *messages.ClientResponse)
	// OnTick fires periodically regardless of market activity.
	OnTick()
}

const tickEvery = 100 * time.Millisecond

// Engine wires one client session together.
type Engine struct {
	clientID types.ClientID
	gw       *gateway.Gateway
	md       *mdconsumer.Consumer

	Features *features.Engine
	Keeper   *position.Keeper
	Orders   *OrderManager

	algo Algo
	blot *blotter.Blotter
	log  *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// New assembles the session. blot may be nil to skip fill persistence.
func New(clientID types.ClientID, gw *gateway.Gateway, md *mdconsumer.Consumer, limits risk.Limits, blot *blotter.Blotter, log *slog.Logger) *Engine {
	keeper := position.NewKeeper()
	e := &Engine{
		clientID: clientID,
		gw:       gw,
		md:       md,
		Features: features.NewEngine(),
		Keeper:   keeper,
		Orders:   NewOrderManager(gw, risk.NewManager(limits, keeper), log),
		blot:     blot,
		log:      log.With("component", "tradeengine", "client", clientID),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	return e
}

// SetAlgo must be called before Start.
func (e *Engine) SetAlgo(a Algo) { e.algo = a }

// Start launches the engine loop.
func (e *Engine) Start() {
	go e.loop()
}

// Stop halts the loop. The gateway and consumer are closed by the caller.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

func (e *Engine) loop() {
	defer close(e.done)
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()
	e.log.Info("trade engine running")
	for {
		select {
		case <-e.stop:
			return
		case s, ok := <-e.md.Updates():
			if !ok {
				e.log.Error("market data stream ended")
				return
			}
			e.onUpdate(&s)
		case r, ok := <-e.gw.Responses():
			if !ok {
				e.log.Error("order session ended")
				return
			}
			e.onResponse(&r)
		case <-ticker.C:
			e.algo.OnTick()
		}
	}
}

func (e *Engine) onUpdate(s *mdconsumer.Sequenced) {
	u := &s.Update
	e.Features.OnUpdate(s.Seq, u)
	if u.Kind == messages.UpdateTrade {
		e.Keeper.OnTrade(u.TickerID, u)
		e.algo.OnTrade(u)
		return
	}
	e.algo.OnBookUpdate(u.TickerID)
}

func (e *Engine) onResponse(r *messages.ClientResponse) {
	if r.Kind == messages.ResponseFilled {
		e.Keeper.OnFill(r.TickerID, r.Side, r.Price, r.ExecQty)
		if e.blot != nil {
			fill := blotter.Fill{
				ClientID:      uint32(r.ClientID),
				TickerID:      uint32(r.TickerID),
				ClientOrderID: uint64(r.ClientOrderID),
				MarketOrderID: uint64(r.MarketOrderID),
				Side:          r.Side.String(),
				Price:         int64(r.Price),
				ExecQty:       int64(r.ExecQty),
				LeavesQty:     int64(r.LeavesQty),
			}
			if err := e.blot.Record(&fill); err != nil {
				e.log.Warn("blotter write failed", "err", err)
			}
		}
	}
	e.Orders.OnResponse(r)
	e.algo.OnResponse(r)
}
