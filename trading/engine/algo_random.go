package engine

import (
	"log/slog"
	"math/rand"

	"matchbox/domain/messages"
	"matchbox/domain/types"
)

// RandomFlow is the load generator: on every tick it reprices a random
// instrument to a random level around that instrument's reference price.
// It trades through the same order manager and risk gate as the real
// algos, so it doubles as an end-to-end exercise of the whole path.
type RandomFlow struct {
	eng  *Engine
	clip types.Qty
	rng  *rand.Rand
	refs [types.MaxTickers]types.Price
	log  *slog.Logger
}

func NewRandomFlow(eng *Engine, clientID types.ClientID, clip types.Qty, log *slog.Logger) *RandomFlow {
	a := &RandomFlow{
		eng:  eng,
		clip: clip,
		rng:  rand.New(rand.NewSource(int64(clientID) + 1)),
		log:  log.With("algo", "random"),
	}
	// Reference prices are deterministic per instrument so independent
	// random clients trade in overlapping ranges.
	for t := range a.refs {
		a.refs[t] = types.Price(100 + 10*t)
	}
	return a
}

func (a *RandomFlow) OnBookUpdate(types.TickerID) {}

func (a *RandomFlow) OnTrade(*messages.MarketUpdate) {}

func (a *RandomFlow) OnResponse(*messages.ClientResponse) {}

func (a *RandomFlow) OnTick() {
	t := types.TickerID(a.rng.Intn(types.MaxTickers))
	side := types.Buy
	if a.rng.Intn(2) == 1 {
		side = types.Sell
	}
	price := a.refs[t] + types.Price(a.rng.Intn(21)-10)
	if price <= 0 {
		price = 1
	}
	qty := 1 + types.Qty(a.rng.Int63n(int64(a.clip)))
	if a.rng.Intn(5) == 0 {
		// One in five ticks pulls the side instead of quoting it.
		a.eng.Orders.Move(t, side, types.InvalidPrice, qty)
		return
	}
	a.eng.Orders.Move(t, side, price, qty)
}
