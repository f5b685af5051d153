// Package features maintains the client-side view of each book and
// derives the two signals the algos trade on: a queue-weighted fair price
// and the ratio of an aggressive trade's quantity to the liquidity it hit.
package features

import (
	"github.com/shopspring/decimal"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/marketdata"
)

// BBO is one instrument's top of book.
type BBO struct {
	BidPrice types.Price
	BidQty   types.Qty
	AskPrice types.Price
	AskQty   types.Qty
}

// TwoSided reports whether both sides have a level.
func (b *BBO) TwoSided() bool { return b.BidQty > 0 && b.AskQty > 0 }

// Signals are the derived trading inputs for one instrument.
type Signals struct {
	// FairPrice is the queue-weighted mid, zero until the book is
	// two-sided.
	FairPrice decimal.Decimal
	// AggTradeQtyRatio is the last trade's quantity over the resting
	// quantity it aggressed into.
	AggTradeQtyRatio decimal.Decimal
}

// Engine folds the sequenced update stream into books, BBOs and signals.
// Single-goroutine use only (the trade engine's loop).
type Engine struct {
	shadow  *marketdata.Shadow
	bbo     [types.MaxTickers]BBO
	signals [types.MaxTickers]Signals
}

func NewEngine() *Engine {
	return &Engine{shadow: marketdata.NewShadow()}
}

// Book exposes the folded book state.
func (e *Engine) Book() *marketdata.Shadow { return e.shadow }

// OnUpdate applies one sequenced update. Trades refresh the trade-flow
// signal against the pre-trade BBO; everything else mutates the book and
// refreshes the BBO and fair price.
func (e *Engine) OnUpdate(seq types.SeqNum, u *messages.MarketUpdate) {
	if int(u.TickerID) >= types.MaxTickers {
		return
	}
	if u.Kind == messages.UpdateTrade {
		e.onTrade(u)
		return
	}
	e.shadow.Apply(seq, u)
	e.refresh(u.TickerID)
}

func (e *Engine) onTrade(u *messages.MarketUpdate) {
	bbo := &e.bbo[u.TickerID]
	resting := bbo.BidQty
	if u.Side == types.Buy {
		resting = bbo.AskQty
	}
	if resting <= 0 {
		return
	}
	e.signals[u.TickerID].AggTradeQtyRatio =
		decimal.NewFromInt(int64(u.Qty)).Div(decimal.NewFromInt(int64(resting)))
}

func (e *Engine) refresh(t types.TickerID) {
	view := e.shadow.Depth(t, 1)
	bbo := &e.bbo[t]
	*bbo = BBO{}
	if len(view.Bids) > 0 {
		bbo.BidPrice, bbo.BidQty = view.Bids[0].Price, view.Bids[0].Qty
	}
	if len(view.Asks) > 0 {
		bbo.AskPrice, bbo.AskQty = view.Asks[0].Price, view.Asks[0].Qty
	}
	if !bbo.TwoSided() {
		e.signals[t].FairPrice = decimal.Zero
		return
	}
	bidPx := decimal.NewFromInt(int64(bbo.BidPrice))
	askPx := decimal.NewFromInt(int64(bbo.AskPrice))
	bidQty := decimal.NewFromInt(int64(bbo.BidQty))
	askQty := decimal.NewFromInt(int64(bbo.AskQty))
	e.signals[t].FairPrice = bidPx.Mul(askQty).Add(askPx.Mul(bidQty)).Div(bidQty.Add(askQty))
}

// BBO returns the current top of book for one instrument.
func (e *Engine) BBO(t types.TickerID) BBO { return e.bbo[t] }

// Signals returns the current signals for one instrument.
func (e *Engine) Signals(t types.TickerID) Signals { return e.signals[t] }
