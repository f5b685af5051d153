package engine

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"matchbox/domain/messages"
	"matchbox/domain/types"
)

// LiquidityTaker aggresses when trade flow is one-sided: a trade that
// consumed a large share of the touch liquidity is momentum worth
// following, so it crosses the spread in the same direction.
type LiquidityTaker struct {
	eng       *Engine
	clip      types.Qty
	threshold decimal.Decimal
	log       *slog.Logger
}

func NewLiquidityTaker(eng *Engine, clip types.Qty, threshold decimal.Decimal, log *slog.Logger) *LiquidityTaker {
	return &LiquidityTaker{
		eng:       eng,
		clip:      clip,
		threshold: threshold,
		log:       log.With("algo", "taker"),
	}
}

func (a *LiquidityTaker) OnBookUpdate(types.TickerID) {}

func (a *LiquidityTaker) OnTrade(u *messages.MarketUpdate) {
	ratio := a.eng.Features.Signals(u.TickerID).AggTradeQtyRatio
	if ratio.LessThan(a.threshold) {
		return
	}
	bbo := a.eng.Features.BBO(u.TickerID)
	if !bbo.TwoSided() {
		return
	}
	price := bbo.BidPrice
	if u.Side == types.Buy {
		price = bbo.AskPrice
	}
	a.eng.Orders.Move(u.TickerID, u.Side, price, a.clip)
}

func (a *LiquidityTaker) OnResponse(*messages.ClientResponse) {}

func (a *LiquidityTaker) OnTick() {}
