package engine

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"matchbox/domain/messages"
	"matchbox/domain/types"
)

// MarketMaker quotes both sides of every instrument around the fair
// price: on each side, join the touch while the fair price is at least the
// threshold away from it, and step one tick away from the touch when the
// fair price sits closer than that.
type MarketMaker struct {
	eng       *Engine
	clip      types.Qty
	threshold decimal.Decimal
	log       *slog.Logger
}

func NewMarketMaker(eng *Engine, clip types.Qty, threshold decimal.Decimal, log *slog.Logger) *MarketMaker {
	return &MarketMaker{
		eng:       eng,
		clip:      clip,
		threshold: threshold,
		log:       log.With("algo", "maker"),
	}
}

func (a *MarketMaker) OnBookUpdate(t types.TickerID) { a.quote(t) }

func (a *MarketMaker) OnTrade(u *messages.MarketUpdate) { a.quote(u.TickerID) }

func (a *MarketMaker) OnResponse(*messages.ClientResponse) {}

func (a *MarketMaker) OnTick() {}

func (a *MarketMaker) quote(t types.TickerID) {
	bbo := a.eng.Features.BBO(t)
	fair := a.eng.Features.Signals(t).FairPrice
	if !bbo.TwoSided() || fair.IsZero() {
		return
	}
	bid := bbo.BidPrice
	if fair.Sub(decimal.NewFromInt(int64(bbo.BidPrice))).LessThan(a.threshold) {
		bid--
	}
	ask := bbo.AskPrice
	if decimal.NewFromInt(int64(bbo.AskPrice)).Sub(fair).LessThan(a.threshold) {
		ask++
	}
	a.eng.Orders.MoveBoth(t, bid, ask, a.clip)
}
