// Package position tracks per-instrument inventory and PnL from the
// client's own fills. Prices stay integer ticks on the wire; PnL math is
// done in decimal so realized and unrealized never accumulate float
// error.
package position

import (
	"github.com/shopspring/decimal"

	"matchbox/domain/messages"
	"matchbox/domain/types"
)

// Position is one instrument's inventory.
type Position struct {
	// Qty is signed: positive long, negative short.
	Qty int64
	// OpenVWAP is the volume-weighted entry price of the open quantity.
	OpenVWAP decimal.Decimal
	// Realized accumulates PnL from closed quantity.
	Realized decimal.Decimal

	lastTrade decimal.Decimal
}

// Keeper holds every instrument's position.
type Keeper struct {
	positions [types.MaxTickers]Position
}

func NewKeeper() *Keeper { return &Keeper{} }

// Get returns a copy of one instrument's position.
func (k *Keeper) Get(t types.TickerID) Position {
	return k.positions[t]
}

// OnFill folds one of the client's own fills into the book of record.
func (k *Keeper) OnFill(t types.TickerID, side types.Side, price types.Price, qty types.Qty) {
	if int(t) >= len(k.positions) || qty <= 0 {
		return
	}
	p := &k.positions[t]
	px := decimal.NewFromInt(int64(price))
	signed := int64(qty) * int64(side)

	switch {
	case p.Qty == 0 || (p.Qty > 0) == (signed > 0):
		// Extending: blend the entry VWAP.
		oldAbs := abs(p.Qty)
		newAbs := oldAbs + abs(signed)
		p.OpenVWAP = p.OpenVWAP.Mul(decimal.NewFromInt(oldAbs)).
			Add(px.Mul(decimal.NewFromInt(abs(signed)))).
			Div(decimal.NewFromInt(newAbs))
		p.Qty += signed
	default:
		closed := min(abs(signed), abs(p.Qty))
		// Realized sign follows the side of the open position.
		dir := int64(1)
		if p.Qty < 0 {
			dir = -1
		}
		p.Realized = p.Realized.Add(
			px.Sub(p.OpenVWAP).Mul(decimal.NewFromInt(closed * dir)))
		p.Qty += signed
		if p.Qty == 0 {
			p.OpenVWAP = decimal.Zero
		} else if abs(signed) > closed {
			// Flipped through flat: remainder opens at the fill price.
			p.OpenVWAP = px
		}
	}
	p.lastTrade = px
}

// OnTrade marks the instrument with the last traded price on the public
// tape, used for unrealized PnL when the client has no fill of its own.
func (k *Keeper) OnTrade(t types.TickerID, u *messages.MarketUpdate) {
	if int(t) >= len(k.positions) || u.Kind != messages.UpdateTrade {
		return
	}
	k.positions[t].lastTrade = decimal.NewFromInt(int64(u.Price))
}

// Unrealized marks the open quantity against the last trade.
func (k *Keeper) Unrealized(t types.TickerID) decimal.Decimal {
	p := &k.positions[t]
	if p.Qty == 0 || p.lastTrade.IsZero() {
		return decimal.Zero
	}
	return p.lastTrade.Sub(p.OpenVWAP).Mul(decimal.NewFromInt(p.Qty))
}

// Total is realized plus unrealized across every instrument.
func (k *Keeper) Total() decimal.Decimal {
	total := decimal.Zero
	for t := range k.positions {
		total = total.Add(k.positions[t].Realized).Add(k.Unrealized(types.TickerID(t)))
	}
	return total
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
