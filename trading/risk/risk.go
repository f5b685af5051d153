// Package risk is the pre-trade gate every outbound order passes through.
package risk

import (
	"github.com/shopspring/decimal"

	"matchbox/domain/types"
	"matchbox/trading/position"
)

// Result says why an order was blocked.
type Result int

const (
	Allowed Result = iota
	BlockedOrderSize
	BlockedPosition
	BlockedLoss
)

func (r Result) String() string {
	switch r {
	case Allowed:
		return "ALLOWED"
	case BlockedOrderSize:
		return "ORDER_SIZE"
	case BlockedPosition:
		return "POSITION"
	case BlockedLoss:
		return "LOSS"
	}
	return "UNKNOWN"
}

// Limits are static per-client limits from config.
type Limits struct {
	MaxOrderSize types.Qty
	MaxPosition  int64
	MaxLoss      decimal.Decimal
}

// Manager checks orders against the limits and the live position book.
type Manager struct {
	limits Limits
	keeper *position.Keeper
}

func NewManager(limits Limits, keeper *position.Keeper) *Manager {
	return &Manager{limits: limits, keeper: keeper}
}

// Check runs the pre-trade checks for one prospective order. The position
// check is on the worst case: current position plus the full order on the
// order's side.
func (m *Manager) Check(t types.TickerID, side types.Side, qty types.Qty) Result {
	if qty > m.limits.MaxOrderSize {
		return BlockedOrderSize
	}
	projected := m.keeper.Get(t).Qty + int64(qty)*int64(side)
	if projected > m.limits.MaxPosition || -projected > m.limits.MaxPosition {
		return BlockedPosition
	}
	if m.keeper.Total().LessThan(m.limits.MaxLoss.Neg()) {
		return BlockedLoss
	}
	return Allowed
}
