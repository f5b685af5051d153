package engine

import (
	"log/slog"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/trading/gateway"
	"matchbox/trading/risk"
)

// OrderState tracks one managed order through its life.
type OrderState int

const (
	StateNone OrderState = iota
	StatePendingNew
	StateLive
	StatePendingCancel
)

func (s OrderState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StatePendingNew:
		return "PENDING_NEW"
	case StateLive:
		return "LIVE"
	case StatePendingCancel:
		return "PENDING_CANCEL"
	}
	return "UNKNOWN"
}

// ManagedOrder is the manager's view of at most one working order per
// side per instrument.
type ManagedOrder struct {
	OrderID types.OrderID
	Side    types.Side
	Price   types.Price
	Qty     types.Qty
	State   OrderState
}

// OrderManager keeps one bid and one ask working per instrument and
// converges them toward the prices the algo asks for. Every new order
// passes the risk gate first.
type OrderManager struct {
	gw   *gateway.Gateway
	risk *risk.Manager
	log  *slog.Logger

	orders      [types.MaxTickers][2]ManagedOrder
	nextOrderID types.OrderID
}

func NewOrderManager(gw *gateway.Gateway, riskMgr *risk.Manager, log *slog.Logger) *OrderManager {
	return &OrderManager{
		gw:          gw,
		risk:        riskMgr,
		log:         log.With("component", "ordermanager"),
		nextOrderID: 1,
	}
}

func sideIndex(s types.Side) int {
	if s == types.Buy {
		return 0
	}
	return 1
}

// Order returns the managed order for one side of one instrument.
func (m *OrderManager) Order(t types.TickerID, side types.Side) ManagedOrder {
	return m.orders[t][sideIndex(side)]
}

// MoveBoth converges both sides toward the given prices with the given
// clip. InvalidPrice on a side means work nothing there.
func (m *OrderManager) MoveBoth(t types.TickerID, bid, ask types.Price, clip types.Qty) {
	m.Move(t, types.Buy, bid, clip)
	m.Move(t, types.Sell, ask, clip)
}

// Move converges one side: cancel when the working price is stale or the
// target is invalid, place when nothing is working and the target is
// live. In-flight orders are left alone until their response lands.
func (m *OrderManager) Move(t types.TickerID, side types.Side, price types.Price, clip types.Qty) {
	o := &m.orders[t][sideIndex(side)]
	switch o.State {
	case StatePendingNew, StatePendingCancel:
		return
	case StateLive:
		if price == types.InvalidPrice || o.Price != price {
			m.cancel(t, o)
		}
	case StateNone:
		if price != types.InvalidPrice {
			m.place(t, side, price, clip)
		}
	}
}

func (m *OrderManager) place(t types.TickerID, side types.Side, price types.Price, clip types.Qty) {
	if verdict := m.risk.Check(t, side, clip); verdict != risk.Allowed {
		m.log.Debug("order blocked", "ticker", t, "side", side, "reason", verdict.String())
		return
	}
	o := &m.orders[t][sideIndex(side)]
	*o = ManagedOrder{
		OrderID: m.nextOrderID,
		Side:    side,
		Price:   price,
		Qty:     clip,
		State:   StatePendingNew,
	}
	m.nextOrderID++
	req := messages.ClientRequest{
		Kind:     messages.RequestNew,
		TickerID: t,
		OrderID:  o.OrderID,
		Side:     side,
		Price:    price,
		Qty:      clip,
	}
	if err := m.gw.Send(&req); err != nil {
		m.log.Error("new order send failed", "err", err)
		o.State = StateNone
	}
}

func (m *OrderManager) cancel(t types.TickerID, o *ManagedOrder) {
	req := messages.ClientRequest{
		Kind:     messages.RequestCancel,
		TickerID: t,
		OrderID:  o.OrderID,
		Side:     o.Side,
	}
	if err := m.gw.Send(&req); err != nil {
		m.log.Error("cancel send failed", "err", err)
		return
	}
	o.State = StatePendingCancel
}

// OnResponse advances the state machine for responses that concern a
// managed order. Foreign order ids (e.g. from a restarted session) are
// ignored.
func (m *OrderManager) OnResponse(r *messages.ClientResponse) {
	if int(r.TickerID) >= types.MaxTickers {
		return
	}
	o := &m.orders[r.TickerID][sideIndex(r.Side)]
	if o.State == StateNone || o.OrderID != r.ClientOrderID {
		return
	}
	switch r.Kind {
	case messages.ResponseAccepted:
		o.State = StateLive
		o.Qty = r.LeavesQty
	case messages.ResponseCanceled:
		o.State = StateNone
	case messages.ResponseFilled:
		o.Qty = r.LeavesQty
		if r.LeavesQty == 0 {
			o.State = StateNone
		}
	case messages.ResponseCancelRejected:
		// The order was already gone (fully filled or never resting).
		if o.State == StatePendingCancel {
			o.State = StateNone
		}
	}
}
