package orderbook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/infra/sequence"
)

// recorder captures emissions in order. Book scratch is copied on receipt.
type recorder struct {
	events []any
}

func (r *recorder) SendResponse(m *messages.ClientResponse) { r.events = append(r.events, *m) }
func (r *recorder) SendUpdate(u *messages.MarketUpdate)     { r.events = append(r.events, *u) }

func (r *recorder) reset() { r.events = r.events[:0] }

func (r *recorder) responses() []messages.ClientResponse {
	var out []messages.ClientResponse
	for _, e := range r.events {
		if m, ok := e.(messages.ClientResponse); ok {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) updates() []messages.MarketUpdate {
	var out []messages.MarketUpdate
	for _, e := range r.events {
		if u, ok := e.(messages.MarketUpdate); ok {
			out = append(out, u)
		}
	}
	return out
}

func newTestBook(t *testing.T) (*Book, *recorder) {
	t.Helper()
	rec := &recorder{}
	return New(1, 1024, sequence.New(0), rec), rec
}

func newReq(kind messages.RequestKind, client types.ClientID, id types.OrderID, side types.Side, px types.Price, qty types.Qty) *messages.ClientRequest {
	return &messages.ClientRequest{
		Kind:     kind,
		ClientID: client,
		TickerID: 1,
		OrderID:  id,
		Side:     side,
		Price:    px,
		Qty:      qty,
	}
}

func TestAddRestsAndAccepts(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 7, 1, types.Buy, 100, 10))

	require.Len(t, rec.events, 2)
	add, ok := rec.events[0].(messages.MarketUpdate)
	require.True(t, ok, "first emission must be the ADD update")
	require.Equal(t, messages.UpdateAdd, add.Kind)
	require.Equal(t, types.Price(100), add.Price)
	require.Equal(t, types.Qty(10), add.Qty)
	require.Equal(t, types.Priority(1), add.Priority)

	acc, ok := rec.events[1].(messages.ClientResponse)
	require.True(t, ok, "second emission must be the ACCEPTED response")
	require.Equal(t, messages.ResponseAccepted, acc.Kind)
	require.Equal(t, types.ClientID(7), acc.ClientID)
	require.Equal(t, add.OrderID, acc.MarketOrderID)
	require.Equal(t, types.Qty(0), acc.ExecQty)
	require.Equal(t, types.Qty(10), acc.LeavesQty)

	require.NotNil(t, b.BestBid())
	require.Equal(t, types.Price(100), b.BestBid().Price)
	require.Equal(t, 1, b.OpenOrders())
}

func TestAddRejectsBadRequests(t *testing.T) {
	b, rec := newTestBook(t)

	cases := []struct {
		name string
		req  *messages.ClientRequest
	}{
		{"zero qty", newReq(messages.RequestNew, 1, 1, types.Buy, 100, 0)},
		{"negative qty", newReq(messages.RequestNew, 1, 2, types.Buy, 100, -5)},
		{"invalid side", newReq(messages.RequestNew, 1, 3, types.SideInvalid, 100, 10)},
		{"negative price", newReq(messages.RequestNew, 1, 4, types.Buy, -1, 10)},
		{"price off the grid", newReq(messages.RequestNew, 1, 5, types.Buy, types.MaxPriceLevels, 10)},
	}
	for _, tc := range cases {
		rec.reset()
		b.Add(tc.req)
		require.Len(t, rec.events, 1, tc.name)
		resp, ok := rec.events[0].(messages.ClientResponse)
		require.True(t, ok, tc.name)
		require.Equal(t, messages.ResponseCancelRejected, resp.Kind, tc.name)
		require.Equal(t, types.InvalidOrderID, resp.MarketOrderID, tc.name)
		require.Equal(t, types.InvalidQty, resp.ExecQty, tc.name)
		require.Equal(t, types.InvalidQty, resp.LeavesQty, tc.name)
	}
	require.Equal(t, 0, b.OpenOrders())
}

func TestAddRejectsDuplicateClientOrderID(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 3, 9, types.Buy, 100, 10))
	rec.reset()

	b.Add(newReq(messages.RequestNew, 3, 9, types.Buy, 101, 10))
	require.Len(t, rec.events, 1)
	resp := rec.responses()[0]
	require.Equal(t, messages.ResponseCancelRejected, resp.Kind)
	require.Equal(t, types.InvalidOrderID, resp.MarketOrderID)

	// Same client order id under a different client is fine.
	rec.reset()
	b.Add(newReq(messages.RequestNew, 4, 9, types.Buy, 101, 10))
	require.Equal(t, messages.ResponseAccepted, rec.responses()[0].Kind)
	require.Equal(t, 2, b.OpenOrders())
}

func TestPartialFillEmissionOrder(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 1, 1, types.Sell, 100, 10))
	rec.reset()

	b.Add(newReq(messages.RequestNew, 2, 1, types.Buy, 100, 4))
	require.Len(t, rec.events, 4)

	trade, ok := rec.events[0].(messages.MarketUpdate)
	require.True(t, ok)
	require.Equal(t, messages.UpdateTrade, trade.Kind)
	require.Equal(t, types.InvalidOrderID, trade.OrderID)
	require.Equal(t, types.Buy, trade.Side)
	require.Equal(t, types.Price(100), trade.Price)
	require.Equal(t, types.Qty(4), trade.Qty)
	require.Equal(t, types.InvalidPriority, trade.Priority)

	mod, ok := rec.events[1].(messages.MarketUpdate)
	require.True(t, ok)
	require.Equal(t, messages.UpdateModify, mod.Kind)
	require.Equal(t, types.Qty(6), mod.Qty)

	agg, ok := rec.events[2].(messages.ClientResponse)
	require.True(t, ok)
	require.Equal(t, messages.ResponseFilled, agg.Kind)
	require.Equal(t, types.ClientID(2), agg.ClientID)
	require.Equal(t, types.Qty(4), agg.ExecQty)
	require.Equal(t, types.Qty(0), agg.LeavesQty)

	rest, ok := rec.events[3].(messages.ClientResponse)
	require.True(t, ok)
	require.Equal(t, messages.ResponseFilled, rest.Kind)
	require.Equal(t, types.ClientID(1), rest.ClientID)
	require.Equal(t, types.Qty(4), rest.ExecQty)
	require.Equal(t, types.Qty(6), rest.LeavesQty)

	require.Equal(t, types.Qty(6), b.BestAsk().TotalQty)
	require.Equal(t, 1, b.OpenOrders())
}

func TestFullFillAcrossLevels(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 1, 1, types.Sell, 100, 5))
	b.Add(newReq(messages.RequestNew, 1, 2, types.Sell, 101, 5))
	rec.reset()

	b.Add(newReq(messages.RequestNew, 2, 1, types.Buy, 102, 10))

	// Per fill: TRADE, then the resting order's CANCEL, then two FILLED.
	updates := rec.updates()
	require.Len(t, updates, 4)
	require.Equal(t, messages.UpdateTrade, updates[0].Kind)
	require.Equal(t, types.Price(100), updates[0].Price)
	require.Equal(t, messages.UpdateCancel, updates[1].Kind)
	require.Equal(t, types.Qty(0), updates[1].Qty)
	require.Equal(t, messages.UpdateTrade, updates[2].Kind)
	require.Equal(t, types.Price(101), updates[2].Price)
	require.Equal(t, messages.UpdateCancel, updates[3].Kind)

	responses := rec.responses()
	require.Len(t, responses, 4)
	// Each fill executes at the resting price, aggressor first.
	require.Equal(t, types.ClientID(2), responses[0].ClientID)
	require.Equal(t, types.Price(100), responses[0].Price)
	require.Equal(t, types.Qty(5), responses[0].LeavesQty)
	require.Equal(t, types.ClientID(1), responses[1].ClientID)
	require.Equal(t, types.ClientID(2), responses[2].ClientID)
	require.Equal(t, types.Price(101), responses[2].Price)
	require.Equal(t, types.Qty(0), responses[2].LeavesQty)

	require.Nil(t, b.BestAsk())
	require.Nil(t, b.BestBid(), "fully filled aggressor must not rest")
	require.Equal(t, 0, b.OpenOrders())
}

func TestResidualRestsAfterSweep(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 1, 1, types.Sell, 100, 5))
	rec.reset()

	b.Add(newReq(messages.RequestNew, 2, 1, types.Buy, 101, 8))

	events := rec.events
	require.Len(t, events, 6)
	require.Equal(t, messages.UpdateTrade, events[0].(messages.MarketUpdate).Kind)
	require.Equal(t, messages.UpdateCancel, events[1].(messages.MarketUpdate).Kind)
	require.Equal(t, messages.ResponseFilled, events[2].(messages.ClientResponse).Kind)
	require.Equal(t, messages.ResponseFilled, events[3].(messages.ClientResponse).Kind)

	add := events[4].(messages.MarketUpdate)
	require.Equal(t, messages.UpdateAdd, add.Kind)
	require.Equal(t, types.Price(101), add.Price)
	require.Equal(t, types.Qty(3), add.Qty)

	acc := events[5].(messages.ClientResponse)
	require.Equal(t, messages.ResponseAccepted, acc.Kind)
	require.Equal(t, types.Qty(0), acc.ExecQty)
	require.Equal(t, types.Qty(3), acc.LeavesQty)

	require.Equal(t, types.Price(101), b.BestBid().Price)
	require.Equal(t, 1, b.OpenOrders())
}

func TestCancel(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 5, 1, types.Buy, 100, 10))
	marketID := rec.responses()[0].MarketOrderID
	rec.reset()

	b.Cancel(newReq(messages.RequestCancel, 5, 1, types.Buy, 0, 0))

	require.Len(t, rec.events, 2)
	upd := rec.events[0].(messages.MarketUpdate)
	require.Equal(t, messages.UpdateCancel, upd.Kind)
	require.Equal(t, marketID, upd.OrderID)
	require.Equal(t, types.Qty(10), upd.Qty)

	resp := rec.events[1].(messages.ClientResponse)
	require.Equal(t, messages.ResponseCanceled, resp.Kind)
	require.Equal(t, marketID, resp.MarketOrderID)
	require.Equal(t, types.InvalidQty, resp.ExecQty)
	require.Equal(t, types.Qty(10), resp.LeavesQty)

	require.Nil(t, b.BestBid())
	require.Equal(t, 0, b.OpenOrders())
	require.Nil(t, b.OrderFor(5, 1))
}

func TestCancelRejected(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 5, 1, types.Buy, 100, 10))
	rec.reset()

	// Unknown order id.
	b.Cancel(newReq(messages.RequestCancel, 5, 99, types.Buy, 0, 0))
	require.Len(t, rec.events, 1, "reject must not move the market")
	resp := rec.events[0].(messages.ClientResponse)
	require.Equal(t, messages.ResponseCancelRejected, resp.Kind)
	require.Equal(t, types.InvalidOrderID, resp.MarketOrderID)
	require.Equal(t, types.InvalidPrice, resp.Price)

	// Another client cannot cancel order 1.
	rec.reset()
	b.Cancel(newReq(messages.RequestCancel, 6, 1, types.Buy, 0, 0))
	require.Len(t, rec.events, 1)
	require.Equal(t, messages.ResponseCancelRejected, rec.responses()[0].Kind)
	require.Equal(t, 1, b.OpenOrders())
	require.NotNil(t, b.OrderFor(5, 1))
}

func TestPriceTimePriority(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 1, 1, types.Buy, 100, 5))
	b.Add(newReq(messages.RequestNew, 2, 1, types.Buy, 100, 5))

	first := b.OrderFor(1, 1)
	second := b.OrderFor(2, 1)
	require.Equal(t, types.Priority(1), first.Priority)
	require.Equal(t, types.Priority(2), second.Priority)
	require.Same(t, first, b.BestBid().Head())
	require.Same(t, second, first.Next())

	rec.reset()
	b.Add(newReq(messages.RequestNew, 3, 1, types.Sell, 100, 5))

	// The older resting order fills first and leaves the level.
	responses := rec.responses()
	require.Len(t, responses, 2)
	require.Equal(t, types.ClientID(1), responses[1].ClientID)
	require.Nil(t, b.OrderFor(1, 1))
	require.Same(t, second, b.BestBid().Head())
}

func TestLadderOrdering(t *testing.T) {
	b, _ := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 1, 1, types.Buy, 100, 1))
	b.Add(newReq(messages.RequestNew, 1, 2, types.Buy, 98, 1))
	b.Add(newReq(messages.RequestNew, 1, 3, types.Buy, 102, 1))
	b.Add(newReq(messages.RequestNew, 1, 4, types.Sell, 105, 1))
	b.Add(newReq(messages.RequestNew, 1, 5, types.Sell, 103, 1))

	var bids []types.Price
	for lvl := b.BestBid(); lvl != nil; lvl = lvl.NextLevel() {
		bids = append(bids, lvl.Price)
	}
	require.Equal(t, []types.Price{102, 100, 98}, bids)

	var asks []types.Price
	for lvl := b.BestAsk(); lvl != nil; lvl = lvl.NextLevel() {
		asks = append(asks, lvl.Price)
	}
	require.Equal(t, []types.Price{103, 105}, asks)
}

func TestNoTradeThroughRestingPrice(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 1, 1, types.Sell, 105, 5))
	rec.reset()

	// Bid below the best ask must rest, not trade.
	b.Add(newReq(messages.RequestNew, 2, 1, types.Buy, 104, 5))
	require.Len(t, rec.updates(), 1)
	require.Equal(t, messages.UpdateAdd, rec.updates()[0].Kind)
	require.Equal(t, types.Price(105), b.BestAsk().Price)
	require.Equal(t, types.Price(104), b.BestBid().Price)
}

func TestMarketOrderIDsStrictlyIncrease(t *testing.T) {
	b, rec := newTestBook(t)
	b.Add(newReq(messages.RequestNew, 1, 1, types.Buy, 100, 1))
	b.Add(newReq(messages.RequestNew, 1, 2, types.Buy, 100, 1))
	b.Add(newReq(messages.RequestNew, 1, 3, types.Buy, 100, 1))

	responses := rec.responses()
	require.Len(t, responses, 3)
	require.Greater(t, responses[1].MarketOrderID, responses[0].MarketOrderID)
	require.Greater(t, responses[2].MarketOrderID, responses[1].MarketOrderID)
}
