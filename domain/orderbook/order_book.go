package orderbook

import (
	"fmt"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/infra/memory"
	"matchbox/infra/sequence"
)

// Sink receives the responses and market updates a book operation emits,
// in emission order. The pointers are scratch storage owned by the book
// and are only valid for the duration of the call; implementations copy.
type Sink interface {
	SendResponse(*messages.ClientResponse)
	SendUpdate(*messages.MarketUpdate)
}

type clientKey struct {
	client types.ClientID
	order  types.OrderID
}

// Book is the per-instrument limit order book with price-time FIFO
// priority. It is owned by a single goroutine and never accessed
// concurrently.
//
// Price levels hang off two ladders (bids descending, asks ascending,
// best at the head) and are additionally reachable through a dense array
// indexed directly by the integer tick. Live orders are reachable through
// the (ClientID, ClientOrderID) map used by cancels. All nodes come from
// fixed pools; pool exhaustion is fatal.
type Book struct {
	tickerID types.TickerID
	seq      *sequence.Sequencer
	sink     Sink

	orders *memory.Pool[Order]
	levels *memory.Pool[PriceLevel]

	byPrice  []*PriceLevel
	bestBid  *PriceLevel
	bestAsk  *PriceLevel
	byClient map[clientKey]*Order

	response messages.ClientResponse
	update   messages.MarketUpdate
}

// New builds an empty book for one instrument. orderCap bounds the number
// of simultaneously resting orders and must be a power of two; seq is the
// engine-scope market order id sequencer shared by all books.
func New(tickerID types.TickerID, orderCap uint64, seq *sequence.Sequencer, sink Sink) *Book {
	return &Book{
		tickerID: tickerID,
		seq:      seq,
		sink:     sink,
		orders:   memory.NewPool[Order](orderCap),
		levels:   memory.NewPool[PriceLevel](types.MaxPriceLevels),
		byPrice:  make([]*PriceLevel, types.MaxPriceLevels),
		byClient: make(map[clientKey]*Order, orderCap),
	}
}

// Add matches a NEW request against the opposite side and rests any
// residual. Emissions, in order: per fill a TRADE update, the resting
// order's MODIFY or CANCEL update, then the FILLED responses (aggressor
// first); for a resting residual an ADD update then the ACCEPTED
// response.
func (b *Book) Add(req *messages.ClientRequest) {
	if req.Qty <= 0 || (req.Side != types.Buy && req.Side != types.Sell) || !b.validPrice(req.Price) {
		b.rejectNew(req)
		return
	}
	key := clientKey{req.ClientID, req.OrderID}
	if _, live := b.byClient[key]; live {
		b.rejectNew(req)
		return
	}

	marketOrderID := types.OrderID(b.seq.Next())
	leaves := b.match(req, marketOrderID)
	if leaves == 0 {
		return
	}

	idx := int(req.Price)
	lvl := b.byPrice[idx]
	priority := types.Priority(1)
	if lvl != nil {
		if lvl.Side != req.Side {
			panic(fmt.Sprintf("orderbook: ticker %s price %s holds a crossed %s level",
				b.tickerID, req.Price, lvl.Side))
		}
		priority = lvl.tail.Priority + 1
	} else {
		lvl = b.addLevel(req.Side, req.Price)
	}

	o, ok := b.orders.Acquire()
	if !ok {
		panic(fmt.Sprintf("orderbook: ticker %s order pool exhausted", b.tickerID))
	}
	*o = Order{
		ClientID:      req.ClientID,
		ClientOrderID: req.OrderID,
		MarketOrderID: marketOrderID,
		TickerID:      b.tickerID,
		Side:          req.Side,
		Price:         req.Price,
		Qty:           leaves,
		Priority:      priority,
	}
	lvl.enqueue(o)
	b.byClient[key] = o

	b.update = messages.MarketUpdate{
		Kind:     messages.UpdateAdd,
		OrderID:  marketOrderID,
		TickerID: b.tickerID,
		Side:     req.Side,
		Price:    req.Price,
		Qty:      leaves,
		Priority: priority,
	}
	b.sink.SendUpdate(&b.update)

	b.response = messages.ClientResponse{
		Kind:          messages.ResponseAccepted,
		ClientID:      req.ClientID,
		TickerID:      b.tickerID,
		ClientOrderID: req.OrderID,
		MarketOrderID: marketOrderID,
		Side:          req.Side,
		Price:         req.Price,
		ExecQty:       0,
		LeavesQty:     leaves,
	}
	b.sink.SendResponse(&b.response)
}

// Cancel removes the named order if it is live and owned by the
// requesting client. Emits the CANCEL update then the CANCELED response,
// or a CANCEL_REJECTED response with no update and no state change.
func (b *Book) Cancel(req *messages.ClientRequest) {
	o, ok := b.byClient[clientKey{req.ClientID, req.OrderID}]
	if !ok {
		b.response = messages.ClientResponse{
			Kind:          messages.ResponseCancelRejected,
			ClientID:      req.ClientID,
			TickerID:      b.tickerID,
			ClientOrderID: req.OrderID,
			MarketOrderID: types.InvalidOrderID,
			Side:          req.Side,
			Price:         types.InvalidPrice,
			ExecQty:       types.InvalidQty,
			LeavesQty:     types.InvalidQty,
		}
		b.sink.SendResponse(&b.response)
		return
	}

	b.update = messages.MarketUpdate{
		Kind:     messages.UpdateCancel,
		OrderID:  o.MarketOrderID,
		TickerID: b.tickerID,
		Side:     o.Side,
		Price:    o.Price,
		Qty:      o.Qty,
		Priority: o.Priority,
	}
	b.sink.SendUpdate(&b.update)

	b.response = messages.ClientResponse{
		Kind:          messages.ResponseCanceled,
		ClientID:      req.ClientID,
		TickerID:      b.tickerID,
		ClientOrderID: req.OrderID,
		MarketOrderID: o.MarketOrderID,
		Side:          o.Side,
		Price:         o.Price,
		ExecQty:       types.InvalidQty,
		LeavesQty:     o.Qty,
	}
	b.sink.SendResponse(&b.response)

	b.removeOrder(o)
}

// match walks the opposite ladder best-first while the incoming order is
// marketable, filling resting orders in FIFO order. Returns the incoming
// order's unfilled remainder.
func (b *Book) match(req *messages.ClientRequest, marketOrderID types.OrderID) types.Qty {
	leaves := req.Qty
	for leaves > 0 {
		var lvl *PriceLevel
		if req.Side == types.Buy {
			lvl = b.bestAsk
			if lvl == nil || lvl.Price > req.Price {
				break
			}
		} else {
			lvl = b.bestBid
			if lvl == nil || lvl.Price < req.Price {
				break
			}
		}

		// Empty levels never stay on the ladder, head is live.
		o := lvl.head
		fill := leaves
		if o.Qty < fill {
			fill = o.Qty
		}
		leaves -= fill
		o.Qty -= fill
		lvl.TotalQty -= fill

		b.update = messages.MarketUpdate{
			Kind:     messages.UpdateTrade,
			OrderID:  types.InvalidOrderID,
			TickerID: b.tickerID,
			Side:     req.Side,
			Price:    lvl.Price,
			Qty:      fill,
			Priority: types.InvalidPriority,
		}
		b.sink.SendUpdate(&b.update)

		if o.Qty == 0 {
			b.update = messages.MarketUpdate{
				Kind:     messages.UpdateCancel,
				OrderID:  o.MarketOrderID,
				TickerID: b.tickerID,
				Side:     o.Side,
				Price:    o.Price,
				Qty:      0,
				Priority: o.Priority,
			}
		} else {
			b.update = messages.MarketUpdate{
				Kind:     messages.UpdateModify,
				OrderID:  o.MarketOrderID,
				TickerID: b.tickerID,
				Side:     o.Side,
				Price:    o.Price,
				Qty:      o.Qty,
				Priority: o.Priority,
			}
		}
		b.sink.SendUpdate(&b.update)

		b.response = messages.ClientResponse{
			Kind:          messages.ResponseFilled,
			ClientID:      req.ClientID,
			TickerID:      b.tickerID,
			ClientOrderID: req.OrderID,
			MarketOrderID: marketOrderID,
			Side:          req.Side,
			Price:         lvl.Price,
			ExecQty:       fill,
			LeavesQty:     leaves,
		}
		b.sink.SendResponse(&b.response)

		b.response = messages.ClientResponse{
			Kind:          messages.ResponseFilled,
			ClientID:      o.ClientID,
			TickerID:      b.tickerID,
			ClientOrderID: o.ClientOrderID,
			MarketOrderID: o.MarketOrderID,
			Side:          o.Side,
			Price:         lvl.Price,
			ExecQty:       fill,
			LeavesQty:     o.Qty,
		}
		b.sink.SendResponse(&b.response)

		if o.Qty == 0 {
			b.removeOrder(o)
		}
	}
	return leaves
}

func (b *Book) rejectNew(req *messages.ClientRequest) {
	b.response = messages.ClientResponse{
		Kind:          messages.ResponseCancelRejected,
		ClientID:      req.ClientID,
		TickerID:      b.tickerID,
		ClientOrderID: req.OrderID,
		MarketOrderID: types.InvalidOrderID,
		Side:          req.Side,
		Price:         req.Price,
		ExecQty:       types.InvalidQty,
		LeavesQty:     types.InvalidQty,
	}
	b.sink.SendResponse(&b.response)
}

func (b *Book) removeOrder(o *Order) {
	lvl := b.byPrice[int(o.Price)]
	if lvl == nil {
		panic(fmt.Sprintf("orderbook: ticker %s order %s rests at price %s with no level",
			b.tickerID, o.MarketOrderID, o.Price))
	}
	delete(b.byClient, clientKey{o.ClientID, o.ClientOrderID})
	lvl.unlink(o, o.Qty)
	if lvl.empty() {
		b.removeLevel(lvl)
	}
	b.orders.Release(o)
}

// addLevel allocates a level and splices it into its ladder: scan from
// the current best until the first level whose price is worse, insert
// before it, updating the best head when the new price improves it.
func (b *Book) addLevel(side types.Side, price types.Price) *PriceLevel {
	lvl, ok := b.levels.Acquire()
	if !ok {
		panic(fmt.Sprintf("orderbook: ticker %s price level pool exhausted", b.tickerID))
	}
	*lvl = PriceLevel{Side: side, Price: price}
	b.byPrice[int(price)] = lvl

	best := &b.bestBid
	better := func(a, b types.Price) bool { return a > b }
	if side == types.Sell {
		best = &b.bestAsk
		better = func(a, b types.Price) bool { return a < b }
	}

	if *best == nil || better(price, (*best).Price) {
		lvl.nextLevel = *best
		if *best != nil {
			(*best).prevLevel = lvl
		}
		*best = lvl
		return lvl
	}
	at := *best
	for at.nextLevel != nil && better(at.nextLevel.Price, price) {
		at = at.nextLevel
	}
	lvl.nextLevel = at.nextLevel
	lvl.prevLevel = at
	if at.nextLevel != nil {
		at.nextLevel.prevLevel = lvl
	}
	at.nextLevel = lvl
	return lvl
}

func (b *Book) removeLevel(lvl *PriceLevel) {
	if lvl.prevLevel != nil {
		lvl.prevLevel.nextLevel = lvl.nextLevel
	} else if lvl.Side == types.Buy {
		b.bestBid = lvl.nextLevel
	} else {
		b.bestAsk = lvl.nextLevel
	}
	if lvl.nextLevel != nil {
		lvl.nextLevel.prevLevel = lvl.prevLevel
	}
	b.byPrice[int(lvl.Price)] = nil
	b.levels.Release(lvl)
}

func (b *Book) validPrice(p types.Price) bool {
	return p >= 0 && int(p) < len(b.byPrice)
}

// BestBid returns the highest bid level, nil when the bid side is empty.
func (b *Book) BestBid() *PriceLevel { return b.bestBid }

// BestAsk returns the lowest ask level, nil when the ask side is empty.
func (b *Book) BestAsk() *PriceLevel { return b.bestAsk }

// OrderFor resolves a live order through the reverse lookup.
func (b *Book) OrderFor(client types.ClientID, clientOrderID types.OrderID) *Order {
	return b.byClient[clientKey{client, clientOrderID}]
}

// OpenOrders counts live resting orders.
func (b *Book) OpenOrders() int { return len(b.byClient) }
