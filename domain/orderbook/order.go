package orderbook

import "matchbox/domain/types"

// Order is a resting order inside the book. Nodes live in the book's
// object pool and are linked intrusively into their price level's FIFO;
// they are only ever touched by the book's owning goroutine.
type Order struct {
	ClientID      types.ClientID
	ClientOrderID types.OrderID
	MarketOrderID types.OrderID
	TickerID      types.TickerID
	Side          types.Side
	Price         types.Price
	Qty           types.Qty
	Priority      types.Priority

	prev, next *Order
}

// Next returns the order behind this one in its level's FIFO, nil at the
// tail.
func (o *Order) Next() *Order { return o.next }
