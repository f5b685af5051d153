package marketdata

import (
	"sort"
	"sync"

	"matchbox/domain/messages"
	"matchbox/domain/types"
)

// Shadow mirrors the resting state of every book from the update stream
// alone. The publisher applies each sequenced update to it so snapshots
// can be synthesized without ever touching the engine's books. Reads from
// the ops surface take the lock; the publisher is the only writer.
type Shadow struct {
	mu      sync.RWMutex
	books   [types.MaxTickers]map[types.OrderID]messages.MarketUpdate
	lastSeq types.SeqNum
}

// NewShadow returns an empty shadow of all books.
func NewShadow() *Shadow {
	s := &Shadow{}
	for t := range s.books {
		s.books[t] = make(map[types.OrderID]messages.MarketUpdate)
	}
	return s
}

// Apply folds one sequenced update into the shadow state. Trades carry no
// book delta of their own: the matching engine always follows a trade with
// the resting order's MODIFY or CANCEL.
func (s *Shadow) Apply(seq types.SeqNum, u *messages.MarketUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeq = seq
	if int(u.TickerID) >= len(s.books) {
		return
	}
	book := s.books[u.TickerID]
	switch u.Kind {
	case messages.UpdateAdd:
		book[u.OrderID] = *u
	case messages.UpdateModify:
		if e, ok := book[u.OrderID]; ok {
			e.Qty = u.Qty
			book[u.OrderID] = e
		}
	case messages.UpdateCancel:
		delete(book, u.OrderID)
	case messages.UpdateClear:
		s.books[u.TickerID] = make(map[types.OrderID]messages.MarketUpdate)
	}
}

// LastSeq returns the sequence number of the last update folded in.
func (s *Shadow) LastSeq() types.SeqNum {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// Orders returns every resting order of one ticker in deterministic
// snapshot order: bids before asks, each ladder best-first, FIFO within a
// level.
func (s *Shadow) Orders(ticker types.TickerID) []messages.MarketUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(ticker) >= len(s.books) {
		return nil
	}
	out := make([]messages.MarketUpdate, 0, len(s.books[ticker]))
	for _, e := range s.books[ticker] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.Side != b.Side {
			return a.Side == types.Buy
		}
		if a.Price != b.Price {
			if a.Side == types.Buy {
				return a.Price > b.Price
			}
			return a.Price < b.Price
		}
		return a.Priority < b.Priority
	})
	return out
}

// DepthLevel is one aggregated price level of a depth view.
type DepthLevel struct {
	Price  types.Price `json:"price"`
	Qty    types.Qty   `json:"qty"`
	Orders int         `json:"orders"`
}

// DepthView is the aggregated two-sided book of one ticker.
type DepthView struct {
	TickerID types.TickerID `json:"ticker_id"`
	LastSeq  types.SeqNum   `json:"last_seq"`
	Bids     []DepthLevel   `json:"bids"`
	Asks     []DepthLevel   `json:"asks"`
}

// Depth aggregates one ticker's shadow into per-price levels, bids
// descending and asks ascending, truncated to maxLevels per side
// (0 means unbounded).
func (s *Shadow) Depth(ticker types.TickerID, maxLevels int) DepthView {
	orders := s.Orders(ticker)
	view := DepthView{TickerID: ticker, LastSeq: s.LastSeq()}
	aggregate := func(side types.Side) []DepthLevel {
		var levels []DepthLevel
		for i := range orders {
			o := &orders[i]
			if o.Side != side {
				continue
			}
			if n := len(levels); n > 0 && levels[n-1].Price == o.Price {
				levels[n-1].Qty += o.Qty
				levels[n-1].Orders++
				continue
			}
			levels = append(levels, DepthLevel{Price: o.Price, Qty: o.Qty, Orders: 1})
		}
		if maxLevels > 0 && len(levels) > maxLevels {
			levels = levels[:maxLevels]
		}
		return levels
	}
	view.Bids = aggregate(types.Buy)
	view.Asks = aggregate(types.Sell)
	return view
}
