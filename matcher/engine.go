// Package matcher runs the matching engine: a single goroutine that owns
// every order book, consumes the sequenced request ring and produces the
// response and market update rings. Nothing else touches the books.
package matcher

import (
	"log/slog"
	"runtime"
	"sync/atomic"

	"matchbox/domain/messages"
	"matchbox/domain/orderbook"
	"matchbox/domain/types"
	"matchbox/infra/memory"
	"matchbox/infra/sequence"
)

// Engine is the exchange core. It implements orderbook.Sink so the books
// can emit straight into the outbound rings without copies in between.
type Engine struct {
	requests  *memory.Ring[messages.ClientRequest]
	responses *memory.Ring[messages.ClientResponse]
	updates   *memory.Ring[messages.MarketUpdate]

	books [types.MaxTickers]*orderbook.Book
	seq   *sequence.Sequencer

	log  *slog.Logger
	run  atomic.Bool
	done chan struct{}

	scratch messages.ClientResponse
}

// New wires an engine to its three rings. Market order IDs are drawn from
// a single sequencer shared by every book so they are unique exchange-wide.
func New(
	requests *memory.Ring[messages.ClientRequest],
	responses *memory.Ring[messages.ClientResponse],
	updates *memory.Ring[messages.MarketUpdate],
	log *slog.Logger,
) *Engine {
	e := &Engine{
		requests:  requests,
		responses: responses,
		updates:   updates,
		seq:       sequence.New(1),
		log:       log.With("component", "matcher"),
		done:      make(chan struct{}),
	}
	for t := range e.books {
		e.books[t] = orderbook.New(types.TickerID(t), types.MaxOrderIDs, e.seq, e)
	}
	return e
}

// Start launches the matching goroutine.
func (e *Engine) Start() {
	e.run.Store(true)
	go e.loop()
}

// Stop asks the loop to exit and blocks until the request ring is drained
// and the goroutine has returned.
func (e *Engine) Stop() {
	e.run.Store(false)
	<-e.done
}

// Submit places one request on the inbound ring, spinning if the engine
// is behind. The request is copied; the caller keeps ownership of r.
func (e *Engine) Submit(r *messages.ClientRequest) {
	for {
		slot, ok := e.requests.ReserveWrite()
		if ok {
			*slot = *r
			e.requests.CommitWrite()
			return
		}
		runtime.Gosched()
	}
}

func (e *Engine) loop() {
	defer close(e.done)
	e.log.Info("matching engine running", "tickers", len(e.books))
	for {
		r, ok := e.requests.PeekRead()
		if !ok {
			if !e.run.Load() {
				e.log.Info("matching engine stopped")
				return
			}
			runtime.Gosched()
			continue
		}
		e.process(r)
		e.requests.ReleaseRead()
	}
}

func (e *Engine) process(r *messages.ClientRequest) {
	if int(r.TickerID) >= len(e.books) {
		e.reject(r)
		return
	}
	book := e.books[r.TickerID]
	switch r.Kind {
	case messages.RequestNew:
		book.Add(r)
	case messages.RequestCancel:
		book.Cancel(r)
	default:
		e.reject(r)
	}
}

// reject answers a request the engine cannot route to any book.
func (e *Engine) reject(r *messages.ClientRequest) {
	e.scratch = messages.ClientResponse{
		Kind:          messages.ResponseCancelRejected,
		ClientID:      r.ClientID,
		TickerID:      r.TickerID,
		ClientOrderID: r.OrderID,
		MarketOrderID: types.InvalidOrderID,
		Side:          r.Side,
		Price:         r.Price,
		ExecQty:       types.InvalidQty,
		LeavesQty:     types.InvalidQty,
	}
	e.SendResponse(&e.scratch)
}

// SendResponse copies one response onto the outbound ring, spinning until
// space frees up. Responses are never dropped.
func (e *Engine) SendResponse(r *messages.ClientResponse) {
	for {
		slot, ok := e.responses.ReserveWrite()
		if ok {
			*slot = *r
			e.responses.CommitWrite()
			return
		}
		runtime.Gosched()
	}
}

// SendUpdate copies one market update onto the outbound ring, spinning
// until space frees up. The tape stays gap-free at the ring boundary.
func (e *Engine) SendUpdate(u *messages.MarketUpdate) {
	for {
		slot, ok := e.updates.ReserveWrite()
		if ok {
			*slot = *u
			e.updates.CommitWrite()
			return
		}
		runtime.Gosched()
	}
}

// Book exposes a ticker's book for inspection from tests. It must only be
// read while the engine is stopped.
func (e *Engine) Book(t types.TickerID) *orderbook.Book {
	if int(t) >= len(e.books) {
		return nil
	}
	return e.books[t]
}
