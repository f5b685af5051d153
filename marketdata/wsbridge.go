package marketdata

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/infra/metrics"
)

// wsDelta is the JSON shape of one sequenced update on the ops websocket.
type wsDelta struct {
	Seq      types.SeqNum   `json:"seq"`
	Kind     string         `json:"kind"`
	OrderID  types.OrderID  `json:"order_id"`
	TickerID types.TickerID `json:"ticker_id"`
	Side     string         `json:"side"`
	Price    types.Price    `json:"price"`
	Qty      types.Qty      `json:"qty"`
	Priority types.Priority `json:"priority"`
}

// WSBridge streams book deltas to websocket subscribers on the ops
// listener. It is a best-effort view for humans: a subscriber that cannot
// keep up with the tape is disconnected rather than ever backpressuring
// the publisher.
type WSBridge struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	out  chan wsDelta
}

const wsClientBuffer = 1024

// NewWSBridge returns a bridge with no subscribers.
func NewWSBridge(log *slog.Logger) *WSBridge {
	return &WSBridge{
		log:     log.With("component", "wsbridge"),
		clients: make(map[*wsClient]struct{}),
	}
}

// Publish implements Tap. Slow clients get dropped on the spot.
func (b *WSBridge) Publish(seq types.SeqNum, u *messages.MarketUpdate) {
	d := wsDelta{
		Seq:      seq,
		Kind:     u.Kind.String(),
		OrderID:  u.OrderID,
		TickerID: u.TickerID,
		Side:     u.Side.String(),
		Price:    u.Price,
		Qty:      u.Qty,
		Priority: u.Priority,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.out <- d:
		default:
			delete(b.clients, c)
			close(c.out)
			metrics.WSClientsDropped.Inc()
			b.log.Warn("websocket subscriber dropped", "remote", c.conn.RemoteAddr().String())
		}
	}
}

// ServeHTTP upgrades the connection and streams deltas until the client
// disconnects or falls behind.
func (b *WSBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &wsClient{conn: conn, out: make(chan wsDelta, wsClientBuffer)}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	b.log.Info("websocket subscriber connected", "remote", conn.RemoteAddr().String())

	go func() {
		defer conn.Close()
		for d := range c.out {
			if err := conn.WriteJSON(d); err != nil {
				b.remove(c)
				return
			}
		}
	}()

	// Reader only drains control frames; inbound data is ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.remove(c)
				conn.Close()
				return
			}
		}
	}()
}

func (b *WSBridge) remove(c *wsClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.out)
	}
}

// Close disconnects every subscriber.
func (b *WSBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.out)
		c.conn.Close()
	}
}
