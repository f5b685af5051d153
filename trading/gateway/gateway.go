// Package gateway is the trading client's order entry connection: it
// frames requests with the per-connection gateway sequence the exchange
// enforces and verifies the per-client sequence on everything coming
// back. A sequence violation from the exchange is unrecoverable for the
// session and surfaces as a closed response channel.
package gateway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"matchbox/domain/messages"
	"matchbox/domain/types"
)

const responseBuffer = 16 * 1024

// Gateway is one client's order-entry session.
type Gateway struct {
	conn     net.Conn
	clientID types.ClientID
	log      *slog.Logger

	// nextGwSeq stamps outbound requests; Send is called from a single
	// goroutine (the trade engine).
	nextGwSeq uint64

	responses chan messages.ClientResponse
	closed    atomic.Bool

	wbuf [messages.OrderRequestSize]byte
}

// Dial connects to the exchange's order server for one client.
func Dial(addr string, clientID types.ClientID, log *slog.Logger) (*Gateway, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial %s: %w", addr, err)
	}
	g := &Gateway{
		conn:      conn,
		clientID:  clientID,
		log:       log.With("component", "gateway", "client", clientID),
		nextGwSeq: 1,
		responses: make(chan messages.ClientResponse, responseBuffer),
	}
	go g.reader()
	g.log.Info("order session connected", "remote", conn.RemoteAddr().String())
	return g, nil
}

// Send frames one request with the next gateway sequence and writes it.
// The request's ClientID is forced to the session's.
func (g *Gateway) Send(r *messages.ClientRequest) error {
	r.ClientID = g.clientID
	m := messages.OrderRequest{GwSeq: g.nextGwSeq, Request: *r}
	m.Put(g.wbuf[:])
	if _, err := g.conn.Write(g.wbuf[:]); err != nil {
		return fmt.Errorf("gateway: send: %w", err)
	}
	g.nextGwSeq++
	return nil
}

// Responses delivers the exchange's responses in order. The channel is
// closed when the session dies.
func (g *Gateway) Responses() <-chan messages.ClientResponse {
	return g.responses
}

func (g *Gateway) reader() {
	defer close(g.responses)
	buf := make([]byte, messages.OrderResponseSize)
	var m messages.OrderResponse
	var nextSeq uint64 = 1
	for {
		if _, err := io.ReadFull(g.conn, buf); err != nil {
			if !g.closed.Load() && !errors.Is(err, io.EOF) {
				g.log.Warn("session read failed", "err", err)
			}
			return
		}
		if err := m.Get(buf); err != nil {
			g.log.Error("undecodable response, closing session", "err", err)
			g.conn.Close()
			return
		}
		if m.ClientSeq != nextSeq {
			g.log.Error("response sequence violation, closing session",
				"expected", nextSeq, "got", m.ClientSeq)
			g.conn.Close()
			return
		}
		nextSeq++
		g.responses <- m.Response
	}
}

// Close tears the session down; the reader drains out.
func (g *Gateway) Close() error {
	g.closed.Store(true)
	return g.conn.Close()
}
