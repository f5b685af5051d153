// Package orderserver is the exchange's order entry edge: a TCP listener
// with one reader goroutine per connection, a FIFO sequencer that restores
// cross-connection arrival order into the engine's request ring, and a
// response pump that routes engine responses back to the connection
// registered for each client.
package orderserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/infra/memory"
	"matchbox/infra/metrics"
)

const responseWriteTimeout = 5 * time.Second

// Config carries the listener address.
type Config struct {
	ListenAddr string
}

// session is one live order-entry connection bound to a client.
type session struct {
	id       uuid.UUID
	conn     net.Conn
	clientID types.ClientID

	// nextGwSeq is the gateway sequence expected on the next inbound
	// request; it starts at 1 and must advance by exactly one.
	nextGwSeq uint64

	// nextOutSeq numbers this client's responses, only ever touched by
	// the response pump.
	nextOutSeq uint64
}

// Server accepts order-entry connections and shuttles records between the
// sockets and the engine rings.
type Server struct {
	cfg       Config
	seqr      *FIFOSequencer
	responses *memory.Ring[messages.ClientResponse]
	log       *slog.Logger

	ln net.Listener

	mu       sync.Mutex
	byClient map[types.ClientID]*session

	wg       sync.WaitGroup
	run      atomic.Bool
	pumpDone chan struct{}
}

// New wires a server to the engine's rings.
func New(cfg Config, requests *memory.Ring[messages.ClientRequest], responses *memory.Ring[messages.ClientResponse], log *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		seqr:      NewFIFOSequencer(requests, log),
		responses: responses,
		log:       log.With("component", "orderserver"),
		byClient:  make(map[types.ClientID]*session),
		pumpDone:  make(chan struct{}),
	}
}

// Start binds the listener and launches the accept loop, the sequencer and
// the response pump.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("orderserver: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.ln = ln
	s.run.Store(true)
	s.seqr.Start()
	go s.pump()
	go s.accept()
	s.log.Info("order server listening", "addr", ln.Addr().String())
	return nil
}

// Stop closes the listener and every connection, drains the sequencer and
// stops the response pump.
func (s *Server) Stop() {
	s.run.Store(false)
	s.ln.Close()
	s.mu.Lock()
	for _, sess := range s.byClient {
		sess.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.seqr.Stop()
	<-s.pumpDone
	s.log.Info("order server stopped")
}

func (s *Server) accept() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.run.Load() {
				s.log.Error("accept failed", "err", err)
				continue
			}
			return
		}
		s.wg.Add(1)
		go s.serve(conn)
	}
}

// serve owns one connection's read side: fixed-size records, strict
// gateway sequencing, one client per connection bound on first request.
func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	sess := &session{
		id:        uuid.New(),
		conn:      conn,
		clientID:  types.InvalidClientID,
		nextGwSeq: 1,
	}
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()
	log := s.log.With("session", sess.id.String(), "remote", conn.RemoteAddr().String())
	log.Info("connection accepted")
	defer func() {
		s.deregister(sess)
		conn.Close()
		log.Info("connection closed", "client", sess.clientID)
	}()

	buf := make([]byte, messages.OrderRequestSize)
	var req messages.OrderRequest
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if s.run.Load() && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn("read failed", "err", err)
			}
			return
		}
		recvNs := time.Now().UnixNano()
		if err := req.Get(buf); err != nil {
			metrics.RequestsRejected.Inc()
			log.Warn("undecodable request, dropping connection", "err", err)
			return
		}
		if req.GwSeq != sess.nextGwSeq {
			metrics.RequestsRejected.Inc()
			log.Warn("gateway sequence violation, dropping connection",
				"expected", sess.nextGwSeq, "got", req.GwSeq)
			return
		}
		sess.nextGwSeq++
		if sess.clientID == types.InvalidClientID {
			if !s.register(sess, req.Request.ClientID) {
				log.Warn("client already connected, dropping connection", "client", req.Request.ClientID)
				return
			}
			log.Info("client bound", "client", sess.clientID)
		} else if req.Request.ClientID != sess.clientID {
			metrics.RequestsRejected.Inc()
			log.Warn("client id mismatch, dropping connection",
				"bound", sess.clientID, "got", req.Request.ClientID)
			return
		}
		metrics.RequestsTotal.Inc()
		s.seqr.Push(recvNs, &req.Request)
	}
}

func (s *Server) register(sess *session, id types.ClientID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byClient[id]; taken {
		return false
	}
	sess.clientID = id
	s.byClient[id] = sess
	return true
}

func (s *Server) deregister(sess *session) {
	if sess.clientID == types.InvalidClientID {
		return
	}
	s.mu.Lock()
	if s.byClient[sess.clientID] == sess {
		delete(s.byClient, sess.clientID)
	}
	s.mu.Unlock()
}

// pump is the sole consumer of the response ring. Responses for clients
// with no live connection are counted and dropped.
func (s *Server) pump() {
	defer close(s.pumpDone)
	buf := make([]byte, messages.OrderResponseSize)
	for {
		r, ok := s.responses.PeekRead()
		if !ok {
			if !s.run.Load() {
				return
			}
			runtime.Gosched()
			continue
		}
		s.deliver(r, buf)
		s.responses.ReleaseRead()
	}
}

func (s *Server) deliver(r *messages.ClientResponse, buf []byte) {
	s.mu.Lock()
	sess := s.byClient[r.ClientID]
	s.mu.Unlock()
	if sess == nil {
		metrics.ResponsesDropped.Inc()
		return
	}
	sess.nextOutSeq++
	out := messages.OrderResponse{ClientSeq: sess.nextOutSeq, Response: *r}
	out.Put(buf)
	sess.conn.SetWriteDeadline(time.Now().Add(responseWriteTimeout))
	if _, err := sess.conn.Write(buf); err != nil {
		s.log.Warn("response write failed, dropping connection",
			"client", r.ClientID, "err", err)
		sess.conn.Close()
	}
}
