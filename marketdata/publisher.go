// Package marketdata publishes the engine's update stream: one sequenced
// incremental datagram per book delta on the incremental multicast group,
// and a periodic full-book snapshot synthesized from shadow books on the
// snapshot group. Optional taps fan the sequenced stream out to Kafka,
// websocket and tape consumers without ever blocking the UDP path.
package marketdata

import (
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync/atomic"
	"time"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/infra/memory"
	"matchbox/infra/metrics"
)

// A Tap receives every sequenced update after it has been sent on the
// incremental stream. Taps must not block: anything slow buffers or drops
// on its own side.
type Tap interface {
	Publish(seq types.SeqNum, u *messages.MarketUpdate)
}

// Config addresses the two multicast streams and the snapshot cadence.
type Config struct {
	IncrementalAddr string
	SnapshotAddr    string
	SnapshotEvery   time.Duration
}

const sendRetries = 3

// Publisher is the sole consumer of the market update ring.
type Publisher struct {
	updates *memory.Ring[messages.MarketUpdate]
	shadow  *Shadow
	taps    []Tap

	incConn  *net.UDPConn
	snapConn *net.UDPConn
	cadence  time.Duration

	seq types.SeqNum

	log  *slog.Logger
	run  atomic.Bool
	done chan struct{}

	buf [messages.DatagramSize]byte
}

// New dials both multicast groups and returns a publisher ready to start.
func New(cfg Config, updates *memory.Ring[messages.MarketUpdate], log *slog.Logger, taps ...Tap) (*Publisher, error) {
	inc, err := dialUDP(cfg.IncrementalAddr)
	if err != nil {
		return nil, fmt.Errorf("marketdata: incremental stream: %w", err)
	}
	snap, err := dialUDP(cfg.SnapshotAddr)
	if err != nil {
		inc.Close()
		return nil, fmt.Errorf("marketdata: snapshot stream: %w", err)
	}
	return &Publisher{
		updates:  updates,
		shadow:   NewShadow(),
		taps:     taps,
		incConn:  inc,
		snapConn: snap,
		cadence:  cfg.SnapshotEvery,
		log:      log.With("component", "marketdata"),
		done:     make(chan struct{}),
	}, nil
}

func dialUDP(addr string) (*net.UDPConn, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.DialUDP("udp", nil, ua)
}

// Shadow exposes the publisher's shadow books for the ops surface.
func (p *Publisher) Shadow() *Shadow { return p.shadow }

// Start launches the publishing goroutine.
func (p *Publisher) Start() {
	p.run.Store(true)
	go p.loop()
}

// Stop drains the update ring, closes both sockets and returns.
func (p *Publisher) Stop() {
	p.run.Store(false)
	<-p.done
	p.incConn.Close()
	p.snapConn.Close()
}

func (p *Publisher) loop() {
	defer close(p.done)
	p.log.Info("market data publisher running",
		"incremental", p.incConn.RemoteAddr().String(),
		"snapshot", p.snapConn.RemoteAddr().String(),
		"cadence", p.cadence)
	lastSnap := time.Now()
	for {
		u, ok := p.updates.PeekRead()
		if ok {
			p.publish(u)
			p.updates.ReleaseRead()
		} else {
			if !p.run.Load() {
				p.log.Info("market data publisher stopped", "last_seq", p.seq)
				return
			}
			runtime.Gosched()
		}
		if p.cadence > 0 && time.Since(lastSnap) >= p.cadence {
			lastSnap = time.Now()
			p.publishSnapshot()
		}
	}
}

// publish stamps the next global sequence number on one update, sends it
// incrementally, folds it into the shadow books and fans it to the taps.
func (p *Publisher) publish(u *messages.MarketUpdate) {
	p.seq++
	d := messages.Datagram{Seq: p.seq, SendNs: time.Now().UnixNano(), Update: *u}
	p.send(p.incConn, &d)
	metrics.UpdatesPublished.Inc()
	if u.Kind == messages.UpdateTrade {
		metrics.TradesPublished.Inc()
	}
	p.shadow.Apply(p.seq, u)
	for _, t := range p.taps {
		t.Publish(p.seq, u)
	}
}

// publishSnapshot emits one full cycle on the snapshot stream: a start
// record carrying the last incremental sequence folded into the shadow,
// then per ticker a CLEAR followed by one ADD per resting order, then the
// end record. Snapshot datagrams carry their own sequence starting at 0.
func (p *Publisher) publishSnapshot() {
	lastInc := p.shadow.LastSeq()
	var snapSeq types.SeqNum

	emit := func(u *messages.MarketUpdate) {
		d := messages.Datagram{Seq: snapSeq, SendNs: time.Now().UnixNano(), Update: *u}
		p.send(p.snapConn, &d)
		snapSeq++
	}

	emit(&messages.MarketUpdate{
		Kind:    messages.UpdateSnapshotStart,
		OrderID: types.OrderID(lastInc),
	})
	orders := 0
	for t := 0; t < types.MaxTickers; t++ {
		ticker := types.TickerID(t)
		emit(&messages.MarketUpdate{
			Kind:     messages.UpdateClear,
			OrderID:  types.InvalidOrderID,
			TickerID: ticker,
		})
		for _, o := range p.shadow.Orders(ticker) {
			emit(&o)
			orders++
		}
	}
	emit(&messages.MarketUpdate{
		Kind:    messages.UpdateSnapshotEnd,
		OrderID: types.OrderID(lastInc),
	})
	metrics.SnapshotCycles.Inc()
	p.log.Info("snapshot published", "last_inc_seq", lastInc, "orders", orders, "datagrams", snapSeq)
}

// send encodes and writes one datagram, retrying transient errors. A
// datagram abandoned after the retry budget shows up as a gap downstream
// and is repaired by the consumer's snapshot recovery.
func (p *Publisher) send(conn *net.UDPConn, d *messages.Datagram) {
	d.Put(p.buf[:])
	for attempt := 0; ; attempt++ {
		_, err := conn.Write(p.buf[:])
		if err == nil {
			metrics.PublishDelay.Observe(float64(time.Now().UnixNano()-d.SendNs) / 1e9)
			return
		}
		metrics.DatagramSendErrors.Inc()
		if attempt >= sendRetries {
			p.log.Error("datagram dropped", "seq", d.Seq, "err", err)
			return
		}
		runtime.Gosched()
	}
}
