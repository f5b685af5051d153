// Package mdconsumer joins the exchange's multicast streams and hands the
// client a gap-free, in-order update stream. Normal operation reads only
// the incremental group. On a sequence gap it joins the snapshot group,
// queues incrementals, waits for one complete snapshot cycle, replays the
// snapshot plus the queued tail, and drops the snapshot group again.
package mdconsumer

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"matchbox/domain/messages"
	"matchbox/domain/types"
)

const outBuffer = 64 * 1024

// Sequenced is one update with the sequence number it was delivered
// under. Snapshot-derived updates carry the sequence the snapshot folded
// up to.
type Sequenced struct {
	Seq    types.SeqNum
	Update messages.MarketUpdate
}

// Config addresses the two groups. Interface may be empty for the
// default.
type Config struct {
	IncrementalAddr string
	SnapshotAddr    string
	Interface       string
}

// Consumer owns the sockets and the recovery state machine.
type Consumer struct {
	cfg   Config
	iface *net.Interface
	log   *slog.Logger

	incConn *net.UDPConn

	// snapConn is non-nil only while recovering. snapMu covers the
	// handoff between the run goroutine and Close.
	snapMu   sync.Mutex
	snapConn *net.UDPConn
	snapCh   chan messages.Datagram

	incCh chan messages.Datagram
	out   chan Sequenced

	nextExpSeq types.SeqNum
	recovering bool
	queuedInc  map[types.SeqNum]messages.MarketUpdate
	queuedSnap map[types.SeqNum]messages.MarketUpdate

	done chan struct{}
}

// New joins the incremental group and starts the consumer.
func New(cfg Config, log *slog.Logger) (*Consumer, error) {
	c := &Consumer{
		cfg:        cfg,
		log:        log.With("component", "mdconsumer"),
		incCh:      make(chan messages.Datagram, outBuffer),
		out:        make(chan Sequenced, outBuffer),
		nextExpSeq: 1,
		queuedInc:  make(map[types.SeqNum]messages.MarketUpdate),
		queuedSnap: make(map[types.SeqNum]messages.MarketUpdate),
		done:       make(chan struct{}),
	}
	if cfg.Interface != "" {
		iface, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("mdconsumer: interface %s: %w", cfg.Interface, err)
		}
		c.iface = iface
	}
	conn, err := c.join(cfg.IncrementalAddr)
	if err != nil {
		return nil, err
	}
	c.incConn = conn
	go c.read(conn, c.incCh)
	go c.run()
	return c, nil
}

// Updates delivers the recovered, in-order stream. Closed on Close.
func (c *Consumer) Updates() <-chan Sequenced { return c.out }

func (c *Consumer) join(addr string) (*net.UDPConn, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("mdconsumer: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenMulticastUDP("udp", c.iface, ua)
	if err != nil {
		return nil, fmt.Errorf("mdconsumer: join %s: %w", addr, err)
	}
	conn.SetReadBuffer(4 << 20)
	return conn, nil
}

// read decodes datagrams off one socket until it is closed.
func (c *Consumer) read(conn *net.UDPConn, ch chan<- messages.Datagram) {
	buf := make([]byte, messages.DatagramSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			close(ch)
			return
		}
		var d messages.Datagram
		if err := d.Get(buf[:n]); err != nil {
			continue
		}
		ch <- d
	}
}

func (c *Consumer) run() {
	defer close(c.done)
	defer close(c.out)
	for {
		select {
		case d, ok := <-c.incCh:
			if !ok {
				return
			}
			c.onIncremental(&d)
		case d, ok := <-c.snapCh:
			if !ok {
				c.snapCh = nil
				continue
			}
			c.onSnapshot(&d)
		}
	}
}

func (c *Consumer) onIncremental(d *messages.Datagram) {
	if c.recovering {
		c.queuedInc[d.Seq] = d.Update
		return
	}
	switch {
	case d.Seq == c.nextExpSeq:
		c.deliver(d.Seq, &d.Update)
		c.nextExpSeq++
	case d.Seq > c.nextExpSeq:
		c.startRecovery(d)
	}
	// Older sequences are replays already consumed; dropped.
}

func (c *Consumer) startRecovery(d *messages.Datagram) {
	c.log.Warn("sequence gap, entering snapshot recovery",
		"expected", c.nextExpSeq, "got", d.Seq)
	c.recovering = true
	clear(c.queuedInc)
	clear(c.queuedSnap)
	c.queuedInc[d.Seq] = d.Update

	conn, err := c.join(c.cfg.SnapshotAddr)
	if err != nil {
		// Stay in recovery; the next snapshot cycle is unreachable until
		// the join succeeds, so give up the stream.
		c.log.Error("snapshot join failed", "err", err)
		c.incConn.Close()
		return
	}
	c.snapMu.Lock()
	c.snapConn = conn
	c.snapMu.Unlock()
	c.snapCh = make(chan messages.Datagram, outBuffer)
	go c.read(conn, c.snapCh)
}

func (c *Consumer) onSnapshot(d *messages.Datagram) {
	if !c.recovering {
		return
	}
	if d.Update.Kind == messages.UpdateSnapshotStart {
		// A fresh cycle invalidates any partial one.
		clear(c.queuedSnap)
	}
	c.queuedSnap[d.Seq] = d.Update
	if d.Update.Kind == messages.UpdateSnapshotEnd {
		c.trySync()
	}
}

// trySync checks whether the queued snapshot cycle plus the queued
// incrementals reconstruct a gap-free stream, and if so replays them and
// leaves recovery.
func (c *Consumer) trySync() {
	start, ok := c.queuedSnap[0]
	if !ok || start.Kind != messages.UpdateSnapshotStart {
		return
	}
	lastInc := types.SeqNum(start.OrderID)

	// The cycle must be contiguous from 0 through its end record, and
	// the end must belong to the same cycle.
	var cycle []messages.MarketUpdate
	for s := types.SeqNum(0); ; s++ {
		u, ok := c.queuedSnap[s]
		if !ok {
			return
		}
		if u.Kind == messages.UpdateSnapshotEnd {
			if types.SeqNum(u.OrderID) != lastInc {
				clear(c.queuedSnap)
				return
			}
			break
		}
		cycle = append(cycle, u)
	}

	// Queued incrementals must continue the snapshot without a hole and
	// without anything stranded past one.
	next := lastInc + 1
	for {
		if _, ok := c.queuedInc[next]; !ok {
			break
		}
		next++
	}
	for s := range c.queuedInc {
		if s >= next {
			return
		}
	}

	for i := range cycle {
		u := &cycle[i]
		if u.Kind == messages.UpdateSnapshotStart || u.Kind == messages.UpdateSnapshotEnd {
			continue
		}
		c.deliver(lastInc, u)
	}
	for s := lastInc + 1; s < next; s++ {
		u := c.queuedInc[s]
		c.deliver(s, &u)
	}
	replayed := int(next - lastInc - 1)
	c.log.Info("snapshot recovery complete",
		"snapshot_seq", lastInc, "replayed", replayed, "next", next)

	c.recovering = false
	c.nextExpSeq = next
	clear(c.queuedInc)
	clear(c.queuedSnap)
	c.snapMu.Lock()
	c.snapConn.Close()
	c.snapConn = nil
	c.snapMu.Unlock()
}

func (c *Consumer) deliver(seq types.SeqNum, u *messages.MarketUpdate) {
	c.out <- Sequenced{Seq: seq, Update: *u}
}

// Close leaves both groups and waits for the stream to drain.
func (c *Consumer) Close() {
	c.incConn.Close()
	c.snapMu.Lock()
	if c.snapConn != nil {
		c.snapConn.Close()
	}
	c.snapMu.Unlock()
	<-c.done
}
