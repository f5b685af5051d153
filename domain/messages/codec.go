package messages

import (
	"encoding/binary"
	"errors"

	"matchbox/domain/types"
)

// Wire sizes of the framed records. The order path and the market data
// path both carry fixed-size records so framing is trivial: read exactly
// N bytes, decode in place.
const (
	clientRequestSize  = 1 + 4 + 4 + 8 + 1 + 8 + 8
	clientResponseSize = 1 + 4 + 4 + 8 + 8 + 1 + 8 + 8 + 8

	OrderRequestSize  = 8 + clientRequestSize
	OrderResponseSize = 8 + clientResponseSize
	DatagramSize      = 8 + 8 + 1 + 8 + 4 + 1 + 8 + 8 + 8
)

var ErrShortBuffer = errors.New("messages: short buffer")

func putRequest(b []byte, r *ClientRequest) {
	b[0] = byte(r.Kind)
	binary.LittleEndian.PutUint32(b[1:5], uint32(r.ClientID))
	binary.LittleEndian.PutUint32(b[5:9], uint32(r.TickerID))
	binary.LittleEndian.PutUint64(b[9:17], uint64(r.OrderID))
	b[17] = byte(r.Side)
	binary.LittleEndian.PutUint64(b[18:26], uint64(r.Price))
	binary.LittleEndian.PutUint64(b[26:34], uint64(r.Qty))
}

func getRequest(b []byte, r *ClientRequest) {
	r.Kind = RequestKind(b[0])
	r.ClientID = types.ClientID(binary.LittleEndian.Uint32(b[1:5]))
	r.TickerID = types.TickerID(binary.LittleEndian.Uint32(b[5:9]))
	r.OrderID = types.OrderID(binary.LittleEndian.Uint64(b[9:17]))
	r.Side = types.Side(b[17])
	r.Price = types.Price(binary.LittleEndian.Uint64(b[18:26]))
	r.Qty = types.Qty(binary.LittleEndian.Uint64(b[26:34]))
}

func putResponse(b []byte, r *ClientResponse) {
	b[0] = byte(r.Kind)
	binary.LittleEndian.PutUint32(b[1:5], uint32(r.ClientID))
	binary.LittleEndian.PutUint32(b[5:9], uint32(r.TickerID))
	binary.LittleEndian.PutUint64(b[9:17], uint64(r.ClientOrderID))
	binary.LittleEndian.PutUint64(b[17:25], uint64(r.MarketOrderID))
	b[25] = byte(r.Side)
	binary.LittleEndian.PutUint64(b[26:34], uint64(r.Price))
	binary.LittleEndian.PutUint64(b[34:42], uint64(r.ExecQty))
	binary.LittleEndian.PutUint64(b[42:50], uint64(r.LeavesQty))
}

func getResponse(b []byte, r *ClientResponse) {
	r.Kind = ResponseKind(b[0])
	r.ClientID = types.ClientID(binary.LittleEndian.Uint32(b[1:5]))
	r.TickerID = types.TickerID(binary.LittleEndian.Uint32(b[5:9]))
	r.ClientOrderID = types.OrderID(binary.LittleEndian.Uint64(b[9:17]))
	r.MarketOrderID = types.OrderID(binary.LittleEndian.Uint64(b[17:25]))
	r.Side = types.Side(b[25])
	r.Price = types.Price(binary.LittleEndian.Uint64(b[26:34]))
	r.ExecQty = types.Qty(binary.LittleEndian.Uint64(b[34:42]))
	r.LeavesQty = types.Qty(binary.LittleEndian.Uint64(b[42:50]))
}

// Put encodes the framed request into b, which must hold OrderRequestSize
// bytes.
func (m *OrderRequest) Put(b []byte) {
	_ = b[OrderRequestSize-1]
	binary.LittleEndian.PutUint64(b[0:8], m.GwSeq)
	putRequest(b[8:], &m.Request)
}

// Get decodes the framed request from b.
func (m *OrderRequest) Get(b []byte) error {
	if len(b) < OrderRequestSize {
		return ErrShortBuffer
	}
	m.GwSeq = binary.LittleEndian.Uint64(b[0:8])
	getRequest(b[8:], &m.Request)
	return nil
}

// Put encodes the framed response into b, which must hold
// OrderResponseSize bytes.
func (m *OrderResponse) Put(b []byte) {
	_ = b[OrderResponseSize-1]
	binary.LittleEndian.PutUint64(b[0:8], m.ClientSeq)
	putResponse(b[8:], &m.Response)
}

// Get decodes the framed response from b.
func (m *OrderResponse) Get(b []byte) error {
	if len(b) < OrderResponseSize {
		return ErrShortBuffer
	}
	m.ClientSeq = binary.LittleEndian.Uint64(b[0:8])
	getResponse(b[8:], &m.Response)
	return nil
}

// Put encodes the datagram into b, which must hold DatagramSize bytes.
func (d *Datagram) Put(b []byte) {
	_ = b[DatagramSize-1]
	binary.LittleEndian.PutUint64(b[0:8], uint64(d.Seq))
	binary.LittleEndian.PutUint64(b[8:16], uint64(d.SendNs))
	u := &d.Update
	b[16] = byte(u.Kind)
	binary.LittleEndian.PutUint64(b[17:25], uint64(u.OrderID))
	binary.LittleEndian.PutUint32(b[25:29], uint32(u.TickerID))
	b[29] = byte(u.Side)
	binary.LittleEndian.PutUint64(b[30:38], uint64(u.Price))
	binary.LittleEndian.PutUint64(b[38:46], uint64(u.Qty))
	binary.LittleEndian.PutUint64(b[46:54], uint64(u.Priority))
}

// Get decodes the datagram from b.
func (d *Datagram) Get(b []byte) error {
	if len(b) < DatagramSize {
		return ErrShortBuffer
	}
	d.Seq = types.SeqNum(binary.LittleEndian.Uint64(b[0:8]))
	d.SendNs = int64(binary.LittleEndian.Uint64(b[8:16]))
	u := &d.Update
	u.Kind = UpdateKind(b[16])
	u.OrderID = types.OrderID(binary.LittleEndian.Uint64(b[17:25]))
	u.TickerID = types.TickerID(binary.LittleEndian.Uint32(b[25:29]))
	u.Side = types.Side(b[29])
	u.Price = types.Price(binary.LittleEndian.Uint64(b[30:38]))
	u.Qty = types.Qty(binary.LittleEndian.Uint64(b[38:46]))
	u.Priority = types.Priority(binary.LittleEndian.Uint64(b[46:54]))
	return nil
}
