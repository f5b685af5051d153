// Package adminpb defines the protobuf wire messages of the admin service
// and the trade tape. The messages are encoded directly with
// encoding/protowire against a fixed field layout, so the schema lives in
// this file rather than a generated one. Field numbers are frozen; only
// additions are allowed.
package adminpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is implemented by every wire message in this package.
type Message interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

var errTruncated = fmt.Errorf("adminpb: truncated message")

// TradeEvent is one trade on the tape.
//
//	1: seq       uint64
//	2: send_ns   int64 (zigzag)
//	3: ticker_id uint32
//	4: side      int32 (zigzag)
//	5: price     int64 (zigzag)
//	6: qty       int64 (zigzag)
type TradeEvent struct {
	Seq      uint64
	SendNs   int64
	TickerID uint32
	Side     int32
	Price    int64
	Qty      int64
}

func (m *TradeEvent) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 48)
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Seq)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.SendNs))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.TickerID))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(m.Side)))
	b = protowire.AppendTag(b, 5, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Price))
	b = protowire.AppendTag(b, 6, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Qty))
	return b, nil
}

func (m *TradeEvent) UnmarshalBinary(data []byte) error {
	*m = TradeEvent{}
	return walk(data, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			m.Seq = v
		case 2:
			m.SendNs = protowire.DecodeZigZag(v)
		case 3:
			m.TickerID = uint32(v)
		case 4:
			m.Side = int32(protowire.DecodeZigZag(v))
		case 5:
			m.Price = protowire.DecodeZigZag(v)
		case 6:
			m.Qty = protowire.DecodeZigZag(v)
		}
	})
}

// DepthRequest asks for one ticker's aggregated book.
//
//	1: ticker_id uint32
//	2: levels    uint32
type DepthRequest struct {
	TickerID uint32
	Levels   uint32
}

func (m *DepthRequest) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 12)
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.TickerID))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Levels))
	return b, nil
}

func (m *DepthRequest) UnmarshalBinary(data []byte) error {
	*m = DepthRequest{}
	return walk(data, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			m.TickerID = uint32(v)
		case 2:
			m.Levels = uint32(v)
		}
	})
}

// DepthLevel is one aggregated price level.
//
//	1: price  int64 (zigzag)
//	2: qty    int64 (zigzag)
//	3: orders uint32
type DepthLevel struct {
	Price  int64
	Qty    int64
	Orders uint32
}

func (m *DepthLevel) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 24)
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Price))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Qty))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Orders))
	return b, nil
}

func (m *DepthLevel) UnmarshalBinary(data []byte) error {
	*m = DepthLevel{}
	return walk(data, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			m.Price = protowire.DecodeZigZag(v)
		case 2:
			m.Qty = protowire.DecodeZigZag(v)
		case 3:
			m.Orders = uint32(v)
		}
	})
}

// DepthResponse carries the aggregated two-sided book.
//
//	1: ticker_id uint32
//	2: last_seq  uint64
//	3: bids      repeated DepthLevel
//	4: asks      repeated DepthLevel
type DepthResponse struct {
	TickerID uint32
	LastSeq  uint64
	Bids     []DepthLevel
	Asks     []DepthLevel
}

func (m *DepthResponse) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 64+24*(len(m.Bids)+len(m.Asks)))
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.TickerID))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, m.LastSeq)
	for i := range m.Bids {
		lv, err := m.Bids[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, lv)
	}
	for i := range m.Asks {
		lv, err := m.Asks[i].MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, lv)
	}
	return b, nil
}

func (m *DepthResponse) UnmarshalBinary(data []byte) error {
	*m = DepthResponse{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errTruncated
		}
		data = data[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return errTruncated
			}
			data = data[n:]
			switch num {
			case 1:
				m.TickerID = uint32(v)
			case 2:
				m.LastSeq = v
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return errTruncated
			}
			data = data[n:]
			var lv DepthLevel
			if err := lv.UnmarshalBinary(v); err != nil {
				return err
			}
			switch num {
			case 3:
				m.Bids = append(m.Bids, lv)
			case 4:
				m.Asks = append(m.Asks, lv)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return errTruncated
			}
			data = data[n:]
		}
	}
	return nil
}

// StatsRequest is empty.
type StatsRequest struct{}

func (*StatsRequest) MarshalBinary() ([]byte, error)   { return nil, nil }
func (*StatsRequest) UnmarshalBinary(data []byte) error { return walk(data, func(protowire.Number, uint64) {}) }

// StatsResponse summarizes the running exchange.
//
//	1: start_unix  int64 (zigzag)
//	2: last_seq    uint64
//	3: open_orders repeated uint64, one per ticker
type StatsResponse struct {
	StartUnix  int64
	LastSeq    uint64
	OpenOrders []uint64
}

func (m *StatsResponse) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 32+10*len(m.OpenOrders))
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.StartUnix))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, m.LastSeq)
	for _, n := range m.OpenOrders {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, n)
	}
	return b, nil
}

func (m *StatsResponse) UnmarshalBinary(data []byte) error {
	*m = StatsResponse{}
	return walk(data, func(num protowire.Number, v uint64) {
		switch num {
		case 1:
			m.StartUnix = protowire.DecodeZigZag(v)
		case 2:
			m.LastSeq = v
		case 3:
			m.OpenOrders = append(m.OpenOrders, v)
		}
	})
}

// walk iterates a message of varint-only fields, skipping anything else.
func walk(data []byte, field func(num protowire.Number, v uint64)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errTruncated
		}
		data = data[n:]
		if typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return errTruncated
			}
			data = data[n:]
			field(num, v)
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return errTruncated
		}
		data = data[n:]
	}
	return nil
}
