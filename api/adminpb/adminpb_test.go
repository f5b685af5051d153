package adminpb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTradeEventRoundTrip(t *testing.T) {
	in := TradeEvent{
		Seq:      12345,
		SendNs:   1700000000123456789,
		TickerID: 3,
		Side:     -1,
		Price:    101,
		Qty:      25,
	}
	b, err := in.MarshalBinary()
	require.NoError(t, err)
	var out TradeEvent
	require.NoError(t, out.UnmarshalBinary(b))
	require.Equal(t, in, out)
}

func TestTradeEventNegativeValues(t *testing.T) {
	in := TradeEvent{SendNs: -1, Side: -1, Price: -42, Qty: -7}
	b, err := in.MarshalBinary()
	require.NoError(t, err)
	var out TradeEvent
	require.NoError(t, out.UnmarshalBinary(b))
	require.Equal(t, in, out)
}

func TestDepthResponseRoundTrip(t *testing.T) {
	in := DepthResponse{
		TickerID: 1,
		LastSeq:  900,
		Bids: []DepthLevel{
			{Price: 100, Qty: 8, Orders: 2},
			{Price: 99, Qty: 7, Orders: 1},
		},
		Asks: []DepthLevel{
			{Price: 101, Qty: 2, Orders: 1},
		},
	}
	b, err := in.MarshalBinary()
	require.NoError(t, err)
	var out DepthResponse
	require.NoError(t, out.UnmarshalBinary(b))
	require.Equal(t, in, out)
}

func TestStatsResponseRoundTrip(t *testing.T) {
	in := StatsResponse{
		StartUnix:  1754000000,
		LastSeq:    77,
		OpenOrders: []uint64{0, 3, 0, 12},
	}
	b, err := in.MarshalBinary()
	require.NoError(t, err)
	var out StatsResponse
	require.NoError(t, out.UnmarshalBinary(b))
	require.Equal(t, in, out)
}

func TestUnmarshalResetsPriorState(t *testing.T) {
	var out DepthResponse
	first := DepthResponse{TickerID: 1, Bids: []DepthLevel{{Price: 1, Qty: 1, Orders: 1}}}
	b, err := first.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, out.UnmarshalBinary(b))

	second := DepthResponse{TickerID: 2}
	b, err = second.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, out.UnmarshalBinary(b))
	require.Empty(t, out.Bids, "a reused message must not keep stale levels")
}

func TestUnmarshalTruncated(t *testing.T) {
	in := TradeEvent{Seq: 1 << 40}
	b, err := in.MarshalBinary()
	require.NoError(t, err)
	var out TradeEvent
	require.Error(t, out.UnmarshalBinary(b[:len(b)-1]))
}
