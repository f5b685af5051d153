package adminserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"matchbox/api/adminpb"
	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/marketdata"
)

type fixedStats struct{ open [types.MaxTickers]int }

func (fixedStats) StartUnix() int64                   { return 1754000000 }
func (s fixedStats) OpenOrders(t types.TickerID) int { return s.open[t] }

func seededShadow() *marketdata.Shadow {
	s := marketdata.NewShadow()
	s.Apply(1, &messages.MarketUpdate{Kind: messages.UpdateAdd, OrderID: 1, TickerID: 1, Side: types.Buy, Price: 100, Qty: 5, Priority: 1})
	s.Apply(2, &messages.MarketUpdate{Kind: messages.UpdateAdd, OrderID: 2, TickerID: 1, Side: types.Buy, Price: 100, Qty: 3, Priority: 2})
	s.Apply(3, &messages.MarketUpdate{Kind: messages.UpdateAdd, OrderID: 3, TickerID: 1, Side: types.Sell, Price: 101, Qty: 2, Priority: 1})
	return s
}

func TestGetDepth(t *testing.T) {
	svc := NewService(seededShadow(), fixedStats{})
	resp, err := svc.GetDepth(context.Background(), &adminpb.DepthRequest{TickerID: 1, Levels: 10})
	require.NoError(t, err)
	require.Equal(t, uint64(3), resp.LastSeq)
	require.Equal(t, []adminpb.DepthLevel{{Price: 100, Qty: 8, Orders: 2}}, resp.Bids)
	require.Equal(t, []adminpb.DepthLevel{{Price: 101, Qty: 2, Orders: 1}}, resp.Asks)
}

func TestGetDepthRejectsBadTicker(t *testing.T) {
	svc := NewService(seededShadow(), fixedStats{})
	_, err := svc.GetDepth(context.Background(), &adminpb.DepthRequest{TickerID: types.MaxTickers})
	require.Error(t, err)
}

func TestGetStats(t *testing.T) {
	stats := fixedStats{}
	stats.open[1] = 3
	svc := NewService(seededShadow(), stats)
	resp, err := svc.GetStats(context.Background(), &adminpb.StatsRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1754000000), resp.StartUnix)
	require.Equal(t, uint64(3), resp.LastSeq)
	require.Len(t, resp.OpenOrders, types.MaxTickers)
	require.Equal(t, uint64(3), resp.OpenOrders[1])
}

func TestCodecRoundTrip(t *testing.T) {
	in := &adminpb.DepthRequest{TickerID: 2, Levels: 5}
	b, err := Codec{}.Marshal(in)
	require.NoError(t, err)
	out := &adminpb.DepthRequest{}
	require.NoError(t, Codec{}.Unmarshal(b, out))
	require.Equal(t, in, out)

	_, err = Codec{}.Marshal(struct{}{})
	require.Error(t, err, "non-adminpb payloads are refused")
}
