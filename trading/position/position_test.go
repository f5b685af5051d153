package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"matchbox/domain/messages"
	"matchbox/domain/types"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestExtendBlendsVWAP(t *testing.T) {
	k := NewKeeper()
	k.OnFill(0, types.Buy, 100, 10)
	k.OnFill(0, types.Buy, 110, 10)

	p := k.Get(0)
	require.Equal(t, int64(20), p.Qty)
	require.True(t, p.OpenVWAP.Equal(dec(105)), "VWAP = %s", p.OpenVWAP)
	require.True(t, p.Realized.IsZero())
}

func TestReduceRealizes(t *testing.T) {
	k := NewKeeper()
	k.OnFill(0, types.Buy, 100, 10)
	k.OnFill(0, types.Sell, 120, 4)

	p := k.Get(0)
	require.Equal(t, int64(6), p.Qty)
	require.True(t, p.OpenVWAP.Equal(dec(100)), "entry VWAP must not move on a reduction")
	require.True(t, p.Realized.Equal(dec(80)), "Realized = %s", p.Realized)
}

func TestFlatResetsVWAP(t *testing.T) {
	k := NewKeeper()
	k.OnFill(0, types.Buy, 100, 10)
	k.OnFill(0, types.Sell, 100, 10)

	p := k.Get(0)
	require.Equal(t, int64(0), p.Qty)
	require.True(t, p.OpenVWAP.IsZero())
	require.True(t, p.Realized.IsZero())
}

func TestFlipThroughFlat(t *testing.T) {
	k := NewKeeper()
	k.OnFill(0, types.Buy, 100, 10)
	k.OnFill(0, types.Sell, 90, 15)

	p := k.Get(0)
	require.Equal(t, int64(-5), p.Qty)
	require.True(t, p.Realized.Equal(dec(-100)), "Realized = %s", p.Realized)
	require.True(t, p.OpenVWAP.Equal(dec(90)), "remainder opens at the fill price")
}

func TestShortSideRealizes(t *testing.T) {
	k := NewKeeper()
	k.OnFill(0, types.Sell, 100, 10)
	k.OnFill(0, types.Buy, 90, 4)

	p := k.Get(0)
	require.Equal(t, int64(-6), p.Qty)
	require.True(t, p.Realized.Equal(dec(40)), "Realized = %s", p.Realized)
}

func TestUnrealizedMarksAgainstLastTrade(t *testing.T) {
	k := NewKeeper()
	k.OnFill(1, types.Buy, 100, 10)
	require.True(t, k.Unrealized(1).IsZero(), "own fill marks at entry")

	k.OnTrade(1, &messages.MarketUpdate{Kind: messages.UpdateTrade, TickerID: 1, Price: 105})
	require.True(t, k.Unrealized(1).Equal(dec(50)))

	// Non-trade updates never move the mark.
	k.OnTrade(1, &messages.MarketUpdate{Kind: messages.UpdateAdd, TickerID: 1, Price: 999})
	require.True(t, k.Unrealized(1).Equal(dec(50)))
}

func TestTotalSumsAcrossInstruments(t *testing.T) {
	k := NewKeeper()
	k.OnFill(0, types.Buy, 100, 10)
	k.OnFill(0, types.Sell, 110, 10) // realized +100
	k.OnFill(1, types.Buy, 50, 2)
	k.OnTrade(1, &messages.MarketUpdate{Kind: messages.UpdateTrade, TickerID: 1, Price: 40}) // unrealized -20

	require.True(t, k.Total().Equal(dec(80)), "Total = %s", k.Total())
}
