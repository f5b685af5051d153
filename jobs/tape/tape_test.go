package tape

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"matchbox/domain/messages"
	"matchbox/domain/types"
)

func openTestTape(t *testing.T) *Tape {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tp, err := Open(t.TempDir(), nil, "", log)
	require.NoError(t, err)
	return tp
}

func trade(ticker types.TickerID, px types.Price, qty types.Qty) *messages.MarketUpdate {
	return &messages.MarketUpdate{
		Kind: messages.UpdateTrade, OrderID: types.InvalidOrderID,
		TickerID: ticker, Side: types.Buy, Price: px, Qty: qty,
		Priority: types.InvalidPriority,
	}
}

func TestTapeJournalsTrades(t *testing.T) {
	tp := openTestTape(t)
	defer tp.Close()

	tp.Publish(10, trade(1, 100, 5))
	tp.Publish(12, trade(2, 101, 3))
	waitForTrades(t, tp, 2)

	got, err := tp.Trades(0, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(10), got[0].Seq)
	require.Equal(t, uint32(1), got[0].TickerID)
	require.Equal(t, int64(100), got[0].Price)
	require.Equal(t, int64(5), got[0].Qty)
	require.Equal(t, uint64(12), got[1].Seq)
}

func TestTapeIgnoresBookDeltas(t *testing.T) {
	tp := openTestTape(t)
	defer tp.Close()

	tp.Publish(1, &messages.MarketUpdate{Kind: messages.UpdateAdd, OrderID: 1, TickerID: 1})
	tp.Publish(2, trade(1, 100, 5))
	waitForTrades(t, tp, 1)

	got, err := tp.Trades(0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, uint64(2), got[0].Seq)
}

func TestTapeRangeRead(t *testing.T) {
	tp := openTestTape(t)
	defer tp.Close()

	for seq := types.SeqNum(1); seq <= 5; seq++ {
		tp.Publish(seq, trade(0, types.Price(seq), 1))
	}
	waitForTrades(t, tp, 5)

	got, err := tp.Trades(2, 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(2), got[0].Seq)
	require.Equal(t, uint64(3), got[1].Seq)
}

// waitForTrades blocks until the worker has journaled n trades.
func waitForTrades(t *testing.T, tp *Tape, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := tp.Trades(0, 1<<62)
		require.NoError(t, err)
		if len(got) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("worker never journaled %d trades", n)
}
