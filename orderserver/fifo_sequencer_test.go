package orderserver

import (
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"matchbox/domain/messages"
	"matchbox/domain/types"
	"matchbox/infra/memory"
)

func drainRing(t *testing.T, ring *memory.Ring[messages.ClientRequest], n int) []messages.ClientRequest {
	t.Helper()
	out := make([]messages.ClientRequest, 0, n)
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < n {
		r, ok := ring.PeekRead()
		if !ok {
			if time.Now().After(deadline) {
				t.Fatalf("drained %d of %d requests before timeout", len(out), n)
			}
			runtime.Gosched()
			continue
		}
		out = append(out, *r)
		ring.ReleaseRead()
	}
	return out
}

func TestSequencerRestoresArrivalOrder(t *testing.T) {
	ring := memory.NewRing[messages.ClientRequest](1024)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewFIFOSequencer(ring, log)

	// Push out of arrival order, as two racing connection readers would.
	s.Push(300, &messages.ClientRequest{OrderID: 3})
	s.Push(100, &messages.ClientRequest{OrderID: 1})
	s.Push(200, &messages.ClientRequest{OrderID: 2})

	s.Start()
	got := drainRing(t, ring, 3)
	s.Stop()

	require.Equal(t, types.OrderID(1), got[0].OrderID)
	require.Equal(t, types.OrderID(2), got[1].OrderID)
	require.Equal(t, types.OrderID(3), got[2].OrderID)
}

func TestSequencerStableOnEqualStamps(t *testing.T) {
	ring := memory.NewRing[messages.ClientRequest](1024)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewFIFOSequencer(ring, log)

	for i := 0; i < 10; i++ {
		s.Push(42, &messages.ClientRequest{OrderID: types.OrderID(i)})
	}
	s.Start()
	got := drainRing(t, ring, 10)
	s.Stop()

	for i, r := range got {
		require.Equal(t, types.OrderID(i), r.OrderID)
	}
}

func TestSequencerStopFlushesPending(t *testing.T) {
	ring := memory.NewRing[messages.ClientRequest](1024)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewFIFOSequencer(ring, log)
	s.Start()

	for i := 0; i < 100; i++ {
		s.Push(int64(i), &messages.ClientRequest{OrderID: types.OrderID(i)})
	}
	s.Stop()

	n := 0
	for {
		_, ok := ring.PeekRead()
		if !ok {
			break
		}
		ring.ReleaseRead()
		n++
	}
	require.Equal(t, 100, n)
}
