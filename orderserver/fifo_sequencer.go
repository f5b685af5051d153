package orderserver

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"matchbox/domain/messages"
	"matchbox/infra/memory"
)

// maxPendingRequests bounds one flush batch. Once the batch is full the
// connection readers spin in Push, yielding between attempts, which
// backpressures the sockets instead of losing arrival order.
const maxPendingRequests = 1024

type timedRequest struct {
	recvNs  int64
	request messages.ClientRequest
}

// FIFOSequencer merges requests from every connection reader into a single
// arrival-ordered stream and is the only producer of the engine's request
// ring. Readers stamp each request with its socket receive time; the
// sequencer drains the pending batch, sorts it by that stamp and publishes.
type FIFOSequencer struct {
	requests *memory.Ring[messages.ClientRequest]
	log      *slog.Logger

	mu      sync.Mutex
	pending []timedRequest

	batch []timedRequest

	run  atomic.Bool
	done chan struct{}
}

// NewFIFOSequencer returns a sequencer feeding the given request ring.
func NewFIFOSequencer(requests *memory.Ring[messages.ClientRequest], log *slog.Logger) *FIFOSequencer {
	return &FIFOSequencer{
		requests: requests,
		log:      log.With("component", "sequencer"),
		pending:  make([]timedRequest, 0, maxPendingRequests),
		batch:    make([]timedRequest, 0, maxPendingRequests),
		done:     make(chan struct{}),
	}
}

// Push adds one timestamped request to the pending batch. Blocks while the
// batch is at capacity.
func (s *FIFOSequencer) Push(recvNs int64, r *messages.ClientRequest) {
	for {
		s.mu.Lock()
		if len(s.pending) < maxPendingRequests {
			s.pending = append(s.pending, timedRequest{recvNs: recvNs, request: *r})
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		runtime.Gosched()
	}
}

// Start launches the flush goroutine.
func (s *FIFOSequencer) Start() {
	s.run.Store(true)
	go s.loop()
}

// Stop flushes the last batch and returns once the goroutine has exited.
func (s *FIFOSequencer) Stop() {
	s.run.Store(false)
	<-s.done
}

func (s *FIFOSequencer) loop() {
	defer close(s.done)
	for {
		if !s.flush() {
			if !s.run.Load() {
				// One last look for requests pushed during shutdown.
				s.flush()
				return
			}
			runtime.Gosched()
		}
	}
}

// flush drains the pending batch, restores arrival order across
// connections and publishes to the ring. Reports whether any request was
// published.
func (s *FIFOSequencer) flush() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}
	s.batch = append(s.batch[:0], s.pending...)
	s.pending = s.pending[:0]
	s.mu.Unlock()

	sort.SliceStable(s.batch, func(i, j int) bool {
		return s.batch[i].recvNs < s.batch[j].recvNs
	})
	for i := range s.batch {
		for {
			slot, ok := s.requests.ReserveWrite()
			if ok {
				*slot = s.batch[i].request
				s.requests.CommitWrite()
				break
			}
			runtime.Gosched()
		}
	}
	return true
}
