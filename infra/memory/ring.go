package memory

import "sync/atomic"

// Ring is a bounded lock-free FIFO between exactly one producer goroutine
// and exactly one consumer goroutine. Slots are carried by value: the
// pointer handed out by ReserveWrite/PeekRead IS the backing storage, the
// ring never copies into side buffers.
//
// Both indices increase monotonically and are masked by capacity-1 to
// address slots. The producer's slot writes happen-before the consumer's
// reads of that slot: CommitWrite publishes with a store on write that
// PeekRead pairs with a load, and ReleaseRead frees capacity with a store
// on read that ReserveWrite pairs with a load.
type Ring[T any] struct {
	buf   []T
	mask  uint64
	_     [48]byte
	write atomic.Uint64
	_     [56]byte
	read  atomic.Uint64
	_     [56]byte
}

// NewRing allocates a ring with the given power-of-two capacity.
func NewRing[T any](capacity uint64) *Ring[T] {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("memory: ring capacity must be a power of two")
	}
	return &Ring[T]{buf: make([]T, capacity), mask: capacity - 1}
}

// ReserveWrite returns the next writable slot, or false when the ring is
// full. The producer fills the slot in place and then calls CommitWrite.
// Producer-only.
func (r *Ring[T]) ReserveWrite() (*T, bool) {
	w := r.write.Load()
	if w-r.read.Load() == uint64(len(r.buf)) {
		return nil, false
	}
	return &r.buf[w&r.mask], true
}

// CommitWrite publishes the slot obtained from the last ReserveWrite.
// After this call the consumer is allowed to observe it. Producer-only.
func (r *Ring[T]) CommitWrite() {
	r.write.Add(1)
}

// PeekRead returns the oldest unread slot, or false when the ring is
// empty. The slot stays owned by the ring until ReleaseRead. Consumer-only.
func (r *Ring[T]) PeekRead() (*T, bool) {
	t := r.read.Load()
	if t == r.write.Load() {
		return nil, false
	}
	return &r.buf[t&r.mask], true
}

// ReleaseRead discards the slot obtained from the last PeekRead.
// Consumer-only.
func (r *Ring[T]) ReleaseRead() {
	r.read.Add(1)
}

// Diagnostic helpers; safe from any goroutine.

func (r *Ring[T]) Len() int {
	return int(r.write.Load() - r.read.Load())
}

func (r *Ring[T]) Cap() int { return len(r.buf) }

func (r *Ring[T]) IsEmpty() bool { return r.write.Load() == r.read.Load() }

func (r *Ring[T]) IsFull() bool {
	return r.write.Load()-r.read.Load() == uint64(len(r.buf))
}
