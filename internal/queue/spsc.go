// Package queue provides the lock-free hand-off ring between the feed
// goroutine and the engine goroutine.
package queue

import (
	"fmt"
	"sync/atomic"
)

const cacheLineSize = 64

type slot[T any] struct {
	sequence atomic.Uint64
	value    T
}

// SpscRing is a bounded lock-free ring buffer for exactly one producer
// goroutine and one consumer goroutine.
//
// Each slot carries a monotonically increasing sequence counter: slot i is
// writable when its sequence equals the producer's tail, readable when it
// equals head+1. The producer advances a published slot's sequence to
// tail+1; the consumer recycles it to head+capacity. Empty/full is decided
// from the slot sequence alone, so neither side ever reads the other's
// counter on the fast path.
type SpscRing[T any] struct {
	mask  uint64
	slots []slot[T]

	// head and tail sit on separate cache lines so the producer and the
	// consumer do not invalidate each other's line on every operation.
	_    [cacheLineSize]byte
	head atomic.Uint64 // next position to pop
	_    [cacheLineSize - 8]byte
	tail atomic.Uint64 // next position to push
	_    [cacheLineSize - 8]byte
}

// NewSpscRing creates a ring with the given capacity, which must be a
// power of two.
func NewSpscRing[T any](capacity uint64) (*SpscRing[T], error) {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("queue: capacity %d is not a power of two", capacity)
	}

	r := &SpscRing[T]{
		mask:  capacity - 1,
		slots: make([]slot[T], capacity),
	}
	for i := range r.slots {
		r.slots[i].sequence.Store(uint64(i))
	}
	return r, nil
}

// TryPush publishes v and reports success. It fails without side effects
// when the ring is full. Only the producer goroutine may call it.
func (r *SpscRing[T]) TryPush(v T) bool {
	pos := r.tail.Load()
	s := &r.slots[pos&r.mask]

	if s.sequence.Load() != pos {
		return false // full
	}

	s.value = v
	s.sequence.Store(pos + 1)
	r.tail.Store(pos + 1)
	return true
}

// TryPop returns the oldest published value, or ok=false when the ring is
// empty. Only the consumer goroutine may call it.
func (r *SpscRing[T]) TryPop() (T, bool) {
	pos := r.head.Load()
	s := &r.slots[pos&r.mask]

	if s.sequence.Load() != pos+1 {
		var zero T
		return zero, false // empty
	}

	v := s.value
	var zero T
	s.value = zero // release references held by the slot

	s.sequence.Store(pos + uint64(len(r.slots)))
	r.head.Store(pos + 1)
	return v, true
}

// Len is the approximate number of buffered values. Exact only when both
// sides are quiescent.
func (r *SpscRing[T]) Len() uint64 {
	return r.tail.Load() - r.head.Load()
}

// Cap returns the fixed capacity.
func (r *SpscRing[T]) Cap() uint64 {
	return uint64(len(r.slots))
}
