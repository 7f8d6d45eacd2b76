// Package ring implements the bounded single-producer/single-consumer frame
// handoff between the capture goroutine and the sender's event loop.
//
// The design follows spec §4.2 and §5: a fixed-capacity circular array of
// slots, each slot owning a pre-allocated buffer and its own mutex, plus a
// ring-wide mutex and condition variable guarding the head/tail indices.
// The producer never blocks — an occupied head slot means the new frame is
// dropped, counted, and discarded, because real-time capture must not fall
// behind (spec §4.2 overflow policy).
package ring

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// slot owns one pre-allocated frame buffer plus the ready flag that gates
// producer/consumer access to it.
type slot struct {
	mu    sync.Mutex
	data  []byte
	size  int
	ready bool
}

// Ring is a bounded SPSC ring buffer of raw frames.
//
// Exactly one goroutine must call Produce and exactly one goroutine must
// call Consume; the ring enforces exclusivity by construction, not by
// runtime checks — calling either method from more than one goroutine
// concurrently is a misuse of the type.
type Ring struct {
	slots []*slot

	ringMu sync.Mutex
	cond   *sync.Cond
	head   int
	tail   int
	closed bool

	drops uint64
}

// New creates a ring with the given capacity, each slot pre-allocated to
// hold a frame of frameSize bytes.
func New(capacity, frameSize int) *Ring {
	if capacity < 1 {
		panic("ring: capacity must be at least 1")
	}
	if frameSize < 1 {
		panic("ring: frameSize must be at least 1")
	}

	slots := make([]*slot, capacity)
	for i := range slots {
		slots[i] = &slot{data: make([]byte, frameSize)}
	}

	r := &Ring{slots: slots}
	r.cond = sync.NewCond(&r.ringMu)
	return r
}

// Capacity returns the number of slots in the ring.
func (r *Ring) Capacity() int {
	return len(r.slots)
}

// Produce copies frame into the head slot and advances head, unless the
// head slot is still occupied (the consumer hasn't drained it yet) — in
// which case the frame is dropped and the drop counter is incremented.
// Produce never blocks.
func (r *Ring) Produce(frame []byte) (dropped bool) {
	s := r.slots[r.headIndex()]

	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		r.recordDrop()
		return true
	}

	n := copy(s.data, frame)
	s.size = n
	s.ready = true
	s.mu.Unlock()

	r.ringMu.Lock()
	r.head = (r.head + 1) % len(r.slots)
	r.cond.Signal()
	r.ringMu.Unlock()

	return false
}

func (r *Ring) headIndex() int {
	r.ringMu.Lock()
	defer r.ringMu.Unlock()
	return r.head
}

func (r *Ring) recordDrop() {
	r.ringMu.Lock()
	r.drops++
	count := r.drops
	r.ringMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Ring.Produce",
		"drops":    count,
	}).Warn("frame ring overflow, dropping newest frame")
}

// Consume blocks until the tail slot is ready or the ring is closed. On
// success it returns a fresh copy of the frame and true; on shutdown it
// returns nil, false.
func (r *Ring) Consume() ([]byte, bool) {
	r.ringMu.Lock()
	for {
		if r.closed {
			r.ringMu.Unlock()
			return nil, false
		}

		s := r.slots[r.tail]
		s.mu.Lock()
		if s.ready {
			out := make([]byte, s.size)
			copy(out, s.data[:s.size])
			s.ready = false
			s.mu.Unlock()

			r.tail = (r.tail + 1) % len(r.slots)
			r.ringMu.Unlock()
			return out, true
		}
		s.mu.Unlock()

		r.cond.Wait()
	}
}

// TryConsume returns the tail slot's frame if one is ready, without
// blocking. It is the non-blocking counterpart to Consume, used by a poll
// loop that must not stall waiting for capture.
func (r *Ring) TryConsume() ([]byte, bool) {
	r.ringMu.Lock()
	defer r.ringMu.Unlock()

	s := r.slots[r.tail]
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil, false
	}

	out := make([]byte, s.size)
	copy(out, s.data[:s.size])
	s.ready = false
	r.tail = (r.tail + 1) % len(r.slots)
	return out, true
}

// Close unblocks any goroutine waiting in Consume. Safe to call once, after
// the producer has stopped writing.
func (r *Ring) Close() {
	r.ringMu.Lock()
	r.closed = true
	r.ringMu.Unlock()
	r.cond.Broadcast()
}

// Drops returns the number of frames dropped due to overflow so far.
func (r *Ring) Drops() uint64 {
	r.ringMu.Lock()
	defer r.ringMu.Unlock()
	return r.drops
}
