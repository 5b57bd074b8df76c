package device

import (
	"sync/atomic"

	"github.com/moffa90/go-canboot/protocol"
)

// RingSize is the receive ring capacity. It must be a power of two.
const RingSize = 16

// Ring is a single-producer single-consumer frame queue. The receive
// interrupt is the only producer and the main loop the only consumer, so
// neither side needs to disable interrupts.
type Ring struct {
	buf     [RingSize]protocol.Frame
	head    atomic.Uint32
	tail    atomic.Uint32
	dropped atomic.Uint32
}

// Push stores f. Returns false and counts a drop when the ring is full.
// Producer side only.
func (r *Ring) Push(f protocol.Frame) bool {
	h := r.head.Load()
	if h-r.tail.Load() == RingSize {
		r.dropped.Add(1)
		return false
	}
	r.buf[h&(RingSize-1)] = f
	r.head.Store(h + 1)
	return true
}

// Pop removes the oldest frame. Consumer side only.
func (r *Ring) Pop() (protocol.Frame, bool) {
	t := r.tail.Load()
	if t == r.head.Load() {
		return protocol.Frame{}, false
	}
	f := r.buf[t&(RingSize-1)]
	r.tail.Store(t + 1)
	return f, true
}

// Len returns the number of queued frames.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Dropped returns the number of frames lost to a full ring.
func (r *Ring) Dropped() uint32 {
	return r.dropped.Load()
}
