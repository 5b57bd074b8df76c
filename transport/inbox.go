package transport

import (
	"sync"
	"time"

	"github.com/moffa90/go-canboot/protocol"
)

// Inbox is the inbound queue shared by transport implementations.
//
// A background reader calls Push; the caller of Receive waits on the queue
// with a timeout. When the queue is full the new frame is dropped and the
// overflow flag is raised. The next Receive reports ErrOverflow and clears
// the flag.
type Inbox struct {
	mu       sync.Mutex
	queue    []protocol.Frame
	capacity int
	overflow bool
	closed   bool
	filter   Filter
	notify   chan struct{}
}

// NewInbox returns an Inbox holding at most capacity frames.
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Inbox{
		queue:    make([]protocol.Frame, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push queues f if it passes the filter. Returns false if the frame was
// filtered, dropped for lack of space, or the inbox is closed.
func (b *Inbox) Push(f protocol.Frame) bool {
	b.mu.Lock()
	if b.closed || !b.filter.Accept(f.ID) {
		b.mu.Unlock()
		return false
	}
	if len(b.queue) >= b.capacity {
		b.overflow = true
		b.mu.Unlock()
		b.signal()
		return false
	}
	b.queue = append(b.queue, f)
	b.mu.Unlock()
	b.signal()
	return true
}

// SetOverflow raises the overflow flag. Used when the link itself reports
// lost frames.
func (b *Inbox) SetOverflow() {
	b.mu.Lock()
	b.overflow = true
	b.mu.Unlock()
	b.signal()
}

// Receive waits up to timeout for a frame.
func (b *Inbox) Receive(timeout time.Duration) (protocol.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		b.mu.Lock()
		if b.overflow {
			b.overflow = false
			b.mu.Unlock()
			return protocol.Frame{}, ErrOverflow
		}
		if len(b.queue) > 0 {
			f := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return f, nil
		}
		if b.closed {
			b.mu.Unlock()
			return protocol.Frame{}, ErrClosed
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
		case <-timer.C:
			return protocol.Frame{}, ErrTimeout
		}
	}
}

// Drain discards queued frames and clears the overflow flag.
func (b *Inbox) Drain() {
	b.mu.Lock()
	b.queue = b.queue[:0]
	b.overflow = false
	b.mu.Unlock()
}

// Len returns the number of queued frames.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// SetFilter adds id to the include or exclude list.
func (b *Inbox) SetFilter(id uint16, action FilterAction) {
	b.mu.Lock()
	b.filter.Set(id, action)
	b.mu.Unlock()
}

// ClearFilter empties the filter lists and passes every frame.
func (b *Inbox) ClearFilter() {
	b.mu.Lock()
	b.filter.Clear()
	b.mu.Unlock()
}

// SetFilterMode selects the active filter list.
func (b *Inbox) SetFilterMode(mode FilterMode) {
	b.mu.Lock()
	b.filter.SetMode(mode)
	b.mu.Unlock()
}

// Filter returns a snapshot of the filter state.
func (b *Inbox) Filter() (mode FilterMode, include, exclude []uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter.Mode(), b.filter.Included(), b.filter.Excluded()
}

// Close wakes any waiting Receive. Queued frames can still be read.
func (b *Inbox) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

func (b *Inbox) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
