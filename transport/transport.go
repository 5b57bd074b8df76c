package transport

import (
	"errors"
	"time"

	"github.com/moffa90/go-canboot/protocol"
)

// Transport carries CAN frames between the host and the bus.
//
// Implementations deliver inbound frames through a bounded queue filled by a
// background reader. Every call is bounded by the given timeout.
type Transport interface {
	// Send transmits one frame. Returns ErrTimeout if the link did not
	// accept the frame within timeout.
	Send(f protocol.Frame, timeout time.Duration) error

	// Receive returns the next frame that passed the filter. Returns
	// ErrTimeout if nothing arrived within timeout. After the inbound queue
	// overflowed it returns ErrOverflow once; callers should Drain before
	// trusting later frames.
	Receive(timeout time.Duration) (protocol.Frame, error)

	// Drain discards every queued inbound frame and clears the overflow flag.
	Drain()

	// SetFilter adds id to the include or exclude list.
	SetFilter(id uint16, action FilterAction)

	// ClearFilter empties both lists and returns to FilterPassAll.
	ClearFilter()

	// SetFilterMode selects which list, if any, is applied.
	SetFilterMode(mode FilterMode)

	// Close stops the background reader and releases the link.
	Close() error
}

// Errors returned by transports.
var (
	// ErrTimeout means no frame arrived, or the link did not accept one,
	// within the requested time. It is not fatal.
	ErrTimeout = errors.New("transport timeout")

	// ErrOverflow means inbound frames were dropped because the queue was full
	ErrOverflow = errors.New("inbound queue overflow")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("transport closed")

	// ErrLinkDown means the adapter stopped answering housekeeping messages
	ErrLinkDown = errors.New("link down")
)

// DefaultQueueSize is the inbound queue capacity used when none is given.
const DefaultQueueSize = 256
