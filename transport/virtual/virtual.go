// Package virtual provides an in-memory CAN bus.
//
// Every Port on a Bus sees the frames sent by every other port. A port
// never receives its own frames, as with a CAN controller without loopback.
package virtual

import (
	"sync"
	"time"

	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
)

// Bus connects ports.
type Bus struct {
	mu     sync.Mutex
	ports  []*Port
	closed bool
	taps   []func(protocol.Frame)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Port attaches a new port with an inbound queue of queueSize frames.
func (b *Bus) Port(queueSize int) *Port {
	p := &Port{bus: b, inbox: transport.NewInbox(queueSize)}
	b.mu.Lock()
	b.ports = append(b.ports, p)
	b.mu.Unlock()
	return p
}

// Tap registers fn to observe every frame sent on the bus.
func (b *Bus) Tap(fn func(protocol.Frame)) {
	b.mu.Lock()
	b.taps = append(b.taps, fn)
	b.mu.Unlock()
}

// Close detaches and closes every port.
func (b *Bus) Close() {
	b.mu.Lock()
	ports := b.ports
	b.ports = nil
	b.closed = true
	b.mu.Unlock()

	for _, p := range ports {
		p.inbox.Close()
	}
}

func (b *Bus) deliver(from *Port, f protocol.Frame) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return transport.ErrClosed
	}
	ports := append([]*Port(nil), b.ports...)
	taps := append(([]func(protocol.Frame))(nil), b.taps...)
	b.mu.Unlock()

	for _, fn := range taps {
		fn(f)
	}
	for _, p := range ports {
		if p != from {
			p.inbox.Push(f)
		}
	}
	return nil
}

func (b *Bus) detach(p *Port) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, q := range b.ports {
		if q == p {
			b.ports = append(b.ports[:i], b.ports[i+1:]...)
			return
		}
	}
}

// Port is one node's connection to a Bus. It implements transport.Transport.
type Port struct {
	bus   *Bus
	inbox *transport.Inbox

	mu     sync.Mutex
	closed bool
}

var _ transport.Transport = (*Port)(nil)

// Send delivers f to every other port. Delivery never blocks; a full
// receiver queue raises that receiver's overflow flag.
func (p *Port) Send(f protocol.Frame, timeout time.Duration) error {
	if err := f.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	return p.bus.deliver(p, f)
}

// Receive returns the next queued frame.
func (p *Port) Receive(timeout time.Duration) (protocol.Frame, error) {
	return p.inbox.Receive(timeout)
}

// Drain discards queued frames.
func (p *Port) Drain() {
	p.inbox.Drain()
}

// SetFilter adds id to the include or exclude list.
func (p *Port) SetFilter(id uint16, action transport.FilterAction) {
	p.inbox.SetFilter(id, action)
}

// ClearFilter passes every frame.
func (p *Port) ClearFilter() {
	p.inbox.ClearFilter()
}

// SetFilterMode selects the active filter list.
func (p *Port) SetFilterMode(mode transport.FilterMode) {
	p.inbox.SetFilterMode(mode)
}

// Close detaches the port from the bus.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.bus.detach(p)
	p.inbox.Close()
	return nil
}
