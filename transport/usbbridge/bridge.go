package usbbridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
)

// aliveMissLimit is the number of alive periods without an Alive packet
// after which the link is considered down.
const aliveMissLimit = 3

// link is a pair of bulk endpoints.
type link interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// Bridge speaks the packet protocol of a USB-CAN adapter.
type Bridge struct {
	link   link
	closer func() error
	inbox  *transport.Inbox
	alive  time.Duration

	writeMu   sync.Mutex
	lastAlive atomic.Int64
	down      atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

var _ transport.Transport = (*Bridge)(nil)

func newBridge(l link, closer func() error, alive time.Duration, queueSize int) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		link:   l,
		closer: closer,
		inbox:  transport.NewInbox(queueSize),
		alive:  alive,
		ctx:    ctx,
		cancel: cancel,
	}
	b.lastAlive.Store(time.Now().UnixNano())

	b.wg.Add(1)
	go b.readLoop()
	if alive > 0 {
		b.wg.Add(1)
		go b.housekeeping()
	}
	return b
}

func (b *Bridge) readLoop() {
	defer b.wg.Done()
	var dec Decoder
	buf := make([]byte, 512)
	for {
		n, err := b.link.ReadContext(b.ctx, buf)
		if n > 0 {
			dec.Feed(buf[:n], b.handle)
		}
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			b.down.Store(true)
			b.inbox.Close()
			return
		}
	}
}

func (b *Bridge) handle(p Packet) {
	switch p.Type {
	case PacketFrame:
		f, err := protocol.DecodeFrame(p.Payload)
		if err != nil {
			return
		}
		b.inbox.Push(f)
	case PacketAlive:
		b.lastAlive.Store(time.Now().UnixNano())
		b.down.Store(false)
	case PacketOverflow:
		b.inbox.SetOverflow()
	}
}

// housekeeping pings the adapter every alive period and marks the link down
// when the adapter stops answering.
func (b *Bridge) housekeeping() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.alive)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			_ = b.write(Packet{Type: PacketAlive}, b.alive)
			last := time.Unix(0, b.lastAlive.Load())
			if time.Since(last) > aliveMissLimit*b.alive {
				b.down.Store(true)
			}
		}
	}
}

func (b *Bridge) write(p Packet, timeout time.Duration) error {
	raw, err := p.Encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(b.ctx, timeout)
	defer cancel()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if _, err := b.link.WriteContext(ctx, raw); err != nil {
		if b.ctx.Err() != nil {
			return transport.ErrClosed
		}
		if ctx.Err() != nil {
			return transport.ErrTimeout
		}
		return err
	}
	return nil
}

// Send forwards f to the adapter.
func (b *Bridge) Send(f protocol.Frame, timeout time.Duration) error {
	if b.down.Load() {
		return transport.ErrLinkDown
	}
	raw, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	return b.write(Packet{Type: PacketFrame, Payload: raw}, timeout)
}

// Receive returns the next queued frame.
func (b *Bridge) Receive(timeout time.Duration) (protocol.Frame, error) {
	if b.down.Load() {
		return protocol.Frame{}, transport.ErrLinkDown
	}
	return b.inbox.Receive(timeout)
}

// Drain discards queued frames.
func (b *Bridge) Drain() {
	b.inbox.Drain()
}

// SetFilter adds id to the include or exclude list.
func (b *Bridge) SetFilter(id uint16, action transport.FilterAction) {
	b.inbox.SetFilter(id, action)
}

// ClearFilter passes every frame.
func (b *Bridge) ClearFilter() {
	b.inbox.ClearFilter()
}

// SetFilterMode selects the active filter list.
func (b *Bridge) SetFilterMode(mode transport.FilterMode) {
	b.inbox.SetFilterMode(mode)
}

// Close stops the background goroutines and releases the device.
func (b *Bridge) Close() error {
	var err error
	b.once.Do(func() {
		b.cancel()
		b.wg.Wait()
		b.inbox.Close()
		if b.closer != nil {
			err = b.closer()
		}
	})
	return err
}
