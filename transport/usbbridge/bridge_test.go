package usbbridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
)

// fakeLink feeds queued reads to the bridge and records writes.
type fakeLink struct {
	reads chan []byte

	mu      sync.Mutex
	written []Packet
	dec     Decoder
}

func newFakeLink() *fakeLink {
	return &fakeLink{reads: make(chan []byte, 16)}
}

func (l *fakeLink) ReadContext(ctx context.Context, buf []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case p := <-l.reads:
		return copy(buf, p), nil
	}
}

func (l *fakeLink) WriteContext(ctx context.Context, buf []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dec.Feed(buf, func(p Packet) { l.written = append(l.written, p) })
	return len(buf), nil
}

func (l *fakeLink) inject(p Packet) {
	raw, _ := p.Encode()
	l.reads <- raw
}

func (l *fakeLink) packets(t PacketType) []Packet {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Packet
	for _, p := range l.written {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

func TestBridgeSendReceive(t *testing.T) {
	l := newFakeLink()
	b := newBridge(l, nil, 0, 8)
	defer b.Close()

	out, _ := protocol.NewFrame(0x305, []byte{0x01})
	if err := b.Send(out, 10*time.Millisecond); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	sent := l.packets(PacketFrame)
	if len(sent) != 1 {
		t.Fatalf("wrote %d frame packets, want 1", len(sent))
	}
	if got, _ := protocol.DecodeFrame(sent[0].Payload); got != out {
		t.Errorf("sent frame = %v, want %v", got, out)
	}

	in, _ := protocol.NewFrame(0x405, []byte{0x01})
	raw, _ := in.MarshalBinary()
	l.inject(Packet{Type: PacketFrame, Payload: raw})

	got, err := b.Receive(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if got != in {
		t.Errorf("Receive() = %v, want %v", got, in)
	}
}

func TestBridgeOverflowPacket(t *testing.T) {
	l := newFakeLink()
	b := newBridge(l, nil, 0, 8)
	defer b.Close()

	l.inject(Packet{Type: PacketOverflow})

	if _, err := b.Receive(100 * time.Millisecond); !errors.Is(err, transport.ErrOverflow) {
		t.Errorf("Receive() error = %v, want ErrOverflow", err)
	}
}

func TestBridgeAlive(t *testing.T) {
	l := newFakeLink()
	b := newBridge(l, nil, 10*time.Millisecond, 8)
	defer b.Close()

	time.Sleep(25 * time.Millisecond)
	if len(l.packets(PacketAlive)) == 0 {
		t.Error("no ALIVE packets sent")
	}

	// Adapter stays silent for more than three periods
	time.Sleep(60 * time.Millisecond)
	f, _ := protocol.NewFrame(0x305, nil)
	if err := b.Send(f, 10*time.Millisecond); !errors.Is(err, transport.ErrLinkDown) {
		t.Errorf("Send() with silent adapter error = %v, want ErrLinkDown", err)
	}

	l.inject(Packet{Type: PacketAlive})
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if err := b.Send(f, 10*time.Millisecond); err == nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Error("link did not recover after ALIVE")
}

func TestBridgeClose(t *testing.T) {
	l := newFakeLink()
	closed := false
	b := newBridge(l, func() error { closed = true; return nil }, 5*time.Millisecond, 8)

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !closed {
		t.Error("Close() did not release the device")
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestConfigFromOptions(t *testing.T) {
	opts, _ := transport.ParseOptions("vid=0x0483:pid=0x5740:alive=1s")
	cfg, err := configFromOptions(opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.VID != 0x0483 || cfg.PID != 0x5740 || cfg.Alive != time.Second {
		t.Errorf("configFromOptions() = %+v", cfg)
	}
	if cfg.InEndpoint != DefaultInEndpoint || cfg.QueueSize != transport.DefaultQueueSize {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if _, err := configFromOptions(transport.Options{"vid": "0x10000"}); err == nil {
		t.Error("configFromOptions() accepted 17-bit VID")
	}
}
