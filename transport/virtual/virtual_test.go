package virtual

import (
	"errors"
	"testing"
	"time"

	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
)

func TestBusDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := bus.Port(8)
	b := bus.Port(8)
	c := bus.Port(8)

	var tapped []uint16
	bus.Tap(func(f protocol.Frame) { tapped = append(tapped, f.ID) })

	f, _ := protocol.NewFrame(0x305, []byte{0x01})
	if err := a.Send(f, time.Millisecond); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	for name, p := range map[string]*Port{"b": b, "c": c} {
		got, err := p.Receive(10 * time.Millisecond)
		if err != nil {
			t.Fatalf("port %s Receive() error = %v", name, err)
		}
		if got != f {
			t.Errorf("port %s got %v, want %v", name, got, f)
		}
	}

	if _, err := a.Receive(5 * time.Millisecond); !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("sender received its own frame, error = %v", err)
	}
	if len(tapped) != 1 || tapped[0] != 0x305 {
		t.Errorf("tap saw %X, want [305]", tapped)
	}
}

func TestPortFilter(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	host := bus.Port(8)
	node := bus.Port(8)

	host.SetFilter(0x305, transport.Include)
	host.SetFilterMode(transport.FilterIncludeOnly)

	alert, _ := protocol.NewFrame(0x105, nil)
	status, _ := protocol.NewFrame(0x305, []byte{0x01})
	_ = node.Send(alert, time.Millisecond)
	_ = node.Send(status, time.Millisecond)

	got, err := host.Receive(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if got.ID != 0x305 {
		t.Errorf("Receive() ID = 0x%X, want 0x305", got.ID)
	}
}

func TestPortClose(t *testing.T) {
	bus := NewBus()
	a := bus.Port(8)
	b := bus.Port(8)

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	f, _ := protocol.NewFrame(0x100, nil)
	if err := b.Send(f, time.Millisecond); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send() on closed port error = %v, want ErrClosed", err)
	}
	if err := a.Send(f, time.Millisecond); err != nil {
		t.Errorf("Send() with detached peer error = %v", err)
	}

	bus.Close()
	if err := a.Send(f, time.Millisecond); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send() on closed bus error = %v, want ErrClosed", err)
	}
}
