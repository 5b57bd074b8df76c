package simnode

import (
	"context"
	"testing"
	"time"

	"github.com/moffa90/go-canboot/device"
	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
	"github.com/moffa90/go-canboot/transport/virtual"
)

func startNode(t *testing.T, cfg Config) (*Node, *virtual.Port) {
	t.Helper()
	bus := virtual.NewBus()
	node := New(bus, cfg)
	host := bus.Port(64)
	node.Start(context.Background())
	t.Cleanup(func() {
		node.Stop()
		bus.Close()
	})
	return node, host
}

func waitFor(t *testing.T, host transport.Transport, match func(protocol.Frame) bool) protocol.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f, err := host.Receive(50 * time.Millisecond)
		if err != nil {
			continue
		}
		if match(f) {
			return f
		}
	}
	t.Fatal("timed out waiting for frame")
	return protocol.Frame{}
}

func TestNodeAlertsAndInfo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Node = 9
	cfg.Signature = 0xCAFEBABE
	_, host := startNode(t, cfg)
	codec := protocol.NewCodec(9, protocol.AddressByID)

	waitFor(t, host, func(f protocol.Frame) bool { return codec.FromNode(f, protocol.MsgAlert) })

	req, _ := codec.BuildGetInfo()
	if err := host.Send(req, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	reply := waitFor(t, host, func(f protocol.Frame) bool { return codec.FromNode(f, protocol.MsgGetInfo) })
	info, err := protocol.ParseInfo(reply.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if info.Signature != 0xCAFEBABE {
		t.Errorf("Signature = 0x%08X, want 0xCAFEBABE", info.Signature)
	}
}

func TestNodeResetCycle(t *testing.T) {
	cfg := DefaultConfig()
	node, host := startNode(t, cfg)
	codec := protocol.NewCodec(cfg.Node, cfg.Addressing)
	isStatus := func(f protocol.Frame) bool { return codec.FromNode(f, protocol.MsgReset) }

	waitFor(t, host, func(f protocol.Frame) bool { return codec.FromNode(f, protocol.MsgAlert) })

	// Reset into the application
	req, _ := codec.BuildReset(true)
	_ = host.Send(req, time.Millisecond)
	waitFor(t, host, isStatus)

	deadline := time.Now().Add(2 * time.Second)
	for node.AppStarts() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if node.AppStarts() != 1 {
		t.Fatalf("AppStarts() = %d, want 1", node.AppStarts())
	}
	if got := device.ReadCleanFlag(node.EEPROM(), device.DefaultCleanFlagAddress); got != protocol.DirtyFlagValue {
		t.Errorf("clean flag after application start = 0x%04X, want dirty", got)
	}

	// The application reboots into the bootloader on Reset
	host.Drain()
	req, _ = codec.BuildReset(false)
	_ = host.Send(req, time.Millisecond)
	waitFor(t, host, isStatus)
	waitFor(t, host, func(f protocol.Frame) bool { return codec.FromNode(f, protocol.MsgAlert) })

	if node.Boots() < 3 {
		t.Errorf("Boots() = %d, want at least 3", node.Boots())
	}
}

func TestNodeTransmitFailure(t *testing.T) {
	node, _ := startNode(t, DefaultConfig())
	node.FailTransmit()

	deadline := time.Now().Add(2 * time.Second)
	for node.Err() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if node.Err() == nil {
		t.Fatal("node kept running after transmit failures")
	}
}

func TestFlashFaults(t *testing.T) {
	f := NewFlash(256, 128)
	f.InjectFaults(1)

	f.ErasePage(0)
	f.ProgramByte(0, 0x55)
	f.ProgramByte(1, 0x55)
	if f.ReadFlash(0) == 0x55 {
		t.Error("fault was not injected")
	}
	if f.ReadFlash(1) != 0x55 {
		t.Errorf("ReadFlash(1) = 0x%02X, want 0x55", f.ReadFlash(1))
	}

	f.ErasePage(0)
	f.ProgramByte(0, 0x55)
	if f.ReadFlash(0) != 0x55 {
		t.Error("fault persisted past its count")
	}

	// Programming only clears bits
	f.ProgramByte(0, 0xAA)
	if f.ReadFlash(0) != 0x00 {
		t.Errorf("ReadFlash(0) = 0x%02X after overprogram, want 0x00", f.ReadFlash(0))
	}
}

func TestSimTransportOptions(t *testing.T) {
	opts, _ := transport.ParseOptions("node=3:addressing=payload:signature=0xDEADBEEF:pagesize=64:flash=8192")
	cfg, err := configFromOptions(opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Node != 3 || cfg.Addressing != protocol.AddressInPayload || cfg.Signature != 0xDEADBEEF ||
		cfg.PageSize != 64 || cfg.FlashSize != 8192 {
		t.Errorf("configFromOptions() = %+v", cfg)
	}

	if _, err := configFromOptions(transport.Options{"flash": "1000", "pagesize": "128"}); err == nil {
		t.Error("accepted flash size that is not a multiple of the page size")
	}
}
