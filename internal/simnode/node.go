// Package simnode runs a device.Machine against simulated flash, EEPROM and
// a virtual CAN bus, so the host uploader can be exercised without
// hardware.
package simnode

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moffa90/go-canboot/device"
	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
	"github.com/moffa90/go-canboot/transport/virtual"
)

// Config describes the simulated node.
type Config struct {
	Node       uint8
	Addressing protocol.Addressing
	Signature  uint32
	PageSize   int
	FlashSize  int

	// BootloaderStart defaults to FlashSize minus 4 KiB, or FlashSize for
	// parts of 8 KiB and less
	BootloaderStart uint32

	// Tick is the period of the device timer
	Tick time.Duration

	// IdleTimeout, AlertInterval and CommsTimeout are in ticks
	IdleTimeout   uint32
	AlertInterval uint32
	CommsTimeout  uint32
}

// DefaultConfig returns a 32 KiB ATmega328P-like node with ID 1.
func DefaultConfig() Config {
	return Config{
		Node:          device.DefaultNode,
		Addressing:    protocol.AddressByID,
		Signature:     0x001E950F,
		PageSize:      device.DefaultPageSize,
		FlashSize:     32 * 1024,
		Tick:          time.Millisecond,
		IdleTimeout:   device.DefaultIdleTimeout,
		AlertInterval: 50,
		CommsTimeout:  device.DefaultCommsTimeout,
	}
}

// Node is a simulated CAN node. It boots into the bootloader, and after the
// application is started it answers Reset by rebooting, as an application
// with bootloader support would.
type Node struct {
	cfg    Config
	codec  protocol.Codec
	port   *virtual.Port
	flash  *Flash
	eeprom *EEPROM

	machine atomic.Pointer[device.Machine]

	// appRx carries frames to the application while no bootloader runs
	appRx chan protocol.Frame

	// irq is held while interrupts are disabled
	irq sync.Mutex

	boots     atomic.Int32
	appStarts atomic.Int32
	txFail    atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	err    atomic.Value
}

// New attaches a node to bus. Call Start to power it on.
func New(bus *virtual.Bus, cfg Config) *Node {
	if cfg.PageSize <= 0 {
		cfg.PageSize = device.DefaultPageSize
	}
	if cfg.FlashSize <= 0 {
		cfg.FlashSize = 32 * 1024
	}
	if cfg.BootloaderStart == 0 {
		cfg.BootloaderStart = uint32(cfg.FlashSize)
		if cfg.FlashSize > 8192 {
			cfg.BootloaderStart -= 4096
		}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Millisecond
	}

	n := &Node{
		cfg:    cfg,
		codec:  protocol.NewCodec(cfg.Node, cfg.Addressing),
		port:   bus.Port(64),
		flash:  NewFlash(cfg.FlashSize, cfg.PageSize),
		eeprom: NewEEPROM(1024),
		appRx:  make(chan protocol.Frame, 16),
	}
	return n
}

// Flash returns the node's program memory.
func (n *Node) Flash() *Flash {
	return n.flash
}

// EEPROM returns the node's persistent memory.
func (n *Node) EEPROM() *EEPROM {
	return n.eeprom
}

// Boots returns how many times the node powered on or reset.
func (n *Node) Boots() int {
	return int(n.boots.Load())
}

// AppStarts returns how many times control passed to the application.
func (n *Node) AppStarts() int {
	return int(n.appStarts.Load())
}

// FailTransmit makes every later transmission go unconfirmed.
func (n *Node) FailTransmit() {
	n.txFail.Store(true)
}

// Err returns the error that stopped the node, if any.
func (n *Node) Err() error {
	if err, ok := n.err.Load().(error); ok {
		return err
	}
	return nil
}

// Start powers the node on.
func (n *Node) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)

	n.wg.Add(3)
	go n.receiveLoop(ctx)
	go n.tickLoop(ctx)
	go n.mainLoop(ctx)
}

// Stop powers the node off and detaches it from the bus.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	_ = n.port.Close()
	n.wg.Wait()
}

// receiveLoop plays the CAN receive interrupt.
func (n *Node) receiveLoop(ctx context.Context) {
	defer n.wg.Done()
	for ctx.Err() == nil {
		f, err := n.port.Receive(10 * time.Millisecond)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return
			}
			continue
		}
		n.irq.Lock()
		if m := n.machine.Load(); m != nil {
			m.OnReceive(f)
		} else {
			select {
			case n.appRx <- f:
			default:
			}
		}
		n.irq.Unlock()
	}
}

// tickLoop plays the timer interrupt.
func (n *Node) tickLoop(ctx context.Context) {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m := n.machine.Load(); m != nil {
				m.Tick()
			}
		}
	}
}

func (n *Node) mainLoop(ctx context.Context) {
	defer n.wg.Done()
	for ctx.Err() == nil {
		n.boots.Add(1)
		m := device.New(device.HAL{
			Flash:  n.flash,
			EEPROM: n.eeprom,
			Bus:    (*busHAL)(n),
			CPU:    (*cpuHAL)(n),
		},
			device.WithNode(n.cfg.Node),
			device.WithAddressing(n.cfg.Addressing),
			device.WithSignature(n.cfg.Signature),
			device.WithPageSize(n.cfg.PageSize),
			device.WithBootloaderStart(n.cfg.BootloaderStart),
			device.WithIdleTimeout(n.cfg.IdleTimeout),
			device.WithAlertInterval(n.cfg.AlertInterval),
			device.WithCommsTimeout(n.cfg.CommsTimeout),
			device.WithTxPollLimit(1),
		)
		n.machine.Store(m)

		err := m.Boot()
		if err == nil {
			err = m.Run(ctx)
		}
		n.machine.Store(nil)

		switch {
		case errors.Is(err, device.ErrReset):
			continue
		case errors.Is(err, device.ErrApplicationStarted):
			n.appStarts.Add(1)
			if !n.runApplication(ctx) {
				return
			}
		default:
			if ctx.Err() == nil {
				n.err.Store(err)
			}
			<-ctx.Done()
			return
		}
	}
}

// runApplication waits for a Reset addressed to this node, acknowledges it
// and returns true so the node reboots.
func (n *Node) runApplication(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case f := <-n.appRx:
			if f.Type() != protocol.MsgReset || !n.codec.Addressed(f) {
				continue
			}
			if reply, err := n.codec.BuildStatus(protocol.MsgReset, true); err == nil {
				_ = n.port.Send(reply, time.Millisecond)
			}
			return true
		}
	}
}

// busHAL adapts the node's bus port to device.Bus.
type busHAL Node

func (b *busHAL) Transmit(f protocol.Frame) {
	if b.txFail.Load() {
		return
	}
	_ = b.port.Send(f, time.Millisecond)
}

func (b *busHAL) TxComplete() bool {
	return !b.txFail.Load()
}

// cpuHAL maps interrupt control onto the receive loop lock.
type cpuHAL Node

func (c *cpuHAL) DisableInterrupts() { c.irq.Lock() }
func (c *cpuHAL) EnableInterrupts()  { c.irq.Unlock() }
func (c *cpuHAL) Reset()             {}
func (c *cpuHAL) JumpToApplication() {}
