package device

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/moffa90/go-canboot/protocol"
)

// Mode is the bootloader mode.
type Mode int

// Modes.
const (
	// ModeIdle means no command is in progress; alerts and the idle
	// timeout are active
	ModeIdle Mode = iota

	// ModeCommunicating means a command or a multi-frame transfer is in
	// progress; the idle timeout is suspended
	ModeCommunicating

	// ModeError is terminal until hardware reset
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeCommunicating:
		return "communicating"
	case ModeError:
		return "error"
	default:
		return "unknown"
	}
}

// PageBuffer is the single in-flight page transfer.
//
// Invariant: Cursor <= CodeLength <= page size, and at most one of
// ReadyToWrite and ReadyToRead is set.
type PageBuffer struct {
	PageAddress  uint32
	CodeLength   uint16
	Cursor       uint16
	Data         []byte
	ReadyToWrite bool
	ReadyToRead  bool

	// armed is set between an accepted Write-Memory and the last
	// Write-Data chunk
	armed bool
}

// Armed reports whether Write-Data chunks are accepted.
func (p PageBuffer) Armed() bool {
	return p.armed
}

// busy reports whether the buffer holds a transfer in any stage.
func (p *PageBuffer) busy() bool {
	return p.armed || p.ReadyToWrite || p.ReadyToRead
}

func (p *PageBuffer) release() {
	p.Cursor = 0
	p.CodeLength = 0
	p.ReadyToWrite = false
	p.ReadyToRead = false
	p.armed = false
}

// streaming is the Read-Data sub-state.
type streaming struct {
	active      bool
	cursor      uint16
	awaitingAck bool
}

// Machine is the device-side bootloader.
//
// OnReceive and Tick may be called from interrupt context. Every other
// method belongs to the main loop.
type Machine struct {
	cfg   Config
	codec protocol.Codec
	hal   HAL

	rx    Ring
	ticks atomic.Uint32
	wake  chan struct{}

	mode           Mode
	timeoutEnabled bool
	contacted      bool
	lastActivity   uint32
	lastAlert      uint32
	alertSent      bool

	page   PageBuffer
	stream streaming

	// Page ordering
	pageZeroSeen bool
	lastPage     uint32

	halted error
}

// New returns a Machine in ModeIdle driving hal.
func New(hal HAL, opts ...Option) *Machine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Machine{
		cfg:            cfg,
		codec:          protocol.NewCodec(cfg.Node, cfg.Addressing),
		hal:            hal,
		wake:           make(chan struct{}, 1),
		timeoutEnabled: true,
	}
	m.page.Data = make([]byte, cfg.PageSize)
	m.setLED(PatternSlow)
	return m
}

// Config returns the effective configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// OnReceive queues a frame from the CAN receive interrupt. It copies the
// frame and returns; no protocol work happens here.
func (m *Machine) OnReceive(f protocol.Frame) {
	m.rx.Push(f)
	m.signal()
}

// Tick advances the timeout counter. Called from the timer interrupt.
func (m *Machine) Tick() {
	m.ticks.Add(1)
	m.signal()
}

// Ticks returns the timeout counter.
func (m *Machine) Ticks() uint32 {
	return m.ticks.Load()
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// TimeoutEnabled reports whether the idle timeout is running.
func (m *Machine) TimeoutEnabled() bool {
	return m.timeoutEnabled
}

// Page returns a copy of the page buffer state.
func (m *Machine) Page() PageBuffer {
	p := m.page
	p.Data = append([]byte(nil), m.page.Data...)
	return p
}

// Streaming reports whether a Read-Data stream is in progress.
func (m *Machine) Streaming() bool {
	return m.stream.active
}

// Dropped returns the number of received frames lost to a full ring.
func (m *Machine) Dropped() uint32 {
	return m.rx.Dropped()
}

// Step runs one main loop iteration: pending flash work, queued frames,
// the comms watchdog, alerts and the idle timeout.
//
// Step returns nil while the bootloader keeps running. After the CPU was
// reset or the application started it returns ErrReset or
// ErrApplicationStarted, and after a transmit timeout a *TxTimeoutError.
// The machine is halted from then on and every later call returns the same
// error.
func (m *Machine) Step() error {
	if m.halted != nil {
		return m.halted
	}

	if m.page.ReadyToWrite {
		m.commitPage()
	}
	if m.halted == nil && m.page.ReadyToRead {
		m.loadPage()
	}

	// Flash work queued by a handler runs before the next frame is taken
	for m.halted == nil && !m.page.ReadyToWrite && !m.page.ReadyToRead {
		f, ok := m.rx.Pop()
		if !ok {
			break
		}
		m.handle(f)
	}
	if m.halted != nil {
		return m.halted
	}

	now := m.ticks.Load()

	// Abandon a transfer the host stopped driving
	if m.mode == ModeCommunicating && !m.page.ReadyToWrite && !m.page.ReadyToRead &&
		now-m.lastActivity >= m.cfg.CommsTimeout {
		m.stream = streaming{}
		m.page.release()
		m.setMode(ModeIdle)
	}

	if m.mode == ModeIdle {
		if !m.contacted && (!m.alertSent || now-m.lastAlert >= m.cfg.AlertInterval) {
			m.sendAlert(now)
		}
		if m.halted == nil && m.timeoutEnabled && now-m.lastActivity >= m.cfg.IdleTimeout {
			m.startApplication()
		}
	}

	return m.halted
}

// Run calls Step until it returns an error or ctx is done. Between steps it
// sleeps until a frame or tick arrives.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if err := m.Step(); err != nil {
			return err
		}
		if m.rx.Len() > 0 || m.page.ReadyToWrite || m.page.ReadyToRead {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.wake:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (m *Machine) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Machine) setMode(mode Mode) {
	if m.mode == ModeError || m.mode == mode {
		return
	}
	m.mode = mode
	switch mode {
	case ModeIdle:
		m.timeoutEnabled = true
		m.setLED(PatternSlow)
	case ModeCommunicating:
		m.timeoutEnabled = false
		m.setLED(PatternFast)
	case ModeError:
		m.timeoutEnabled = false
		m.setLED(PatternError)
	}
}

// settle returns to ModeIdle once no transfer is pending and restarts the
// idle timeout.
func (m *Machine) settle() {
	m.lastActivity = m.ticks.Load()
	if !m.page.busy() && !m.stream.active {
		m.setMode(ModeIdle)
	}
}

func (m *Machine) setLED(p Pattern) {
	if m.hal.LED != nil {
		m.hal.LED.SetPattern(p)
	}
}

// transmit sends f and polls for confirmation at most TxPollLimit times.
// An unconfirmed frame halts the machine in ModeError.
func (m *Machine) transmit(f protocol.Frame) error {
	m.hal.Bus.Transmit(f)
	for i := 0; i < m.cfg.TxPollLimit; i++ {
		if m.hal.Bus.TxComplete() {
			return nil
		}
	}
	err := &TxTimeoutError{Frame: f, Polls: m.cfg.TxPollLimit}
	m.setMode(ModeError)
	m.halted = err
	return err
}

func (m *Machine) reply(f protocol.Frame, err error) {
	if err != nil {
		return
	}
	_ = m.transmit(f)
}

func (m *Machine) sendAlert(now uint32) {
	m.reply(m.codec.BuildAlert())
	m.lastAlert = now
	m.alertSent = true
}

func (m *Machine) startApplication() {
	m.hal.CPU.JumpToApplication()
	m.halted = ErrApplicationStarted
}
