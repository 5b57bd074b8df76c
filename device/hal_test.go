package device

import (
	"github.com/moffa90/go-canboot/protocol"
)

// mockFlash is an in-memory flash that records erase and program calls.
type mockFlash struct {
	mem      []byte
	pageSize int
	erased   []uint32
	programs int
}

func newMockFlash(size, pageSize int) *mockFlash {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &mockFlash{mem: mem, pageSize: pageSize}
}

func (f *mockFlash) ErasePage(addr uint32) {
	start := int(addr) / f.pageSize * f.pageSize
	for i := start; i < start+f.pageSize && i < len(f.mem); i++ {
		f.mem[i] = 0xFF
	}
	f.erased = append(f.erased, addr)
}

func (f *mockFlash) ProgramByte(addr uint32, v byte) {
	f.mem[addr] &= v
	f.programs++
}

func (f *mockFlash) ReadFlash(addr uint32) byte {
	return f.mem[addr]
}

type mockEEPROM struct {
	mem [1024]byte
}

func (e *mockEEPROM) Read(addr uint16, n int) []byte {
	return append([]byte(nil), e.mem[addr:int(addr)+n]...)
}

func (e *mockEEPROM) Write(addr uint16, data []byte) {
	copy(e.mem[addr:], data)
}

// mockBus records transmitted frames. When stuck is set TxComplete never
// reports success.
type mockBus struct {
	sent  []protocol.Frame
	stuck bool
	polls int
}

func (b *mockBus) Transmit(f protocol.Frame) {
	b.sent = append(b.sent, f)
}

func (b *mockBus) TxComplete() bool {
	b.polls++
	return !b.stuck
}

func (b *mockBus) take() []protocol.Frame {
	out := b.sent
	b.sent = nil
	return out
}

type mockCPU struct {
	irqDisabled   int
	irqEnabled    int
	resets        int
	jumps         int
	disabledDepth int
	maxDepth      int
}

func (c *mockCPU) DisableInterrupts() {
	c.irqDisabled++
	c.disabledDepth++
	if c.disabledDepth > c.maxDepth {
		c.maxDepth = c.disabledDepth
	}
}

func (c *mockCPU) EnableInterrupts() {
	c.irqEnabled++
	c.disabledDepth--
}

func (c *mockCPU) Reset()             { c.resets++ }
func (c *mockCPU) JumpToApplication() { c.jumps++ }

type mockLED struct {
	patterns []Pattern
}

func (l *mockLED) SetPattern(p Pattern) {
	l.patterns = append(l.patterns, p)
}

func (l *mockLED) last() Pattern {
	if len(l.patterns) == 0 {
		return -1
	}
	return l.patterns[len(l.patterns)-1]
}

type testRig struct {
	m      *Machine
	flash  *mockFlash
	eeprom *mockEEPROM
	bus    *mockBus
	cpu    *mockCPU
	led    *mockLED
	codec  protocol.Codec
}

func newRig(opts ...Option) *testRig {
	r := &testRig{
		flash:  newMockFlash(0x8000, DefaultPageSize),
		eeprom: &mockEEPROM{},
		bus:    &mockBus{},
		cpu:    &mockCPU{},
		led:    &mockLED{},
	}
	r.m = New(HAL{Flash: r.flash, EEPROM: r.eeprom, Bus: r.bus, CPU: r.cpu, LED: r.led}, opts...)
	cfg := r.m.Config()
	r.codec = protocol.NewCodec(cfg.Node, cfg.Addressing)
	return r
}

// send delivers a host frame and runs the main loop until the machine has
// no queued work.
func (r *testRig) send(f protocol.Frame, err error) error {
	if err != nil {
		panic(err)
	}
	r.m.OnReceive(f)
	for i := 0; i < 4; i++ {
		if err := r.m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// replies returns and clears the frames sent since the last call, alerts
// excluded.
func (r *testRig) replies() []protocol.Frame {
	var out []protocol.Frame
	for _, f := range r.bus.take() {
		if f.Type() != protocol.MsgAlert {
			out = append(out, f)
		}
	}
	return out
}
