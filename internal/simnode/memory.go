package simnode

import (
	"sync"
)

// Flash is NOR-like program memory: erase sets a page to 0xFF and
// programming can only clear bits.
type Flash struct {
	mu       sync.Mutex
	mem      []byte
	pageSize int

	// faults counts page programs still to corrupt
	faults int
	erases []uint32
}

// NewFlash returns erased flash of size bytes.
func NewFlash(size, pageSize int) *Flash {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &Flash{mem: mem, pageSize: pageSize}
}

// ErasePage erases the page containing addr.
func (f *Flash) ErasePage(addr uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := int(addr) / f.pageSize * f.pageSize
	for i := start; i < start+f.pageSize && i < len(f.mem); i++ {
		f.mem[i] = 0xFF
	}
	f.erases = append(f.erases, uint32(start))
}

// ProgramByte clears the bits of addr that are zero in v. A pending fault
// flips the lowest bit of the first byte of the page.
func (f *Flash) ProgramByte(addr uint32, v byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if int(addr) >= len(f.mem) {
		return
	}
	if f.faults > 0 && int(addr)%f.pageSize == 0 {
		f.faults--
		v ^= 0x01
	}
	f.mem[addr] &= v
}

// ReadFlash returns the byte at addr, or 0xFF outside the array.
func (f *Flash) ReadFlash(addr uint32) byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	if int(addr) >= len(f.mem) {
		return 0xFF
	}
	return f.mem[addr]
}

// Set overwrites a byte directly, bypassing erase rules.
func (f *Flash) Set(addr uint32, v byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem[addr] = v
}

// InjectFaults corrupts the next n page programs.
func (f *Flash) InjectFaults(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = n
}

// Bytes returns a copy of the array.
func (f *Flash) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.mem...)
}

// Erases returns the page addresses erased so far, in order.
func (f *Flash) Erases() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.erases...)
}

// EEPROM is byte-addressable persistent memory.
type EEPROM struct {
	mu  sync.Mutex
	mem []byte
}

// NewEEPROM returns erased EEPROM of size bytes.
func NewEEPROM(size int) *EEPROM {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &EEPROM{mem: mem}
}

// Read returns n bytes at addr. Bytes past the end read as 0xFF.
func (e *EEPROM) Read(addr uint16, n int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]byte, n)
	for i := range out {
		a := int(addr) + i
		if a < len(e.mem) {
			out[i] = e.mem[a]
		} else {
			out[i] = 0xFF
		}
	}
	return out
}

// Write stores data at addr. Bytes past the end are discarded.
func (e *EEPROM) Write(addr uint16, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, b := range data {
		if a := int(addr) + i; a < len(e.mem) {
			e.mem[a] = b
		}
	}
}
