package ihex

import (
	"fmt"
)

// Kind is the memory an image targets.
type Kind int

// Memory kinds.
const (
	Flash Kind = iota
	EEPROM
	RAM
)

func (k Kind) String() string {
	switch k {
	case Flash:
		return "flash"
	case EEPROM:
		return "eeprom"
	case RAM:
		return "ram"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErasedByte is the value of erased flash. Unallocated bytes are padded
// with it when transmitted.
const ErasedByte = 0xFF

// Image is an addressable byte buffer with a parallel bitmap recording which
// bytes are defined. Only allocated bytes are meaningful for writing and
// verification.
type Image struct {
	data      []byte
	allocated []bool
	kind      Kind

	start    uint32
	hasStart bool
}

// New returns an empty image of size bytes. All bytes read as ErasedByte and
// none are allocated.
func New(size int, kind Kind) *Image {
	if size < 0 {
		size = 0
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = ErasedByte
	}
	return &Image{
		data:      data,
		allocated: make([]bool, size),
		kind:      kind,
	}
}

// Size returns the image size in bytes.
func (m *Image) Size() int {
	return len(m.data)
}

// Kind returns the memory kind.
func (m *Image) Kind() Kind {
	return m.kind
}

// Set stores b at addr and marks it allocated.
func (m *Image) Set(addr uint32, b byte) error {
	if uint64(addr) >= uint64(len(m.data)) {
		return &AddressError{Address: addr, Size: len(m.data)}
	}
	m.data[addr] = b
	m.allocated[addr] = true
	return nil
}

// Write stores p starting at addr and marks every byte allocated.
// Nothing is written if any byte would fall outside the image.
func (m *Image) Write(addr uint32, p []byte) error {
	if uint64(addr)+uint64(len(p)) > uint64(len(m.data)) {
		return &AddressError{Address: addr + uint32(len(p)) - 1, Size: len(m.data)}
	}
	copy(m.data[addr:], p)
	for i := range p {
		m.allocated[int(addr)+i] = true
	}
	return nil
}

// At returns the byte at addr and whether it is allocated.
func (m *Image) At(addr uint32) (byte, bool) {
	if uint64(addr) >= uint64(len(m.data)) {
		return ErasedByte, false
	}
	return m.data[addr], m.allocated[addr]
}

// Allocated reports whether the byte at addr is defined.
func (m *Image) Allocated(addr uint32) bool {
	_, ok := m.At(addr)
	return ok
}

// AllocatedCount returns the number of defined bytes.
func (m *Image) AllocatedCount() int {
	n := 0
	for _, a := range m.allocated {
		if a {
			n++
		}
	}
	return n
}

// HighestAllocated returns the highest defined address.
// The second result is false when the image is empty.
func (m *Image) HighestAllocated() (uint32, bool) {
	for i := len(m.allocated) - 1; i >= 0; i-- {
		if m.allocated[i] {
			return uint32(i), true
		}
	}
	return 0, false
}

// PageCount returns the number of pageSize pages from address 0 up to and
// including the last page that holds an allocated byte. Trailing pages
// without allocated bytes are not counted.
func (m *Image) PageCount(pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	last, ok := m.HighestAllocated()
	if !ok {
		return 0
	}
	return int(last)/pageSize + 1
}

// Page returns a copy of size bytes starting at addr together with the
// allocation mask. Unallocated bytes, and bytes past the end of the image,
// read as ErasedByte with a false mask entry.
func (m *Image) Page(addr uint32, size int) ([]byte, []bool) {
	data := make([]byte, size)
	mask := make([]bool, size)
	for i := 0; i < size; i++ {
		a := uint64(addr) + uint64(i)
		if a < uint64(len(m.data)) && m.allocated[a] {
			data[i] = m.data[a]
			mask[i] = true
		} else {
			data[i] = ErasedByte
		}
	}
	return data, mask
}

// SetStartAddress records the entry point from a start address record.
func (m *Image) SetStartAddress(addr uint32) {
	m.start = addr
	m.hasStart = true
}

// StartAddress returns the entry point, if the file declared one.
func (m *Image) StartAddress() (uint32, bool) {
	return m.start, m.hasStart
}

// AddressError reports an access outside the declared image size.
type AddressError struct {
	Address uint32
	Size    int
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address 0x%08X outside image of %d bytes", e.Address, e.Size)
}
