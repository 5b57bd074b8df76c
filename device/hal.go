package device

import "github.com/moffa90/go-canboot/protocol"

// Flash is the program memory the bootloader writes applications into.
// Addresses are byte addresses.
type Flash interface {
	// ErasePage erases the page containing addr to 0xFF
	ErasePage(addr uint32)

	// ProgramByte writes one byte into erased flash
	ProgramByte(addr uint32, value byte)

	// ReadFlash returns the byte at addr
	ReadFlash(addr uint32) byte
}

// EEPROM holds the clean flag.
type EEPROM interface {
	Read(addr uint16, n int) []byte
	Write(addr uint16, data []byte)
}

// Bus is the CAN controller.
type Bus interface {
	// Transmit loads f into a transmit buffer and requests sending
	Transmit(f protocol.Frame)

	// TxComplete reports whether the last transmission was acknowledged
	TxComplete() bool
}

// CPU exposes the control transfers a bootloader needs. On hardware Reset
// and JumpToApplication do not return; in a simulator they return and the
// machine halts.
type CPU interface {
	DisableInterrupts()
	EnableInterrupts()
	Reset()
	JumpToApplication()
}

// Pattern is a status LED blink cadence.
type Pattern int

// LED patterns.
const (
	PatternSlow Pattern = iota
	PatternFast
	PatternError
)

func (p Pattern) String() string {
	switch p {
	case PatternSlow:
		return "slow"
	case PatternFast:
		return "fast"
	case PatternError:
		return "error"
	default:
		return "unknown"
	}
}

// LED is the status indicator.
type LED interface {
	SetPattern(p Pattern)
}

// HAL bundles the hardware a Machine drives. LED may be nil.
type HAL struct {
	Flash  Flash
	EEPROM EEPROM
	Bus    Bus
	CPU    CPU
	LED    LED
}
