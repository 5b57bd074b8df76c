package device

import (
	"encoding/binary"

	"github.com/moffa90/go-canboot/protocol"
)

// ReadCleanFlag returns the 2-byte clean flag stored at addr.
func ReadCleanFlag(e EEPROM, addr uint16) uint16 {
	b := e.Read(addr, 2)
	if len(b) < 2 {
		return protocol.DirtyFlagValue
	}
	return binary.BigEndian.Uint16(b)
}

// WriteCleanFlag stores flag at addr.
func WriteCleanFlag(e EEPROM, addr uint16, flag uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], flag)
	e.Write(addr, b[:])
}

// Boot makes the power-on decision. A clean flag means the application
// shut down cleanly: the flag is marked dirty, so a crash before the next
// clean shutdown lands back in the bootloader, and control passes to the
// application. Boot then returns ErrApplicationStarted. Otherwise the
// bootloader stays resident and Boot returns nil.
func (m *Machine) Boot() error {
	if ReadCleanFlag(m.hal.EEPROM, m.cfg.CleanFlagAddress) != protocol.CleanFlagValue {
		return nil
	}
	WriteCleanFlag(m.hal.EEPROM, m.cfg.CleanFlagAddress, protocol.DirtyFlagValue)
	m.startApplication()
	return m.halted
}
