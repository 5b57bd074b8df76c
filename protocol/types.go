package protocol

import "fmt"

// MessageType identifies a bootloader command. It is carried in the upper
// bits of the CAN identifier.
type MessageType uint8

// String returns the command name.
func (m MessageType) String() string {
	switch m {
	case MsgAlert:
		return "ALERT"
	case MsgReset:
		return "RESET"
	case MsgGetInfo:
		return "GET_INFO"
	case MsgWriteMemory:
		return "WRITE_MEMORY"
	case MsgWriteData:
		return "WRITE_DATA"
	case MsgReadMemory:
		return "READ_MEMORY"
	case MsgReadData:
		return "READ_DATA"
	default:
		return fmt.Sprintf("MSG(0x%X)", uint8(m))
	}
}

// Valid reports whether m is a known message type.
func (m MessageType) Valid() bool {
	return m >= MsgAlert && m <= MsgReadData
}

// Addressing selects where the target node ID travels.
type Addressing int

const (
	// AddressByID carries the node ID in the low byte of the CAN identifier.
	// Nodes filter on the identifier and payloads carry no target byte.
	AddressByID Addressing = iota

	// AddressInPayload carries the node ID as byte 0 of every host to device
	// payload on a shared identifier. Kept for nodes running older firmware.
	AddressInPayload
)

// String returns the name used in transport options.
func (a Addressing) String() string {
	switch a {
	case AddressByID:
		return "id"
	case AddressInPayload:
		return "payload"
	default:
		return fmt.Sprintf("addressing(%d)", int(a))
	}
}

// ParseAddressing converts an option value into an Addressing.
func ParseAddressing(s string) (Addressing, error) {
	switch s {
	case "", "id":
		return AddressByID, nil
	case "payload", "legacy":
		return AddressInPayload, nil
	default:
		return 0, fmt.Errorf("unknown addressing mode %q (want id or payload)", s)
	}
}

// DeviceInfo contains bootloader identification information.
// Returned by the Get-Info command.
type DeviceInfo struct {
	// Name is the part name looked up from the signature, or "unknown"
	Name string

	// Signature is the 4-byte device signature
	Signature uint32

	// VersionMajor is the bootloader major version
	VersionMajor uint8

	// VersionMinor is the bootloader minor version
	VersionMinor uint8
}

// String formats the info for log output.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (signature 0x%08X, bootloader %d.%d)",
		d.Name, d.Signature, d.VersionMajor, d.VersionMinor)
}

// MemoryRequest is the payload of Write-Memory and Read-Memory.
type MemoryRequest struct {
	// PageAddress is the flash address of the page
	PageAddress uint32

	// Length is the number of bytes to transfer
	Length uint16
}

// knownSignatures maps device signatures to part names.
var knownSignatures = map[uint32]string{
	0x001E9587: "ATmega32U4",
	0x001E950F: "ATmega328P",
	0x001E9514: "ATmega328",
	0x001E9705: "ATmega1284P",
	0x001E9781: "AT90CAN128",
	0x001E9581: "AT90CAN32",
	0x001E9681: "AT90CAN64",
	0x001E9484: "ATmega16M1",
	0x001E9584: "ATmega32M1",
	0x001E9684: "ATmega64M1",
	0x10016418: "STM32F103",
	0x10036410: "STM32F103xB",
	0x20016430: "STM32F103xG",
	0x10006413: "STM32F405",
	0x1000641F: "STM32F072",
	0x284E0000: "ATSAMC21",
}

// DeviceName returns the part name for a signature, or "unknown".
func DeviceName(signature uint32) string {
	if name, ok := knownSignatures[signature]; ok {
		return name
	}
	return "unknown"
}
