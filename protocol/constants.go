package protocol

// ProtocolVersion is the CAN bootloader protocol version implemented by this library.
const ProtocolVersion = "2.1"

// Frame layout constants.
const (
	// MaxDataLength is the largest payload a classical CAN frame can carry
	MaxDataLength = 8

	// EncodedFrameSize is the size of a marshaled Frame:
	// ID(2) + LEN(1) + DATA(8)
	EncodedFrameSize = 11

	// FrameHeaderSize is the number of bytes that precede the payload in an encoded frame
	FrameHeaderSize = 3

	// MaxStandardID is the largest 11-bit CAN identifier
	MaxStandardID = 0x7FF
)

// Message types. The message type occupies the upper three bits of the
// 11-bit CAN identifier; the low byte is the node ID when AddressByID is used.
const (
	// MsgAlert is sent unsolicited by an idle bootloader to announce itself
	MsgAlert MessageType = 0x1

	// MsgReset restarts the node, either into the bootloader or the application
	MsgReset MessageType = 0x2

	// MsgGetInfo requests the device signature and bootloader version
	MsgGetInfo MessageType = 0x3

	// MsgWriteMemory arms the page buffer for a write
	MsgWriteMemory MessageType = 0x4

	// MsgWriteData carries one chunk of page data
	MsgWriteData MessageType = 0x5

	// MsgReadMemory requests a page read-back
	MsgReadMemory MessageType = 0x6

	// MsgReadData carries one chunk of read-back data (device to host),
	// or acknowledges a chunk (host to device, empty payload)
	MsgReadData MessageType = 0x7
)

// Confirmation bytes carried in single-byte status replies.
const (
	// StatusFailure reports that a command was rejected
	StatusFailure = 0x00

	// StatusSuccess reports that a command was accepted
	StatusSuccess = 0x01
)

// Reset payload values.
const (
	// ResetStayInBootloader keeps the node in the bootloader after reset
	ResetStayInBootloader = 0x00

	// ResetRunApplication starts the application after reset
	ResetRunApplication = 0x01
)

// Payload sizes, excluding the legacy target byte.
const (
	// MemoryRequestSize is the payload size of Write-Memory and Read-Memory:
	// ADDR(4) + LEN(2)
	MemoryRequestSize = 6

	// InfoResponseSize is the payload size of the Get-Info reply:
	// SIGNATURE(4) + VERSION(2)
	InfoResponseSize = 6

	// StatusResponseSize is the payload size of a confirmation reply
	StatusResponseSize = 1
)

// BroadcastNode is the node ID that matches every node.
const BroadcastNode = 0xFF

// CleanFlagValue marks that the application shut down cleanly and the
// bootloader should start it immediately.
const CleanFlagValue = 0xAFAF

// DirtyFlagValue marks that the bootloader should wait for firmware.
const DirtyFlagValue = 0x0000
