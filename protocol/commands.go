package protocol

import (
	"encoding/binary"
	"fmt"
)

// Codec builds and interprets frames for one node under one addressing mode.
// Both the host and the device use a Codec so the two sides can never
// disagree on payload layout.
type Codec struct {
	// Addressing selects where the node ID travels
	Addressing Addressing

	// Node is the node ID of the bootloader being addressed
	Node uint8
}

// NewCodec returns a Codec for the given node and addressing mode.
func NewCodec(node uint8, addressing Addressing) Codec {
	return Codec{Addressing: addressing, Node: node}
}

// ID returns the CAN identifier used for message type t.
func (c Codec) ID(t MessageType) uint16 {
	if c.Addressing == AddressInPayload {
		return MakeID(t, 0)
	}
	return MakeID(t, c.Node)
}

// DataCapacity is the number of page bytes one Write-Data frame carries.
func (c Codec) DataCapacity() int {
	if c.Addressing == AddressInPayload {
		return MaxDataLength - 1
	}
	return MaxDataLength
}

// command builds a host to device frame, prefixing the target byte in
// AddressInPayload mode.
func (c Codec) command(t MessageType, args ...byte) (Frame, error) {
	payload := make([]byte, 0, MaxDataLength)
	if c.Addressing == AddressInPayload {
		payload = append(payload, c.Node)
	}
	payload = append(payload, args...)
	return NewFrame(c.ID(t), payload)
}

// reply builds a device to host frame. Replies never carry a target byte.
func (c Codec) reply(t MessageType, data ...byte) (Frame, error) {
	return NewFrame(c.ID(t), data)
}

// BuildReset constructs a Reset command.
//
// Payload:
//
//	[RUN_APP]
func (c Codec) BuildReset(runApp bool) (Frame, error) {
	mode := byte(ResetStayInBootloader)
	if runApp {
		mode = ResetRunApplication
	}
	return c.command(MsgReset, mode)
}

// BuildGetInfo constructs a Get-Info command. It has no arguments.
func (c Codec) BuildGetInfo() (Frame, error) {
	return c.command(MsgGetInfo)
}

// BuildWriteMemory constructs a Write-Memory command that arms the device page
// buffer for length bytes at pageAddress.
//
// Payload:
//
//	[ADDR3][ADDR2][ADDR1][ADDR0][LEN_H][LEN_L]
func (c Codec) BuildWriteMemory(pageAddress uint32, length uint16) (Frame, error) {
	return c.command(MsgWriteMemory, memoryArgs(pageAddress, length)...)
}

// BuildReadMemory constructs a Read-Memory command. Same layout as Write-Memory.
func (c Codec) BuildReadMemory(pageAddress uint32, length uint16) (Frame, error) {
	return c.command(MsgReadMemory, memoryArgs(pageAddress, length)...)
}

// BuildWriteData constructs one Write-Data chunk.
// The chunk must hold between 1 and DataCapacity bytes.
func (c Codec) BuildWriteData(chunk []byte) (Frame, error) {
	if len(chunk) == 0 {
		return Frame{}, fmt.Errorf("data cannot be empty")
	}
	if len(chunk) > c.DataCapacity() {
		return Frame{}, fmt.Errorf("data length %d exceeds maximum %d bytes", len(chunk), c.DataCapacity())
	}
	return c.command(MsgWriteData, chunk...)
}

// BuildReadDataAck constructs the bare acknowledgement that asks the device
// for the next Read-Data chunk.
func (c Codec) BuildReadDataAck() (Frame, error) {
	return c.command(MsgReadData)
}

// BuildAlert constructs the unsolicited announcement an idle bootloader
// broadcasts.
//
// Payload in AddressInPayload mode:
//
//	[NODE]
func (c Codec) BuildAlert() (Frame, error) {
	if c.Addressing == AddressInPayload {
		return c.reply(MsgAlert, c.Node)
	}
	return c.reply(MsgAlert)
}

// BuildStatus constructs a one-byte confirmation reply for command t.
func (c Codec) BuildStatus(t MessageType, ok bool) (Frame, error) {
	status := byte(StatusFailure)
	if ok {
		status = StatusSuccess
	}
	return c.reply(t, status)
}

// BuildInfo constructs the Get-Info reply.
//
// Payload:
//
//	[SIG3][SIG2][SIG1][SIG0][VER_H][VER_L]
func (c Codec) BuildInfo(signature uint32, major, minor uint8) (Frame, error) {
	data := make([]byte, InfoResponseSize)
	binary.BigEndian.PutUint32(data[0:4], signature)
	data[4] = major
	data[5] = minor
	return c.reply(MsgGetInfo, data...)
}

// BuildReadDataChunk constructs one Read-Data chunk of up to 8 bytes.
func (c Codec) BuildReadDataChunk(chunk []byte) (Frame, error) {
	if len(chunk) == 0 {
		return Frame{}, fmt.Errorf("data cannot be empty")
	}
	return c.reply(MsgReadData, chunk...)
}

func memoryArgs(pageAddress uint32, length uint16) []byte {
	args := make([]byte, MemoryRequestSize)
	binary.BigEndian.PutUint32(args[0:4], pageAddress)
	binary.BigEndian.PutUint16(args[4:6], length)
	return args
}
