package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Frame is a classical CAN frame with an 11-bit identifier.
//
// Only the first Len bytes of Data are meaningful. Bytes past Len are never
// interpreted by this package.
type Frame struct {
	// ID is the 11-bit CAN identifier: message type in bits 8..10, node in bits 0..7
	ID uint16

	// Len is the data length code, 0..8
	Len uint8

	// Data holds the payload
	Data [MaxDataLength]byte
}

// MakeID builds a CAN identifier from a message type and a node ID.
func MakeID(t MessageType, node uint8) uint16 {
	return uint16(t)<<8 | uint16(node)
}

// NewFrame constructs a frame with the given identifier and payload.
// Returns an error if the payload is longer than MaxDataLength.
func NewFrame(id uint16, payload []byte) (Frame, error) {
	var f Frame
	if len(payload) > MaxDataLength {
		return f, fmt.Errorf("payload length %d exceeds maximum %d bytes", len(payload), MaxDataLength)
	}
	if id > MaxStandardID {
		return f, fmt.Errorf("identifier 0x%X exceeds 11 bits", id)
	}
	f.ID = id
	f.Len = uint8(len(payload))
	copy(f.Data[:], payload)
	return f, nil
}

// Type returns the message type carried in the identifier.
func (f Frame) Type() MessageType {
	return MessageType(f.ID >> 8 & 0x7)
}

// Node returns the node ID carried in the identifier.
func (f Frame) Node() uint8 {
	return uint8(f.ID)
}

// Payload returns the valid portion of Data.
func (f Frame) Payload() []byte {
	n := f.Len
	if n > MaxDataLength {
		n = MaxDataLength
	}
	return f.Data[:n]
}

// Validate returns an error if the frame violates the classical CAN limits.
func (f Frame) Validate() error {
	if f.Len > MaxDataLength {
		return fmt.Errorf("invalid data length %d", f.Len)
	}
	if f.ID > MaxStandardID {
		return fmt.Errorf("identifier 0x%X exceeds 11 bits", f.ID)
	}
	return nil
}

// MarshalBinary encodes the frame into the fixed EncodedFrameSize layout:
//
//	[ID_H][ID_L][LEN][DATA(8)]
//
// Data bytes past Len are written as zero.
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, EncodedFrameSize)
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Len
	copy(buf[FrameHeaderSize:], f.Data[:f.Len])
	return buf, nil
}

// UnmarshalBinary decodes a frame produced by MarshalBinary.
func (f *Frame) UnmarshalBinary(data []byte) error {
	decoded, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}

// DecodeFrame decodes raw bytes into a Frame.
//
// A length code above MaxDataLength is clamped to MaxDataLength: some CAN
// controllers report a larger DLC than the frame carries. Truncated input is
// reported as a *ProtocolError, never a panic.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if len(raw) < FrameHeaderSize {
		return f, &ProtocolError{
			Operation: "decode frame",
			Reason:    fmt.Sprintf("truncated header: got %d bytes, need %d", len(raw), FrameHeaderSize),
		}
	}

	f.ID = binary.BigEndian.Uint16(raw[0:2]) & MaxStandardID
	n := raw[2]
	if n > MaxDataLength {
		n = MaxDataLength
	}
	if len(raw) < FrameHeaderSize+int(n) {
		return Frame{}, &ProtocolError{
			Operation: "decode frame",
			Reason: fmt.Sprintf("truncated payload: got %d bytes, need %d",
				len(raw)-FrameHeaderSize, n),
		}
	}
	f.Len = n
	copy(f.Data[:], raw[FrameHeaderSize:FrameHeaderSize+int(n)])
	return f, nil
}

// String formats the frame as "ID#DATA", the candump notation.
func (f Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%03X#", f.ID)
	for _, v := range f.Payload() {
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}
