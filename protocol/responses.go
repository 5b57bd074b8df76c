package protocol

import (
	"encoding/binary"
	"fmt"
)

// Target returns the node a host to device frame is addressed to.
// In AddressInPayload mode a frame without a target byte is malformed.
func (c Codec) Target(f Frame) (uint8, error) {
	if c.Addressing == AddressInPayload {
		if f.Len == 0 {
			return 0, &ProtocolError{
				Operation: "parse " + f.Type().String(),
				Reason:    "missing target byte",
			}
		}
		return f.Data[0], nil
	}
	return f.Node(), nil
}

// Addressed reports whether a host to device frame is meant for this codec's
// node. Broadcast frames are addressed to every node.
func (c Codec) Addressed(f Frame) bool {
	target, err := c.Target(f)
	if err != nil {
		return false
	}
	return target == c.Node || target == BroadcastNode
}

// Args returns the command arguments of a host to device frame, without the
// target byte.
func (c Codec) Args(f Frame) []byte {
	p := f.Payload()
	if c.Addressing == AddressInPayload && len(p) > 0 {
		return p[1:]
	}
	return p
}

// FromNode reports whether a device to host frame of type t comes from this
// codec's node. Replies in AddressInPayload mode carry no node, so only the
// alert can be attributed.
func (c Codec) FromNode(f Frame, t MessageType) bool {
	if f.Type() != t {
		return false
	}
	if c.Addressing == AddressInPayload {
		if t == MsgAlert {
			return f.Len >= 1 && f.Data[0] == c.Node
		}
		return f.ID == c.ID(t)
	}
	return f.ID == c.ID(t)
}

// ParseStatus parses a one-byte confirmation reply.
// Returns true for StatusSuccess.
func ParseStatus(data []byte) (bool, error) {
	if len(data) != StatusResponseSize {
		return false, &ProtocolError{
			Operation: "parse status",
			Reason:    fmt.Sprintf("got %d bytes, expected %d", len(data), StatusResponseSize),
		}
	}
	switch data[0] {
	case StatusSuccess:
		return true, nil
	case StatusFailure:
		return false, nil
	default:
		return false, &ProtocolError{
			Operation: "parse status",
			Reason:    fmt.Sprintf("unknown status byte 0x%02X", data[0]),
		}
	}
}

// ParseInfo parses the Get-Info reply.
//
// Data format (InfoResponseSize bytes):
//
//	[SIG3][SIG2][SIG1][SIG0][VER_H][VER_L]
func ParseInfo(data []byte) (*DeviceInfo, error) {
	if len(data) != InfoResponseSize {
		return nil, &ProtocolError{
			Operation: "parse GET_INFO",
			Reason:    fmt.Sprintf("got %d bytes, expected %d", len(data), InfoResponseSize),
		}
	}

	sig := binary.BigEndian.Uint32(data[0:4])
	return &DeviceInfo{
		Name:         DeviceName(sig),
		Signature:    sig,
		VersionMajor: data[4],
		VersionMinor: data[5],
	}, nil
}

// ParseMemoryRequest parses the arguments of Write-Memory or Read-Memory.
//
// Data format (MemoryRequestSize bytes):
//
//	[ADDR3][ADDR2][ADDR1][ADDR0][LEN_H][LEN_L]
func ParseMemoryRequest(args []byte) (MemoryRequest, error) {
	if len(args) != MemoryRequestSize {
		return MemoryRequest{}, &ProtocolError{
			Operation: "parse memory request",
			Reason:    fmt.Sprintf("got %d bytes, expected %d", len(args), MemoryRequestSize),
		}
	}
	return MemoryRequest{
		PageAddress: binary.BigEndian.Uint32(args[0:4]),
		Length:      binary.BigEndian.Uint16(args[4:6]),
	}, nil
}

// ParseReset parses the Reset argument. Returns true when the application
// should be started.
func ParseReset(args []byte) (bool, error) {
	if len(args) != 1 {
		return false, &ProtocolError{
			Operation: "parse RESET",
			Reason:    fmt.Sprintf("got %d bytes, expected 1", len(args)),
		}
	}
	return args[0] == ResetRunApplication, nil
}
