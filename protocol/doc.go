// Package protocol implements the CAN bootloader wire protocol.
//
// This package provides the frame codec and the command builders and reply
// parsers shared by the host uploader and the device state machine.
//
// # Protocol Overview
//
// Every message is one classical CAN frame with an 11-bit identifier:
//
//	ID:   [TYPE(3 bits)][NODE(8 bits)]
//	DATA: up to 8 bytes
//
// Message types:
//   - ALERT (0x1):        device announces itself while idle
//   - RESET (0x2):        [RUN_APP] -> [SUCCESS], then the device resets
//   - GET_INFO (0x3):     -> [SIG3 SIG2 SIG1 SIG0 VER_H VER_L]
//   - WRITE_MEMORY (0x4): [ADDR(4) LEN(2)] -> [SUCCESS]
//   - WRITE_DATA (0x5):   [DATA...] -> [SUCCESS] per chunk
//   - READ_MEMORY (0x6):  [ADDR(4) LEN(2)] -> [SUCCESS], then a READ_DATA stream
//   - READ_DATA (0x7):    device sends [DATA(<=8)], host acknowledges with an empty frame
//
// # Addressing
//
// Two addressing modes are supported. AddressByID puts the node in the low
// byte of the identifier so nodes and hosts can filter in hardware.
// AddressInPayload is the older layout: all nodes share one identifier per
// message type and byte 0 of every host to device payload is the target node,
// which leaves 7 bytes per WRITE_DATA chunk.
//
//	codec := protocol.NewCodec(5, protocol.AddressByID)
//	frame, err := codec.BuildWriteMemory(0x0080, 0x80)
//
// # Frame Encoding
//
// Frames marshal to a fixed 11-byte layout for transports that carry CAN
// frames over a byte stream:
//
//	[ID_H][ID_L][LEN][DATA(8)]
//
// DecodeFrame never panics on short input and clamps an oversized length
// code to 8.
//
// # Error Handling
//
// Malformed frames are reported as *ProtocolError. A device answering with a
// failure confirmation is reported by the host as *StatusError.
package protocol
