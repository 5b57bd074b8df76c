package usbbridge

import (
	"fmt"

	"github.com/sigurn/crc16"
)

// PacketType identifies the contents of a bridge packet.
type PacketType uint8

// Packet types.
const (
	// PacketFrame carries one encoded protocol.Frame
	PacketFrame PacketType = 0x01

	// PacketAlive is the housekeeping ping exchanged in both directions
	PacketAlive PacketType = 0x02

	// PacketOverflow is sent by the adapter when it dropped received frames
	PacketOverflow PacketType = 0x03
)

func (t PacketType) String() string {
	switch t {
	case PacketFrame:
		return "FRAME"
	case PacketAlive:
		return "ALIVE"
	case PacketOverflow:
		return "OVERFLOW"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// Packet layout constants.
//
//	[SYNC][TYPE][LEN][PAYLOAD...][CRC_H][CRC_L]
//
// The CRC is CRC-16/CCITT-FALSE over TYPE, LEN and PAYLOAD.
const (
	SyncByte       = 0xA5
	HeaderSize     = 3
	TrailerSize    = 2
	MaxPayloadSize = 32
)

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Packet is one unit exchanged with the adapter over the bulk endpoints.
type Packet struct {
	Type    PacketType
	Payload []byte
}

// Encode serializes p with sync byte and CRC.
func (p Packet) Encode() ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload length %d exceeds maximum %d bytes", len(p.Payload), MaxPayloadSize)
	}
	buf := make([]byte, 0, HeaderSize+len(p.Payload)+TrailerSize)
	buf = append(buf, SyncByte, byte(p.Type), byte(len(p.Payload)))
	buf = append(buf, p.Payload...)
	crc := crc16.Checksum(buf[1:], crcTable)
	return append(buf, byte(crc>>8), byte(crc)), nil
}

// Decoder reassembles packets from a byte stream. Bytes before a sync byte
// are skipped, and a packet with a bad CRC is dropped by resynchronising on
// the next sync byte.
type Decoder struct {
	buf     []byte
	dropped int
}

// Feed appends p to the stream and calls fn for every complete packet.
func (d *Decoder) Feed(p []byte, fn func(Packet)) {
	d.buf = append(d.buf, p...)

	for {
		// Find sync
		i := 0
		for i < len(d.buf) && d.buf[i] != SyncByte {
			i++
		}
		d.buf = d.buf[i:]
		if len(d.buf) < HeaderSize {
			return
		}

		n := int(d.buf[2])
		if n > MaxPayloadSize {
			d.skip()
			continue
		}
		total := HeaderSize + n + TrailerSize
		if len(d.buf) < total {
			return
		}

		want := uint16(d.buf[total-2])<<8 | uint16(d.buf[total-1])
		if crc16.Checksum(d.buf[1:HeaderSize+n], crcTable) != want {
			d.skip()
			continue
		}

		pkt := Packet{
			Type:    PacketType(d.buf[1]),
			Payload: append([]byte(nil), d.buf[HeaderSize:HeaderSize+n]...),
		}
		d.buf = d.buf[total:]
		fn(pkt)
	}
}

// Dropped returns the number of packets discarded for a bad CRC or length.
func (d *Decoder) Dropped() int {
	return d.dropped
}

func (d *Decoder) skip() {
	d.dropped++
	d.buf = d.buf[1:]
}
