package ihex

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// RecordType is the RECTYP field of an Intel-HEX record.
type RecordType uint8

// Record types.
const (
	RecordData                   RecordType = 0x00
	RecordEndOfFile              RecordType = 0x01
	RecordExtendedSegmentAddress RecordType = 0x02
	RecordStartSegmentAddress    RecordType = 0x03
	RecordExtendedLinearAddress  RecordType = 0x04
	RecordStartLinearAddress     RecordType = 0x05
	RecordInvalid                RecordType = 0xFF
)

// Constants for record parsing.
const (
	// StartCode begins every record
	StartCode = ':'

	// RecordOverhead is the number of bytes besides DATA:
	// BYTE COUNT(1) + ADDRESS(2) + RECTYP(1) + CHECKSUM(1)
	RecordOverhead = 5

	// DefaultRecordLength is the number of data bytes per record written by Write
	DefaultRecordLength = 16
)

func (t RecordType) String() string {
	switch t {
	case RecordData:
		return "data"
	case RecordEndOfFile:
		return "end of file"
	case RecordExtendedSegmentAddress:
		return "extended segment address"
	case RecordStartSegmentAddress:
		return "start segment address"
	case RecordExtendedLinearAddress:
		return "extended linear address"
	case RecordStartLinearAddress:
		return "start linear address"
	default:
		return fmt.Sprintf("invalid (0x%02X)", uint8(t))
	}
}

// Record is one line of an Intel-HEX file.
type Record struct {
	// ByteCount is the number of data bytes
	ByteCount uint8

	// Address is the 16-bit load offset
	Address uint16

	// Type is the record type
	Type RecordType

	// Data is the record payload
	Data []byte

	// Checksum is the record checksum
	Checksum uint8
}

// wantByteCount is the fixed payload size for non-data record types.
var wantByteCount = map[RecordType]uint8{
	RecordEndOfFile:              0,
	RecordExtendedSegmentAddress: 2,
	RecordStartSegmentAddress:    4,
	RecordExtendedLinearAddress:  2,
	RecordStartLinearAddress:     4,
}

// ParseRecord parses a single record line, including the leading ':'.
//
// Record format:
//
//	:[BYTE COUNT(1)][ADDRESS(2)][RECTYP(1)][DATA(N)][CHECKSUM(1)]
//
// A record whose checksum does not match is rejected, never corrected.
func ParseRecord(line string) (*Record, error) {
	line = strings.TrimSpace(line)
	if len(line) == 0 || line[0] != StartCode {
		return nil, errors.New("record must start with ':'")
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex data")
	}
	if len(raw) < RecordOverhead {
		return nil, errors.Errorf("record too short: got %d bytes, minimum is %d", len(raw), RecordOverhead)
	}

	count := raw[0]
	if len(raw) != RecordOverhead+int(count) {
		return nil, errors.Errorf("data length mismatch: byte count %d, record carries %d",
			count, len(raw)-RecordOverhead)
	}

	checksum := raw[len(raw)-1]
	if want := Checksum(raw[:len(raw)-1]); checksum != want {
		return nil, errors.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", checksum, want)
	}

	rec := &Record{
		ByteCount: count,
		Address:   binary.BigEndian.Uint16(raw[1:3]),
		Type:      RecordType(raw[3]),
		Data:      append([]byte(nil), raw[4:4+int(count)]...),
		Checksum:  checksum,
	}

	if rec.Type != RecordData {
		want, ok := wantByteCount[rec.Type]
		if !ok {
			return nil, errors.Errorf("unrecognized record type 0x%02X", raw[3])
		}
		if count != want {
			return nil, errors.Errorf("invalid byte count %d for %s record, expected %d", count, rec.Type, want)
		}
	}

	return rec, nil
}

// NewRecord builds a record and computes its checksum.
func NewRecord(t RecordType, address uint16, data []byte) *Record {
	rec := &Record{
		ByteCount: uint8(len(data)),
		Address:   address,
		Type:      t,
		Data:      append([]byte(nil), data...),
	}
	rec.Checksum = Checksum(rec.header())
	return rec
}

// header returns all record bytes except the checksum.
func (r *Record) header() []byte {
	raw := make([]byte, 0, RecordOverhead+len(r.Data))
	raw = append(raw, r.ByteCount, byte(r.Address>>8), byte(r.Address), byte(r.Type))
	return append(raw, r.Data...)
}

// String formats the record as a line without a trailing newline.
func (r *Record) String() string {
	raw := append(r.header(), r.Checksum)
	return ":" + strings.ToUpper(hex.EncodeToString(raw))
}

// address16 returns the big-endian value of the first two data bytes.
func (r *Record) address16() uint32 {
	return uint32(binary.BigEndian.Uint16(r.Data[0:2]))
}
