package ihex

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ParseError reports a record that could not be loaded. A corrupted image is
// never accepted partially.
type ParseError struct {
	// Line is the 1-based line number of the record
	Line int

	// Err is the underlying failure
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReadFile parses an Intel-HEX file into an image of size bytes.
//
// Example:
//
//	img, err := ihex.ReadFile("firmware.hex", 32*1024, ihex.Flash)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d bytes defined\n", img.AllocatedCount())
func ReadFile(path string, size int, kind Kind) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer func() { _ = f.Close() }()

	return Parse(f, size, kind)
}

// Parse reads Intel-HEX records from r line by line.
//
// A running 32-bit base address is maintained from Extended Segment Address
// (base = value << 4) and Extended Linear Address (base = value << 16)
// records. Data bytes land at base + record address and are marked
// allocated. Parsing stops at the End Of File record.
//
// A checksum failure, an address outside the image, or an unrecognized
// record type fails the whole parse.
func Parse(r io.Reader, size int, kind Kind) (*Image, error) {
	img := New(size, kind)
	scanner := bufio.NewScanner(r)

	var base uint32
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Skip empty lines
		if len(line) == 0 || line == "\r" {
			continue
		}

		rec, err := ParseRecord(line)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Err: err}
		}

		switch rec.Type {
		case RecordData:
			addr := base + uint32(rec.Address)
			if err := img.Write(addr, rec.Data); err != nil {
				return nil, &ParseError{Line: lineNum, Err: err}
			}
		case RecordEndOfFile:
			return img, nil
		case RecordExtendedSegmentAddress:
			base = rec.address16() << 4
		case RecordExtendedLinearAddress:
			base = rec.address16() << 16
		case RecordStartSegmentAddress:
			cs := rec.address16()
			ip := uint32(rec.Data[2])<<8 | uint32(rec.Data[3])
			img.SetStartAddress(cs<<4 + ip)
		case RecordStartLinearAddress:
			img.SetStartAddress(uint32(rec.Data[0])<<24 | uint32(rec.Data[1])<<16 |
				uint32(rec.Data[2])<<8 | uint32(rec.Data[3]))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}

	return img, nil
}
