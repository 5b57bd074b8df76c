package ihex

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Write serializes the allocated bytes of img as Intel-HEX.
//
// Each contiguous run of allocated bytes is split into Data records of at
// most recordLen bytes that never cross a 64 KiB boundary. An Extended
// Linear Address record precedes the first record of every 64 KiB segment
// above zero. A Start Linear Address record is emitted when the image has
// an entry point, then an End Of File record.
//
// Unallocated bytes are not written, so parsing the output yields the same
// allocated bytes but not the same padding.
func Write(w io.Writer, img *Image, recordLen int) error {
	if recordLen <= 0 || recordLen > 0xFF {
		recordLen = DefaultRecordLength
	}

	bw := bufio.NewWriter(w)
	emit := func(rec *Record) error {
		_, err := bw.WriteString(rec.String() + "\n")
		return err
	}

	var segment uint32
	size := uint32(img.Size())
	for addr := uint32(0); addr < size; {
		if !img.Allocated(addr) {
			addr++
			continue
		}

		if seg := addr >> 16; seg != segment {
			segment = seg
			if err := emit(NewRecord(RecordExtendedLinearAddress, 0,
				[]byte{byte(seg >> 8), byte(seg)})); err != nil {
				return errors.Wrap(err, "failed to write record")
			}
		}

		// Collect one run, bounded by recordLen and the segment end
		end := addr
		limit := (segment+1)<<16 - 1
		var data []byte
		for end < size && end <= limit && len(data) < recordLen && img.Allocated(end) {
			b, _ := img.At(end)
			data = append(data, b)
			end++
		}

		if err := emit(NewRecord(RecordData, uint16(addr), data)); err != nil {
			return errors.Wrap(err, "failed to write record")
		}
		addr = end
	}

	if start, ok := img.StartAddress(); ok {
		rec := NewRecord(RecordStartLinearAddress, 0,
			[]byte{byte(start >> 24), byte(start >> 16), byte(start >> 8), byte(start)})
		if err := emit(rec); err != nil {
			return errors.Wrap(err, "failed to write record")
		}
	}

	if err := emit(NewRecord(RecordEndOfFile, 0, nil)); err != nil {
		return errors.Wrap(err, "failed to write record")
	}

	return errors.Wrap(bw.Flush(), "failed to flush output")
}
