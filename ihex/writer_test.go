package ihex

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteThenParse(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		fill      map[uint32][]byte
		recordLen int
		start     *uint32
	}{
		{
			name: "single run",
			size: 256,
			fill: map[uint32][]byte{0x10: {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18}},
		},
		{
			name:      "sparse runs short records",
			size:      512,
			fill:      map[uint32][]byte{0x00: {0xDE, 0xAD}, 0x100: {0xBE, 0xEF}, 0x1FF: {0x42}},
			recordLen: 4,
		},
		{
			name: "run crossing 64 KiB boundary",
			size: 0x20010,
			fill: map[uint32][]byte{0xFFFC: {1, 2, 3, 4, 5, 6, 7, 8}, 0x20000: {9}},
		},
		{
			name:  "with start address",
			size:  64,
			fill:  map[uint32][]byte{0: {0x0C, 0x94}},
			start: func() *uint32 { v := uint32(0x34); return &v }(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := New(tt.size, Flash)
			for addr, data := range tt.fill {
				if err := img.Write(addr, data); err != nil {
					t.Fatal(err)
				}
			}
			if tt.start != nil {
				img.SetStartAddress(*tt.start)
			}

			var buf bytes.Buffer
			if err := Write(&buf, img, tt.recordLen); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if !strings.HasSuffix(buf.String(), ":00000001FF\n") {
				t.Errorf("output does not end with an EOF record:\n%s", buf.String())
			}

			got, err := Parse(&buf, tt.size, Flash)
			if err != nil {
				t.Fatalf("Parse(Write()) error = %v", err)
			}
			if got.AllocatedCount() != img.AllocatedCount() {
				t.Errorf("AllocatedCount() = %d, want %d", got.AllocatedCount(), img.AllocatedCount())
			}
			for addr := uint32(0); addr < uint32(tt.size); addr++ {
				wb, wok := img.At(addr)
				gb, gok := got.At(addr)
				if wb != gb || wok != gok {
					t.Fatalf("At(0x%X) = 0x%02X/%v, want 0x%02X/%v", addr, gb, gok, wb, wok)
				}
			}
			gs, gok := got.StartAddress()
			if tt.start != nil && (!gok || gs != *tt.start) {
				t.Errorf("StartAddress() = 0x%X/%v, want 0x%X", gs, gok, *tt.start)
			}
		})
	}
}

func TestWriteRecordLength(t *testing.T) {
	img := New(64, Flash)
	_ = img.Write(0, bytes.Repeat([]byte{0x55}, 40))

	var buf bytes.Buffer
	if err := Write(&buf, img, 0); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// 16 + 16 + 8 data bytes, then EOF
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], ":10000000") {
		t.Errorf("first record = %s, want 16-byte record at 0", lines[0])
	}
	if !strings.HasPrefix(lines[2], ":08002000") {
		t.Errorf("third record = %s, want 8-byte record at 0x20", lines[2])
	}
}
