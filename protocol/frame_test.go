package protocol

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		id      uint16
		payload []byte
	}{
		{name: "empty payload", id: MakeID(MsgReadData, 5), payload: nil},
		{name: "one byte", id: MakeID(MsgReset, 1), payload: []byte{0x01}},
		{name: "seven bytes", id: MakeID(MsgWriteData, 0), payload: []byte{1, 2, 3, 4, 5, 6, 7}},
		{name: "eight bytes", id: MaxStandardID, payload: []byte{0xFF, 0, 0xFF, 0, 0xAA, 0x55, 0x01, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFrame(tt.id, tt.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			raw, err := f.MarshalBinary()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(raw) != EncodedFrameSize {
				t.Errorf("encoded size = %d, want %d", len(raw), EncodedFrameSize)
			}

			got, err := DecodeFrame(raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != f {
				t.Errorf("DecodeFrame(MarshalBinary()) = %v, want %v", got, f)
			}
		})
	}
}

func TestFrameRoundTripAllLengths(t *testing.T) {
	for n := 0; n <= MaxDataLength; n++ {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(0xA0 + i)
		}
		f, err := NewFrame(MakeID(MsgWriteData, byte(n)), payload)
		if err != nil {
			t.Fatalf("len %d: unexpected error: %v", n, err)
		}
		raw, _ := f.MarshalBinary()
		var got Frame
		if err := got.UnmarshalBinary(raw); err != nil {
			t.Fatalf("len %d: unexpected error: %v", n, err)
		}
		if got != f {
			t.Errorf("len %d: got %v, want %v", n, got, f)
		}
	}
}

func TestDecodeFrameClampsLength(t *testing.T) {
	raw := []byte{0x05, 0x03, 0x0F, 1, 2, 3, 4, 5, 6, 7, 8}

	f, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Len != MaxDataLength {
		t.Errorf("Len = %d, want %d", f.Len, MaxDataLength)
	}
	if !bytes.Equal(f.Payload(), raw[3:]) {
		t.Errorf("Payload = % X, want % X", f.Payload(), raw[3:])
	}
}

func TestDecodeFrameTruncated(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		errMsg string
	}{
		{name: "nil", raw: nil, errMsg: "truncated header"},
		{name: "id only", raw: []byte{0x01, 0x00}, errMsg: "truncated header"},
		{name: "short payload", raw: []byte{0x01, 0x00, 0x04, 0xAA}, errMsg: "truncated payload"},
		{name: "clamped length still short", raw: []byte{0x01, 0x00, 0xFF, 1, 2, 3}, errMsg: "truncated payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.raw)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errMsg)
			}
			if !IsProtocolError(err) {
				t.Errorf("error type = %T, want *ProtocolError", err)
			}
			if !bytes.Contains([]byte(err.Error()), []byte(tt.errMsg)) {
				t.Errorf("error = %v, want substring %q", err, tt.errMsg)
			}
		})
	}
}

func TestNewFrameValidation(t *testing.T) {
	if _, err := NewFrame(0x100, make([]byte, 9)); err == nil {
		t.Error("expected error for 9-byte payload")
	}
	if _, err := NewFrame(0x800, nil); err == nil {
		t.Error("expected error for 12-bit identifier")
	}
	if err := (Frame{Len: 9}).Validate(); err == nil {
		t.Error("expected Validate error for Len 9")
	}
}

func TestFrameTypeAndNode(t *testing.T) {
	f, _ := NewFrame(MakeID(MsgReadMemory, 0x2A), nil)
	if f.Type() != MsgReadMemory {
		t.Errorf("Type = %v, want %v", f.Type(), MsgReadMemory)
	}
	if f.Node() != 0x2A {
		t.Errorf("Node = 0x%02X, want 0x2A", f.Node())
	}
	if f.String() != "62A#" {
		t.Errorf("String = %q, want %q", f.String(), "62A#")
	}
}

func BenchmarkDecodeFrame(b *testing.B) {
	f, _ := NewFrame(MakeID(MsgWriteData, 1), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	raw, _ := f.MarshalBinary()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DecodeFrame(raw)
	}
}
