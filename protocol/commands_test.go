package protocol

import (
	"bytes"
	"testing"
)

func TestCodecID(t *testing.T) {
	byID := NewCodec(0x05, AddressByID)
	if got := byID.ID(MsgWriteMemory); got != 0x405 {
		t.Errorf("ID = 0x%03X, want 0x405", got)
	}

	legacy := NewCodec(0x05, AddressInPayload)
	if got := legacy.ID(MsgWriteMemory); got != 0x400 {
		t.Errorf("legacy ID = 0x%03X, want 0x400", got)
	}
}

func TestBuildWriteMemory(t *testing.T) {
	tests := []struct {
		name        string
		addressing  Addressing
		wantPayload []byte
	}{
		{
			name:        "address by id",
			addressing:  AddressByID,
			wantPayload: []byte{0x00, 0x01, 0x02, 0x80, 0x00, 0x80},
		},
		{
			name:        "address in payload",
			addressing:  AddressInPayload,
			wantPayload: []byte{0x07, 0x00, 0x01, 0x02, 0x80, 0x00, 0x80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCodec(0x07, tt.addressing)
			f, err := c.BuildWriteMemory(0x00010280, 0x80)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Type() != MsgWriteMemory {
				t.Errorf("Type = %v, want %v", f.Type(), MsgWriteMemory)
			}
			if !bytes.Equal(f.Payload(), tt.wantPayload) {
				t.Errorf("payload = % X, want % X", f.Payload(), tt.wantPayload)
			}

			req, err := ParseMemoryRequest(c.Args(f))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.PageAddress != 0x00010280 || req.Length != 0x80 {
				t.Errorf("request = %+v, want address 0x00010280 length 0x80", req)
			}
		})
	}
}

func TestBuildWriteData(t *testing.T) {
	tests := []struct {
		name       string
		addressing Addressing
		chunk      []byte
		wantErr    bool
		errMsg     string
	}{
		{name: "full chunk by id", addressing: AddressByID, chunk: make([]byte, 8)},
		{name: "full chunk legacy", addressing: AddressInPayload, chunk: make([]byte, 7)},
		{name: "too large legacy", addressing: AddressInPayload, chunk: make([]byte, 8), wantErr: true, errMsg: "exceeds maximum"},
		{name: "too large by id", addressing: AddressByID, chunk: make([]byte, 9), wantErr: true, errMsg: "exceeds maximum"},
		{name: "empty", addressing: AddressByID, chunk: nil, wantErr: true, errMsg: "data cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCodec(1, tt.addressing)
			f, err := c.BuildWriteData(tt.chunk)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errMsg)
				}
				if !bytes.Contains([]byte(err.Error()), []byte(tt.errMsg)) {
					t.Errorf("error = %v, want substring %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(c.Args(f), tt.chunk) {
				t.Errorf("args = % X, want % X", c.Args(f), tt.chunk)
			}
		})
	}
}

func TestBuildReset(t *testing.T) {
	c := NewCodec(3, AddressInPayload)

	f, err := c.BuildReset(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(f.Payload(), []byte{0x03, ResetRunApplication}) {
		t.Errorf("payload = % X, want 03 01", f.Payload())
	}

	runApp, err := ParseReset(c.Args(f))
	if err != nil || !runApp {
		t.Errorf("ParseReset = %v, %v; want true, nil", runApp, err)
	}

	f, _ = c.BuildReset(false)
	runApp, _ = ParseReset(c.Args(f))
	if runApp {
		t.Error("ParseReset = true for stay-in-bootloader")
	}
}

func TestBuildAlert(t *testing.T) {
	legacy := NewCodec(9, AddressInPayload)
	f, _ := legacy.BuildAlert()
	if !legacy.FromNode(f, MsgAlert) {
		t.Error("legacy alert not attributed to its node")
	}
	if NewCodec(8, AddressInPayload).FromNode(f, MsgAlert) {
		t.Error("legacy alert attributed to another node")
	}

	byID := NewCodec(9, AddressByID)
	f, _ = byID.BuildAlert()
	if f.Len != 0 || f.ID != 0x109 {
		t.Errorf("alert = %v, want 109#", f)
	}
	if NewCodec(8, AddressByID).FromNode(f, MsgAlert) {
		t.Error("alert attributed to another node")
	}
}

func TestCodecAddressed(t *testing.T) {
	node := NewCodec(4, AddressInPayload)

	tests := []struct {
		name    string
		payload []byte
		want    bool
	}{
		{name: "own node", payload: []byte{4}, want: true},
		{name: "broadcast", payload: []byte{BroadcastNode}, want: true},
		{name: "other node", payload: []byte{5}, want: false},
		{name: "no target byte", payload: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := NewFrame(node.ID(MsgGetInfo), tt.payload)
			if got := node.Addressed(f); got != tt.want {
				t.Errorf("Addressed = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkBuildWriteData(b *testing.B) {
	c := NewCodec(1, AddressByID)
	chunk := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.BuildWriteData(chunk)
	}
}
