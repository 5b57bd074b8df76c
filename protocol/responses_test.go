package protocol

import (
	"bytes"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    bool
		wantErr bool
		errMsg  string
	}{
		{name: "success", data: []byte{StatusSuccess}, want: true},
		{name: "failure", data: []byte{StatusFailure}, want: false},
		{name: "empty", data: nil, wantErr: true, errMsg: "expected 1"},
		{name: "too long", data: []byte{1, 1}, wantErr: true, errMsg: "expected 1"},
		{name: "unknown byte", data: []byte{0x42}, wantErr: true, errMsg: "unknown status byte 0x42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.data)

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
			if got != tt.want {
				t.Errorf("ParseStatus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseInfo(t *testing.T) {
	c := NewCodec(2, AddressByID)
	f, err := c.BuildInfo(0x001E950F, 2, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []byte{0x00, 0x1E, 0x95, 0x0F, 0x02, 0x07}
	if !bytes.Equal(f.Payload(), want) {
		t.Errorf("payload = % X, want % X", f.Payload(), want)
	}

	info, err := ParseInfo(f.Payload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Signature != 0x001E950F {
		t.Errorf("Signature = 0x%08X, want 0x001E950F", info.Signature)
	}
	if info.Name != "ATmega328P" {
		t.Errorf("Name = %q, want ATmega328P", info.Name)
	}
	if info.VersionMajor != 2 || info.VersionMinor != 7 {
		t.Errorf("version = %d.%d, want 2.7", info.VersionMajor, info.VersionMinor)
	}

	if _, err := ParseInfo([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short GET_INFO reply")
	}
}

func TestParseInfoUnknownSignature(t *testing.T) {
	info, err := ParseInfo([]byte{0xDE, 0xAD, 0xBE, 0xEF, 1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "unknown" {
		t.Errorf("Name = %q, want unknown", info.Name)
	}
}

func TestParseMemoryRequestLength(t *testing.T) {
	if _, err := ParseMemoryRequest([]byte{0, 0, 0, 0, 0}); err == nil {
		t.Error("expected error for 5-byte request")
	}
}

func TestFromNodeReplies(t *testing.T) {
	device := NewCodec(6, AddressByID)
	host := NewCodec(6, AddressByID)
	other := NewCodec(7, AddressByID)

	f, _ := device.BuildStatus(MsgWriteData, true)
	if !host.FromNode(f, MsgWriteData) {
		t.Error("status not attributed to node 6")
	}
	if other.FromNode(f, MsgWriteData) {
		t.Error("status attributed to node 7")
	}
	if host.FromNode(f, MsgWriteMemory) {
		t.Error("status attributed to the wrong command")
	}
}

func TestParseAddressing(t *testing.T) {
	for in, want := range map[string]Addressing{"": AddressByID, "id": AddressByID, "payload": AddressInPayload, "legacy": AddressInPayload} {
		got, err := ParseAddressing(in)
		if err != nil || got != want {
			t.Errorf("ParseAddressing(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAddressing("bogus"); err == nil {
		t.Error("expected error for bogus addressing")
	}
}
