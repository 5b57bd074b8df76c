//go:build linux

package socketcan

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
)

func TestCANFrameLayout(t *testing.T) {
	f, _ := protocol.NewFrame(0x405, []byte{0x00, 0x00, 0x00, 0x80, 0x00, 0x80})

	buf := encodeCANFrame(f)
	if len(buf) != canFrameSize {
		t.Fatalf("encoded %d bytes, want %d", len(buf), canFrameSize)
	}
	if buf[0] != 0x05 || buf[1] != 0x04 || buf[4] != 6 {
		t.Errorf("header = % X, want id 05 04 and dlc 6", buf[:8])
	}

	got, ok := decodeCANFrame(buf)
	if !ok {
		t.Fatal("decodeCANFrame() rejected a standard frame")
	}
	if got != f {
		t.Errorf("decodeCANFrame() = %v, want %v", got, f)
	}
}

func TestDecodeCANFrameSkipsNonStandard(t *testing.T) {
	tests := []struct {
		name string
		flag uint32
	}{
		{"extended", unix.CAN_EFF_FLAG},
		{"remote", unix.CAN_RTR_FLAG},
		{"error", unix.CAN_ERR_FLAG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, canFrameSize)
			id := uint32(0x123) | tt.flag
			buf[0], buf[1], buf[2], buf[3] = byte(id), byte(id>>8), byte(id>>16), byte(id>>24)
			if _, ok := decodeCANFrame(buf); ok {
				t.Error("decodeCANFrame() accepted a non-standard frame")
			}
		})
	}
}

func TestDecodeCANFrameClampsDLC(t *testing.T) {
	buf := make([]byte, canFrameSize)
	buf[0] = 0x05
	buf[1] = 0x01
	buf[4] = 15

	got, ok := decodeCANFrame(buf)
	if !ok {
		t.Fatal("decodeCANFrame() rejected frame")
	}
	if got.Len != protocol.MaxDataLength {
		t.Errorf("Len = %d, want %d", got.Len, protocol.MaxDataLength)
	}
}

func TestKernelFilters(t *testing.T) {
	pass := kernelFilters(transport.FilterPassAll, []uint16{0x305})
	if len(pass) != 1 || pass[0].Mask != 0 {
		t.Errorf("pass-all filters = %+v, want single zero mask", pass)
	}

	inc := kernelFilters(transport.FilterIncludeOnly, []uint16{0x105, 0x305})
	if len(inc) != 2 || inc[0].Id != 0x105 || inc[1].Id != 0x305 {
		t.Fatalf("include filters = %+v", inc)
	}
	if inc[0].Mask&unix.CAN_SFF_MASK != unix.CAN_SFF_MASK {
		t.Errorf("include mask = 0x%X, want full standard mask", inc[0].Mask)
	}

	empty := kernelFilters(transport.FilterIncludeOnly, nil)
	if len(empty) != 1 || empty[0].Mask != 0 {
		t.Errorf("empty include list filters = %+v, want pass-all", empty)
	}
}

func TestClassifyRead(t *testing.T) {
	tests := []struct {
		name string
		n    int
		err  error
		want readAction
	}{
		{"frame", canFrameSize, nil, readFrame},
		{"short read", 8, nil, readSkip},
		{"would block", -1, unix.EAGAIN, readSkip},
		{"interrupted", -1, unix.EINTR, readSkip},
		{"interface down", -1, unix.ENETDOWN, readFatal},
		{"bad descriptor", -1, unix.EBADF, readFatal},
		{"end of stream", 0, nil, readFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRead(tt.n, tt.err); got != tt.want {
				t.Errorf("classifyRead(%d, %v) = %d, want %d", tt.n, tt.err, got, tt.want)
			}
		})
	}
}

func TestReaderStopsWhenLinkFails(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		t.Skipf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])

	tr := &Transport{
		fd:    fds[0],
		iface: "test",
		inbox: transport.NewInbox(8),
		done:  make(chan struct{}),
	}
	tr.wg.Add(1)
	go tr.readLoop()

	f, _ := protocol.NewFrame(0x105, nil)
	if _, err := unix.Write(fds[1], encodeCANFrame(f)); err != nil {
		t.Fatal(err)
	}
	got, err := tr.Receive(time.Second)
	if err != nil || got != f {
		t.Fatalf("Receive() = %v, %v; want %v", got, err, f)
	}

	unix.Close(fds[1])
	if _, err := tr.Receive(time.Second); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Receive() after the link failed error = %v, want ErrClosed", err)
	}

	stopped := make(chan struct{})
	go func() {
		tr.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Error("reader still running after the link failed")
	}
}
