//go:build linux

package socketcan

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
)

// canFrameSize is sizeof(struct can_frame).
const canFrameSize = 16

// pollInterval bounds how long the reader waits before checking for Close.
const pollInterval = 100 * time.Millisecond

func init() {
	transport.Register("socketcan", func(opts transport.Options) (transport.Transport, error) {
		queue, err := opts.Int("queue", transport.DefaultQueueSize)
		if err != nil {
			return nil, err
		}
		return Open(opts.String("iface", "can0"), queue)
	})
}

// Transport is a raw CAN socket bound to one interface.
type Transport struct {
	fd    int
	iface string
	inbox *transport.Inbox

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

var _ transport.Transport = (*Transport)(nil)

// Open binds a raw CAN socket to iface and starts the reader.
func Open(iface string, queueSize int) (*Transport, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", iface, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create CAN socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind %s: %w", iface, err)
	}

	t := &Transport{
		fd:    fd,
		iface: iface,
		inbox: transport.NewInbox(queueSize),
		done:  make(chan struct{}),
	}
	t.wg.Add(1)
	go t.readLoop()
	return t, nil
}

func (t *Transport) readLoop() {
	defer t.wg.Done()
	buf := make([]byte, canFrameSize)
	for {
		select {
		case <-t.done:
			return
		default:
		}

		fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(pollInterval/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			t.inbox.Close()
			return
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLHUP|unix.POLLNVAL) != 0 {
			t.inbox.Close()
			return
		}
		if fds[0].Revents&(unix.POLLIN|unix.POLLERR) == 0 {
			continue
		}

		m, err := unix.Read(t.fd, buf)
		switch classifyRead(m, err) {
		case readFatal:
			// The interface went away; a pending error would keep poll
			// returning at once
			t.inbox.Close()
			return
		case readSkip:
			continue
		}
		if f, ok := decodeCANFrame(buf); ok {
			t.inbox.Push(f)
		}
	}
}

type readAction int

const (
	readFrame readAction = iota
	readSkip
	readFatal
)

// classifyRead decides what the reader does with the result of one read.
func classifyRead(n int, err error) readAction {
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return readSkip
	case err != nil, n == 0:
		return readFatal
	case n != canFrameSize:
		return readSkip
	}
	return readFrame
}

// Send writes f once the socket is writable, waiting at most timeout.
func (t *Transport) Send(f protocol.Frame, timeout time.Duration) error {
	if err := f.Validate(); err != nil {
		return err
	}
	select {
	case <-t.done:
		return transport.ErrClosed
	default:
	}

	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		return fmt.Errorf("poll %s: %w", t.iface, err)
	}
	if n == 0 {
		return transport.ErrTimeout
	}

	if _, err := unix.Write(t.fd, encodeCANFrame(f)); err != nil {
		if err == unix.ENOBUFS || err == unix.EAGAIN {
			return transport.ErrTimeout
		}
		return fmt.Errorf("write %s: %w", t.iface, err)
	}
	return nil
}

// Receive returns the next queued frame.
func (t *Transport) Receive(timeout time.Duration) (protocol.Frame, error) {
	return t.inbox.Receive(timeout)
}

// Drain discards queued frames.
func (t *Transport) Drain() {
	t.inbox.Drain()
}

// SetFilter adds id to a filter list and refreshes the kernel filter.
func (t *Transport) SetFilter(id uint16, action transport.FilterAction) {
	t.inbox.SetFilter(id, action)
	t.applyKernelFilter()
}

// ClearFilter passes every frame.
func (t *Transport) ClearFilter() {
	t.inbox.ClearFilter()
	t.applyKernelFilter()
}

// SetFilterMode selects the active list.
func (t *Transport) SetFilterMode(mode transport.FilterMode) {
	t.inbox.SetFilterMode(mode)
	t.applyKernelFilter()
}

// applyKernelFilter mirrors the include list into CAN_RAW_FILTER. Exclusion
// is left to the inbox since the kernel filter only expresses inclusion.
func (t *Transport) applyKernelFilter() {
	mode, include, _ := t.inbox.Filter()
	t.mu.Lock()
	defer t.mu.Unlock()

	filters := kernelFilters(mode, include)
	_ = unix.SetsockoptCanRawFilter(t.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters)
}

// Close stops the reader and closes the socket.
func (t *Transport) Close() error {
	t.mu.Lock()
	select {
	case <-t.done:
		t.mu.Unlock()
		return nil
	default:
		close(t.done)
	}
	t.mu.Unlock()

	t.wg.Wait()
	t.inbox.Close()
	return unix.Close(t.fd)
}

// kernelFilters builds the CAN_RAW_FILTER list. A single zero mask filter
// passes everything.
func kernelFilters(mode transport.FilterMode, include []uint16) []unix.CanFilter {
	if mode != transport.FilterIncludeOnly || len(include) == 0 {
		return []unix.CanFilter{{Id: 0, Mask: 0}}
	}
	filters := make([]unix.CanFilter, 0, len(include))
	for _, id := range include {
		filters = append(filters, unix.CanFilter{
			Id:   uint32(id),
			Mask: unix.CAN_SFF_MASK | unix.CAN_EFF_FLAG | unix.CAN_RTR_FLAG,
		})
	}
	return filters
}

// encodeCANFrame lays f out as struct can_frame:
//
//	can_id(4, host order) can_dlc(1) pad(3) data(8)
func encodeCANFrame(f protocol.Frame) []byte {
	buf := make([]byte, canFrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.ID))
	buf[4] = f.Len
	copy(buf[8:], f.Payload())
	return buf
}

// decodeCANFrame parses struct can_frame. Extended, remote and error frames
// are not part of the protocol and are skipped.
func decodeCANFrame(buf []byte) (protocol.Frame, bool) {
	id := binary.LittleEndian.Uint32(buf[0:4])
	if id&(unix.CAN_EFF_FLAG|unix.CAN_RTR_FLAG|unix.CAN_ERR_FLAG) != 0 {
		return protocol.Frame{}, false
	}
	raw := make([]byte, protocol.EncodedFrameSize)
	binary.BigEndian.PutUint16(raw[0:2], uint16(id&unix.CAN_SFF_MASK))
	raw[2] = buf[4]
	copy(raw[protocol.FrameHeaderSize:], buf[8:16])
	f, err := protocol.DecodeFrame(raw)
	if err != nil {
		return protocol.Frame{}, false
	}
	return f, true
}
