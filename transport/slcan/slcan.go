// Package slcan implements transport.Transport for serial-line CAN adapters
// speaking the Lawicel ASCII protocol.
//
// The transport registers itself as "slcan" with the options port, baud,
// bitrate and queue.
package slcan

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
)

// Defaults for the registry options.
const (
	DefaultPort    = "/dev/ttyACM0"
	DefaultBaud    = 115200
	DefaultBitrate = 500000
)

// readTimeout bounds each serial read so the reader notices Close.
const readTimeout = 100 * time.Millisecond

// maxLineLength caps a buffered adapter line. A longer line is discarded up
// to the next carriage return.
const maxLineLength = 64

func init() {
	transport.Register("slcan", func(opts transport.Options) (transport.Transport, error) {
		baud, err := opts.Int("baud", DefaultBaud)
		if err != nil {
			return nil, err
		}
		bitrate, err := opts.Int("bitrate", DefaultBitrate)
		if err != nil {
			return nil, err
		}
		queue, err := opts.Int("queue", transport.DefaultQueueSize)
		if err != nil {
			return nil, err
		}
		return Open(opts.String("port", DefaultPort), baud, bitrate, queue)
	})
}

// Transport is an open SLCAN channel.
type Transport struct {
	port  io.ReadWriteCloser
	inbox *transport.Inbox

	writeMu sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

var _ transport.Transport = (*Transport)(nil)

// Open opens the serial port, sets the CAN bit rate and opens the channel.
func Open(portName string, baud, bitrate, queueSize int) (*Transport, error) {
	setup, err := BitrateCommand(bitrate)
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	_ = port.ResetInputBuffer()

	// Close any open channel, then configure and open
	for _, cmd := range []string{"C\r", setup, "O\r"} {
		if _, err := port.Write([]byte(cmd)); err != nil {
			port.Close()
			return nil, fmt.Errorf("adapter setup: %w", err)
		}
	}

	return newTransport(port, queueSize), nil
}

func newTransport(port io.ReadWriteCloser, queueSize int) *Transport {
	t := &Transport{
		port:  port,
		inbox: transport.NewInbox(queueSize),
		done:  make(chan struct{}),
	}
	t.wg.Add(1)
	go t.readLoop()
	return t
}

func (t *Transport) readLoop() {
	defer t.wg.Done()
	buf := make([]byte, 64)
	line := make([]byte, 0, maxLineLength)
	discard := false
	for {
		select {
		case <-t.done:
			return
		default:
		}

		// The serial driver returns 0 bytes when the read timeout expires
		n, err := t.port.Read(buf)
		if err != nil {
			t.inbox.Close()
			return
		}

		for _, c := range buf[:n] {
			switch c {
			case '\r':
				if !discard {
					if f, ok, err := ParseLine(string(line)); err == nil && ok {
						t.inbox.Push(f)
					}
				}
				line = line[:0]
				discard = false
			case '\a':
				// Adapter rejected a command
				line = line[:0]
			default:
				if discard {
					continue
				}
				if len(line) == maxLineLength {
					line = line[:0]
					discard = true
					continue
				}
				line = append(line, c)
			}
		}
	}
}

// Send writes f as a 't' command. The serial driver has no write deadline,
// so the write runs in its own goroutine and Send gives up after timeout.
func (t *Transport) Send(f protocol.Frame, timeout time.Duration) error {
	if err := f.Validate(); err != nil {
		return err
	}
	select {
	case <-t.done:
		return transport.ErrClosed
	default:
	}
	return t.write(EncodeFrame(f), timeout)
}

func (t *Transport) write(s string, timeout time.Duration) error {
	result := make(chan error, 1)
	go func() {
		t.writeMu.Lock()
		defer t.writeMu.Unlock()
		_, err := io.WriteString(t.port, s)
		result <- err
	}()

	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("slcan write: %w", err)
		}
		return nil
	case <-time.After(timeout):
		return transport.ErrTimeout
	case <-t.done:
		return transport.ErrClosed
	}
}

// Receive returns the next queued frame.
func (t *Transport) Receive(timeout time.Duration) (protocol.Frame, error) {
	return t.inbox.Receive(timeout)
}

// Drain discards queued frames.
func (t *Transport) Drain() {
	t.inbox.Drain()
}

// SetFilter adds id to the include or exclude list.
func (t *Transport) SetFilter(id uint16, action transport.FilterAction) {
	t.inbox.SetFilter(id, action)
}

// ClearFilter passes every frame.
func (t *Transport) ClearFilter() {
	t.inbox.ClearFilter()
}

// SetFilterMode selects the active filter list.
func (t *Transport) SetFilterMode(mode transport.FilterMode) {
	t.inbox.SetFilterMode(mode)
}

// Close closes the CAN channel and the serial port.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		_ = t.write("C\r", readTimeout)
		close(t.done)
		err = t.port.Close()
		t.wg.Wait()
		t.inbox.Close()
	})
	return err
}
