package bootloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/moffa90/go-canboot/ihex"
	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
)

// alertPoll bounds each wait for the alert so cancellation is noticed.
const alertPoll = 100 * time.Millisecond

// Programmer uploads images to a CAN bootloader over a transport.
//
// A Programmer owns the transport's receive filter while it exists and must
// not be used from more than one goroutine at a time.
type Programmer struct {
	t      transport.Transport
	codec  protocol.Codec
	config Config
}

// New creates a new Programmer that talks to one node over t.
//
// Example:
//
//	t, _ := transport.Open("socketcan", transport.Options{"iface": "can0"})
//	prog := bootloader.New(t,
//	    bootloader.WithNode(5),
//	    bootloader.WithPageSize(128),
//	)
func New(t transport.Transport, opts ...Option) *Programmer {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Programmer{
		t:      t,
		codec:  protocol.NewCodec(cfg.Node, cfg.Addressing),
		config: cfg,
	}
	p.applyFilter()
	return p
}

// Config returns the configuration in effect.
func (p *Programmer) Config() Config {
	return p.config
}

// applyFilter restricts delivery to the identifiers the target replies on.
func (p *Programmer) applyFilter() {
	p.t.ClearFilter()
	for t := protocol.MsgAlert; t <= protocol.MsgReadData; t++ {
		p.t.SetFilter(p.codec.ID(t), transport.Include)
	}
	p.t.SetFilterMode(transport.FilterIncludeOnly)
}

// Upload performs the complete programming sequence:
//  1. Reset the node into its bootloader and wait for its alert
//  2. Check the device signature against expectedSignature
//  3. Write and verify every page from address 0 up to the last page that
//     holds an allocated byte, in increasing order
//  4. Reset the node into the application
//
// Each page write and each page verify is retried up to Config.Retries
// times; a verify mismatch rewrites the page. The context is checked between
// pages, never in the middle of one.
//
// Example:
//
//	img, _ := ihex.ReadFile("firmware.hex", 32*1024, ihex.Flash)
//	err := prog.Upload(context.Background(), img, 0x001E950F)
func (p *Programmer) Upload(ctx context.Context, img *ihex.Image, expectedSignature uint32) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}
	pageSize := p.config.PageSize
	pages := img.PageCount(pageSize)
	if pages == 0 {
		return fmt.Errorf("image has no data")
	}

	startTime := time.Now()

	// Phase 1: Enter bootloader
	p.reportProgress(Progress{
		Phase:      PhaseEntering,
		TotalPages: pages,
	})

	if err := p.EnterBootloader(ctx); err != nil {
		return fmt.Errorf("enter bootloader: %w", err)
	}

	// Phase 2: Validate device signature
	info, err := p.GetInfo(ctx)
	if err != nil {
		return fmt.Errorf("get info: %w", err)
	}

	p.logInfo("bootloader found",
		"node", p.config.Node,
		"device", info.Name,
		"signature", fmt.Sprintf("0x%08X", info.Signature),
		"version", fmt.Sprintf("%d.%d", info.VersionMajor, info.VersionMinor),
	)

	if info.Signature != expectedSignature {
		return &SignatureMismatchError{
			Expected: expectedSignature,
			Actual:   info.Signature,
		}
	}

	// Phase 3: Program pages
	bytesWritten := 0
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		addr := uint32(i * pageSize)
		data, mask := img.Page(addr, pageSize)
		if err := p.programPage(ctx, addr, data, mask); err != nil {
			p.logError("page failed", "page", fmt.Sprintf("0x%08X", addr), "error", err)
			return err
		}

		bytesWritten += len(data)
		p.reportProgress(Progress{
			Phase:        PhaseProgramming,
			CurrentPage:  i + 1,
			TotalPages:   pages,
			PageAddress:  addr,
			Percentage:   float64(i+1) / float64(pages) * 95,
			BytesWritten: bytesWritten,
			ElapsedTime:  time.Since(startTime),
		})
	}

	// Phase 4: Start the application
	p.reportProgress(Progress{
		Phase:        PhaseExiting,
		CurrentPage:  pages,
		TotalPages:   pages,
		Percentage:   97,
		BytesWritten: bytesWritten,
		ElapsedTime:  time.Since(startTime),
	})

	// One attempt only: a node that reset but lost its reply is already
	// running the application, which may answer a second Reset by
	// returning to the bootloader.
	if err := p.Reset(ctx, true); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	p.reportProgress(Progress{
		Phase:        PhaseComplete,
		CurrentPage:  pages,
		TotalPages:   pages,
		Percentage:   100,
		BytesWritten: bytesWritten,
		ElapsedTime:  time.Since(startTime),
	})

	p.logInfo("upload complete",
		"pages", pages,
		"bytes", bytesWritten,
		"elapsed", time.Since(startTime).String(),
	)

	return nil
}

// programPage writes a page and reads it back until the allocated bytes
// match. Write failures are retried on their own; a failed verify starts
// over with a fresh write.
func (p *Programmer) programPage(ctx context.Context, addr uint32, data []byte, mask []bool) error {
	return p.withRetry("verify", addr, func() error {
		err := p.withRetry("write", addr, func() error {
			return p.WritePage(ctx, addr, data)
		})
		if err != nil {
			return retry.Unrecoverable(err)
		}
		return p.VerifyPage(ctx, addr, data, mask)
	})
}

// withRetry runs fn up to Config.Retries times and reports exhaustion as a
// *PageError. A *PageError from a nested operation is passed through.
func (p *Programmer) withRetry(op string, addr uint32, fn func() error) error {
	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return fn()
		},
		retry.Attempts(uint(p.config.Retries)),
		retry.Delay(p.config.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return retry.IsRecoverable(err) && !errors.Is(err, transport.ErrClosed)
		}),
		retry.OnRetry(func(n uint, err error) {
			p.logDebug("retrying",
				"operation", op,
				"page", fmt.Sprintf("0x%08X", addr),
				"attempt", n+1,
				"error", err,
			)
		}),
	)
	if err == nil {
		return nil
	}

	var pe *PageError
	if errors.As(err, &pe) {
		return pe
	}
	return &PageError{Operation: op, PageAddress: addr, Attempts: attempts, Err: err}
}

// EnterBootloader resets the node into its bootloader and waits for the
// alert it sends once running. A missing reset confirmation is logged and
// ignored: a node already waiting in its bootloader, or one being power
// cycled by hand, still announces itself.
func (p *Programmer) EnterBootloader(ctx context.Context) error {
	cmd, err := p.codec.BuildReset(false)
	if err != nil {
		return err
	}

	if err := p.command(cmd, protocol.MsgReset); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return err
		}
		p.logInfo("no reset confirmation, waiting for alert", "error", err)
	}

	isAlert := func(f protocol.Frame) bool {
		return p.codec.FromNode(f, protocol.MsgAlert)
	}

	deadline := time.Now().Add(p.config.AlertTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return fmt.Errorf("no alert from node %d: %w", p.config.Node, transport.ErrTimeout)
		}
		if wait > alertPoll {
			wait = alertPoll
		}

		_, err := p.await(wait, isAlert)
		switch {
		case err == nil:
			p.logDebug("alert received", "node", p.config.Node)
			return nil
		case errors.Is(err, transport.ErrTimeout), errors.Is(err, transport.ErrOverflow):
		default:
			return err
		}
	}
}

// GetInfo queries the bootloader's signature and version.
func (p *Programmer) GetInfo(ctx context.Context) (*protocol.DeviceInfo, error) {
	cmd, err := p.codec.BuildGetInfo()
	if err != nil {
		return nil, err
	}

	var info *protocol.DeviceInfo
	err = retry.Do(
		func() error {
			reply, err := p.request(cmd, protocol.MsgGetInfo)
			if err != nil {
				return err
			}
			info, err = protocol.ParseInfo(reply.Payload())
			return err
		},
		retry.Attempts(uint(p.config.Retries)),
		retry.Delay(p.config.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// WritePage makes one attempt at writing data to the page at addr: a
// Write-Memory command followed by Write-Data chunks. The reply to the last
// chunk arrives once the page has been committed to flash.
func (p *Programmer) WritePage(ctx context.Context, addr uint32, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 || len(data) > p.config.PageSize {
		return fmt.Errorf("page data length %d outside 1..%d", len(data), p.config.PageSize)
	}

	cmd, err := p.codec.BuildWriteMemory(addr, uint16(len(data)))
	if err != nil {
		return err
	}
	if err := p.command(cmd, protocol.MsgWriteMemory); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}

	step := p.codec.DataCapacity()
	for off := 0; off < len(data); off += step {
		end := off + step
		if end > len(data) {
			end = len(data)
		}
		cmd, err := p.codec.BuildWriteData(data[off:end])
		if err != nil {
			return err
		}
		if err := p.command(cmd, protocol.MsgWriteData); err != nil {
			return fmt.Errorf("write data at offset %d: %w", off, err)
		}
	}
	return nil
}

// ReadPage makes one attempt at reading length bytes at addr.
func (p *Programmer) ReadPage(ctx context.Context, addr uint32, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if length <= 0 || length > p.config.PageSize {
		return nil, fmt.Errorf("read length %d outside 1..%d", length, p.config.PageSize)
	}

	cmd, err := p.codec.BuildReadMemory(addr, uint16(length))
	if err != nil {
		return nil, err
	}
	if err := p.command(cmd, protocol.MsgReadMemory); err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}

	ack, err := p.codec.BuildReadDataAck()
	if err != nil {
		return nil, err
	}
	isChunk := func(f protocol.Frame) bool {
		return p.codec.FromNode(f, protocol.MsgReadData) && f.Len > 0
	}

	buf := make([]byte, 0, length)
	for len(buf) < length {
		f, err := p.await(p.config.ReplyTimeout, isChunk)
		if err != nil {
			return nil, fmt.Errorf("read data at offset %d: %w", len(buf), err)
		}
		buf = append(buf, f.Payload()...)

		if len(buf) < length {
			if err := p.t.Send(ack, p.config.SendTimeout); err != nil {
				return nil, fmt.Errorf("acknowledge read data: %w", err)
			}
		}
	}
	return buf[:length], nil
}

// VerifyPage reads back the page at addr and compares the bytes whose mask
// entry is true. Returns *VerifyMismatchError for the first difference.
func (p *Programmer) VerifyPage(ctx context.Context, addr uint32, data []byte, mask []bool) error {
	got, err := p.ReadPage(ctx, addr, len(data))
	if err != nil {
		return err
	}
	for i := range data {
		if i < len(mask) && !mask[i] {
			continue
		}
		if got[i] != data[i] {
			return &VerifyMismatchError{
				PageAddress: addr,
				Offset:      i,
				Expected:    data[i],
				Actual:      got[i],
			}
		}
	}
	return nil
}

// ReadMemory reads size bytes of flash from address 0 into a new image. Every
// byte read is marked allocated. The range must end at or below the start of
// the bootloader, which refuses to read itself.
func (p *Programmer) ReadMemory(ctx context.Context, size int) (*ihex.Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid size %d", size)
	}

	pageSize := p.config.PageSize
	pages := (size + pageSize - 1) / pageSize
	img := ihex.New(size, ihex.Flash)
	startTime := time.Now()

	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}

		addr := uint32(i * pageSize)
		length := pageSize
		if rest := size - int(addr); rest < length {
			length = rest
		}

		var data []byte
		err := p.withRetry("read", addr, func() error {
			var err error
			data, err = p.ReadPage(ctx, addr, length)
			return err
		})
		if err != nil {
			return nil, err
		}
		if err := img.Write(addr, data); err != nil {
			return nil, err
		}

		p.reportProgress(Progress{
			Phase:        PhaseReading,
			CurrentPage:  i + 1,
			TotalPages:   pages,
			PageAddress:  addr,
			Percentage:   float64(i+1) / float64(pages) * 100,
			BytesWritten: int(addr) + length,
			ElapsedTime:  time.Since(startTime),
		})
	}
	return img, nil
}

// Reset makes one attempt at resetting the node, into the application when
// runApp is true and back into the bootloader otherwise.
func (p *Programmer) Reset(ctx context.Context, runApp bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd, err := p.codec.BuildReset(runApp)
	if err != nil {
		return err
	}
	return p.command(cmd, protocol.MsgReset)
}

// command sends cmd and expects a success confirmation of type t.
func (p *Programmer) command(cmd protocol.Frame, t protocol.MessageType) error {
	reply, err := p.request(cmd, t)
	if err != nil {
		return err
	}
	ok, err := protocol.ParseStatus(reply.Payload())
	if err != nil {
		return err
	}
	if !ok {
		return &protocol.StatusError{Command: t}
	}
	return nil
}

// request discards stale frames, sends cmd and waits for a reply of type t
// from the node.
func (p *Programmer) request(cmd protocol.Frame, t protocol.MessageType) (protocol.Frame, error) {
	p.t.Drain()
	if err := p.t.Send(cmd, p.config.SendTimeout); err != nil {
		return protocol.Frame{}, fmt.Errorf("send %s: %w", t, err)
	}
	return p.await(p.config.ReplyTimeout, func(f protocol.Frame) bool {
		return p.codec.FromNode(f, t)
	})
}

// await receives until a frame satisfies match or timeout elapses. Frames
// that don't match are dropped. On overflow the queue is drained and the
// overflow returned, since the awaited frame may have been lost.
func (p *Programmer) await(timeout time.Duration, match func(protocol.Frame) bool) (protocol.Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return protocol.Frame{}, transport.ErrTimeout
		}

		f, err := p.t.Receive(remaining)
		if err != nil {
			if errors.Is(err, transport.ErrOverflow) {
				p.t.Drain()
			}
			return protocol.Frame{}, err
		}
		if match(f) {
			return f, nil
		}
		p.logDebug("ignoring frame", "frame", f.String())
	}
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
