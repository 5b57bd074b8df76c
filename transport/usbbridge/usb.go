package usbbridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/moffa90/go-canboot/transport"
)

// Default adapter settings.
const (
	DefaultVID         = 0x1209
	DefaultPID         = 0x0001
	DefaultInEndpoint  = 1
	DefaultOutEndpoint = 1
	DefaultAlive       = 500 * time.Millisecond
)

// Config selects the adapter and its housekeeping period.
type Config struct {
	VID         uint16
	PID         uint16
	InEndpoint  int
	OutEndpoint int

	// Alive is the housekeeping period. Zero disables pings.
	Alive time.Duration

	QueueSize int
}

func init() {
	transport.Register("usbbridge", func(opts transport.Options) (transport.Transport, error) {
		cfg, err := configFromOptions(opts)
		if err != nil {
			return nil, err
		}
		return Open(cfg)
	})
}

func configFromOptions(opts transport.Options) (Config, error) {
	cfg := Config{}
	vid, err := opts.Uint("vid", DefaultVID, 16)
	if err != nil {
		return cfg, err
	}
	pid, err := opts.Uint("pid", DefaultPID, 16)
	if err != nil {
		return cfg, err
	}
	in, err := opts.Int("in", DefaultInEndpoint)
	if err != nil {
		return cfg, err
	}
	out, err := opts.Int("out", DefaultOutEndpoint)
	if err != nil {
		return cfg, err
	}
	alive, err := opts.Duration("alive", DefaultAlive)
	if err != nil {
		return cfg, err
	}
	queue, err := opts.Int("queue", transport.DefaultQueueSize)
	if err != nil {
		return cfg, err
	}
	return Config{
		VID:         uint16(vid),
		PID:         uint16(pid),
		InEndpoint:  in,
		OutEndpoint: out,
		Alive:       alive,
		QueueSize:   queue,
	}, nil
}

// usbLink joins the bulk endpoints of the adapter's default interface.
type usbLink struct {
	in  *gousb.InEndpoint
	out *gousb.OutEndpoint
}

func (l usbLink) ReadContext(ctx context.Context, buf []byte) (int, error) {
	return l.in.ReadContext(ctx, buf)
}

func (l usbLink) WriteContext(ctx context.Context, buf []byte) (int, error) {
	return l.out.WriteContext(ctx, buf)
}

// Open claims the adapter matching cfg.VID and cfg.PID.
func Open(cfg Config) (*Bridge, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(cfg.VID), gousb.ID(cfg.PID))
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("failed to open USB device %04x:%04x: %w", cfg.VID, cfg.PID, err)
	}
	if dev == nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("no USB-CAN bridge found matching VID %04x and PID %04x", cfg.VID, cfg.PID)
	}
	_ = dev.SetAutoDetach(true)

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		_ = dev.Close()
		_ = ctx.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	cleanup := func() error {
		done()
		err := dev.Close()
		_ = ctx.Close()
		return err
	}

	in, err := intf.InEndpoint(cfg.InEndpoint)
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("in endpoint %d: %w", cfg.InEndpoint, err)
	}
	out, err := intf.OutEndpoint(cfg.OutEndpoint)
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("out endpoint %d: %w", cfg.OutEndpoint, err)
	}

	return newBridge(usbLink{in: in, out: out}, cleanup, cfg.Alive, cfg.QueueSize), nil
}
