package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/karalabe/usb"

	"github.com/moffa90/go-canboot/bootloader"
	"github.com/moffa90/go-canboot/ihex"
	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
)

// ConnFlags selects the transport and the node behind it.
type ConnFlags struct {
	Transport string `short:"c" default:"socketcan" help:"Transport name (${enum})." enum:"socketcan,usbbridge,slcan,sim"`
	Options   string `short:"C" default:"" placeholder:"K=V:K=V" help:"Transport options. Common keys: node, addressing=id|payload, timeout."`
	PageSize  int    `short:"p" default:"128" help:"Flash page size in bytes."`
}

// open opens the transport and builds a programmer for the node named in
// the options.
func (f *ConnFlags) open(c *Context, progress bootloader.ProgressCallback) (transport.Transport, *bootloader.Programmer, error) {
	opts, err := transport.ParseOptions(f.Options)
	if err != nil {
		return nil, nil, err
	}
	node, err := opts.Uint("node", bootloader.DefaultNode, 8)
	if err != nil {
		return nil, nil, err
	}
	addressing, err := protocol.ParseAddressing(opts.String("addressing", ""))
	if err != nil {
		return nil, nil, err
	}
	timeout, err := opts.Duration("timeout", bootloader.DefaultReplyTimeout)
	if err != nil {
		return nil, nil, err
	}

	t, err := transport.Open(f.Transport, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", f.Transport, err)
	}

	prog := bootloader.New(t,
		bootloader.WithLogger(c.logger),
		bootloader.WithProgressCallback(progress),
		bootloader.WithNode(uint8(node)),
		bootloader.WithAddressing(addressing),
		bootloader.WithPageSize(f.PageSize),
		bootloader.WithTimeout(timeout),
	)
	return t, prog, nil
}

// UploadCmd writes a hex file to a node.
type UploadCmd struct {
	ConnFlags `embed:""`

	File      string `short:"f" required:"" type:"existingfile" help:"Intel-HEX file to upload."`
	Size      string `short:"s" default:"32768" help:"Size of the target's flash in bytes."`
	Signature string `short:"S" required:"" help:"Expected device signature, e.g. 0x1E950F."`
}

func (cmd *UploadCmd) Run(c *Context) error {
	size, err := parseNumber("size", cmd.Size, 32)
	if err != nil {
		return err
	}
	sig, err := parseNumber("signature", cmd.Signature, 32)
	if err != nil {
		return err
	}

	img, err := ihex.ReadFile(cmd.File, int(size), ihex.Flash)
	if err != nil {
		return err
	}
	c.logger.Info("image loaded",
		"file", cmd.File,
		"bytes", img.AllocatedCount(),
		"pages", img.PageCount(cmd.PageSize),
	)

	bar := newProgressReporter("Uploading", cmd.PageSize)
	t, prog, err := cmd.open(c, bar.callback())
	if err != nil {
		return err
	}
	defer t.Close()

	err = prog.Upload(c.ctx, img, uint32(sig))
	bar.finish()
	if err != nil {
		return err
	}

	color.New(color.FgGreen, color.Bold).Fprintln(os.Stderr, "upload complete, application started")
	return nil
}

// ReadCmd reads a node's flash into a hex file.
type ReadCmd struct {
	ConnFlags `embed:""`

	Output string `short:"o" required:"" help:"Intel-HEX file to write."`
	Size   string `short:"s" default:"28672" help:"Number of bytes to read from address 0."`
}

func (cmd *ReadCmd) Run(c *Context) error {
	size, err := parseNumber("size", cmd.Size, 32)
	if err != nil {
		return err
	}

	bar := newProgressReporter("Reading", cmd.PageSize)
	t, prog, err := cmd.open(c, bar.callback())
	if err != nil {
		return err
	}
	defer t.Close()

	if err := prog.EnterBootloader(c.ctx); err != nil {
		return fmt.Errorf("enter bootloader: %w", err)
	}
	img, err := prog.ReadMemory(c.ctx, int(size))
	bar.finish()
	if err != nil {
		return err
	}

	out, err := os.Create(cmd.Output)
	if err != nil {
		return err
	}
	if err := ihex.Write(out, img, ihex.DefaultRecordLength); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	c.logger.Info("flash saved", "file", cmd.Output, "bytes", size)
	return nil
}

// InfoCmd prints what GET_INFO reports.
type InfoCmd struct {
	ConnFlags `embed:""`

	NoReset bool `help:"Query a node already waiting in its bootloader without resetting it."`
}

func (cmd *InfoCmd) Run(c *Context) error {
	t, prog, err := cmd.open(c, nil)
	if err != nil {
		return err
	}
	defer t.Close()

	if !cmd.NoReset {
		if err := prog.EnterBootloader(c.ctx); err != nil {
			return fmt.Errorf("enter bootloader: %w", err)
		}
	}
	info, err := prog.GetInfo(c.ctx)
	if err != nil {
		return err
	}

	cfg := prog.Config()
	fmt.Printf("Node:        %d (%s addressing)\n", cfg.Node, cfg.Addressing)
	fmt.Printf("Device:      %s\n", info.Name)
	fmt.Printf("Signature:   0x%08X\n", info.Signature)
	fmt.Printf("Bootloader:  %d.%d\n", info.VersionMajor, info.VersionMinor)
	return nil
}

// ListUSBCmd enumerates USB devices.
type ListUSBCmd struct {
	VID uint16 `help:"Only list devices with this vendor ID (0 = any)."`
	PID uint16 `help:"Only list devices with this product ID (0 = any)."`
}

func (cmd *ListUSBCmd) Run(c *Context) error {
	if !usb.Supported() {
		return fmt.Errorf("USB support not enabled on this platform")
	}

	var devices []usb.DeviceInfo
	var lastErr error
	for attempts := 0; attempts < 3; attempts++ {
		if attempts > 0 {
			time.Sleep(100 * time.Millisecond)
		}
		devices, lastErr = usb.EnumerateRaw(cmd.VID, cmd.PID)
		if lastErr == nil {
			break
		}
		c.logger.Debug("enumeration failed", "attempt", attempts+1, "error", lastErr)
	}
	if lastErr != nil {
		return lastErr
	}

	if len(devices) == 0 {
		fmt.Println("No devices found")
		return nil
	}
	for _, info := range devices {
		fmt.Printf("%s: ID %04x:%04x %s %s (Interface %d)\n",
			info.Path, info.VendorID, info.ProductID, info.Manufacturer, info.Product, info.Interface)
		fmt.Printf("\tSerial       %s\n", info.Serial)
		fmt.Printf("\tRelease      %x.%x\n", info.Release>>8, info.Release&0xff)
		fmt.Printf("\tOptions      -c usbbridge -C vid=0x%04x:pid=0x%04x\n", info.VendorID, info.ProductID)
	}
	return nil
}

// parseNumber accepts decimal, 0x hex and 0 octal values.
func parseNumber(name, s string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}
