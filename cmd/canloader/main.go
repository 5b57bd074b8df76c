// Command canloader uploads Intel-HEX firmware to CAN bootloader nodes.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	_ "github.com/moffa90/go-canboot/internal/simnode"
	_ "github.com/moffa90/go-canboot/transport/slcan"
	_ "github.com/moffa90/go-canboot/transport/socketcan"
	_ "github.com/moffa90/go-canboot/transport/usbbridge"
)

// Context is passed to every command's Run method.
type Context struct {
	ctx    context.Context
	logger *cliLogger
}

var CLI struct {
	Verbose bool `short:"v" help:"Log every retry and ignored frame."`

	Upload  UploadCmd  `cmd:"" default:"withargs" help:"Write a hex file to a node and start it (default)."`
	Read    ReadCmd    `cmd:"" help:"Read a node's flash into a hex file."`
	Info    InfoCmd    `cmd:"" help:"Show a node's signature and bootloader version."`
	ListUSB ListUSBCmd `cmd:"" name:"list-usb" help:"List USB devices that may be CAN bridges."`
}

func main() {
	k := kong.Parse(&CLI,
		kong.Name("canloader"),
		kong.Description("Upload firmware to CAN bootloader nodes."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := k.Run(&Context{
		ctx:    ctx,
		logger: newCLILogger(os.Stderr, CLI.Verbose, stderrColors()),
	})
	stop()

	if err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "%s failed: ", k.Command())
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
