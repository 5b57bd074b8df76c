package device

import (
	"github.com/moffa90/go-canboot/protocol"
)

// Defaults for an ATmega328P-class target. One tick is one millisecond.
const (
	DefaultNode             = 0x01
	DefaultPageSize         = 128
	DefaultBootloaderStart  = 0x7000
	DefaultIdleTimeout      = 5000
	DefaultAlertInterval    = 500
	DefaultCommsTimeout     = 1000
	DefaultTxPollLimit      = 10000
	DefaultCleanFlagAddress = 0x03FE
)

// Config holds the bootloader configuration.
type Config struct {
	// Node is this device's node ID
	Node uint8

	// Addressing selects where the node ID travels
	Addressing protocol.Addressing

	// PageSize is the flash page size in bytes
	PageSize int

	// BootloaderStart is the first flash address of the bootloader itself.
	// Pages at or above it are never written.
	BootloaderStart uint32

	// Signature is reported by Get-Info
	Signature uint32

	// VersionMajor and VersionMinor are reported by Get-Info
	VersionMajor uint8
	VersionMinor uint8

	// IdleTimeout is the number of ticks without host traffic after which
	// the application is started
	IdleTimeout uint32

	// AlertInterval is the number of ticks between alerts before the first
	// host contact
	AlertInterval uint32

	// CommsTimeout is the number of ticks a page transfer or Read-Data
	// stream waits for the next host frame before it is abandoned
	CommsTimeout uint32

	// TxPollLimit bounds how often TxComplete is polled per frame
	TxPollLimit int

	// CleanFlagAddress is the EEPROM address of the 2-byte clean flag
	CleanFlagAddress uint16
}

// Option configures a Machine.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Node:             DefaultNode,
		Addressing:       protocol.AddressByID,
		PageSize:         DefaultPageSize,
		BootloaderStart:  DefaultBootloaderStart,
		Signature:        0x001E950F,
		VersionMajor:     2,
		VersionMinor:     1,
		IdleTimeout:      DefaultIdleTimeout,
		AlertInterval:    DefaultAlertInterval,
		CommsTimeout:     DefaultCommsTimeout,
		TxPollLimit:      DefaultTxPollLimit,
		CleanFlagAddress: DefaultCleanFlagAddress,
	}
}

// WithNode sets the node ID.
func WithNode(node uint8) Option {
	return func(c *Config) {
		c.Node = node
	}
}

// WithAddressing sets the addressing mode.
func WithAddressing(a protocol.Addressing) Option {
	return func(c *Config) {
		c.Addressing = a
	}
}

// WithPageSize sets the flash page size.
func WithPageSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.PageSize = size
		}
	}
}

// WithBootloaderStart sets the first protected flash address.
func WithBootloaderStart(addr uint32) Option {
	return func(c *Config) {
		c.BootloaderStart = addr
	}
}

// WithSignature sets the device signature reported by Get-Info.
func WithSignature(sig uint32) Option {
	return func(c *Config) {
		c.Signature = sig
	}
}

// WithVersion sets the bootloader version reported by Get-Info.
func WithVersion(major, minor uint8) Option {
	return func(c *Config) {
		c.VersionMajor = major
		c.VersionMinor = minor
	}
}

// WithIdleTimeout sets the idle timeout in ticks.
func WithIdleTimeout(ticks uint32) Option {
	return func(c *Config) {
		c.IdleTimeout = ticks
	}
}

// WithAlertInterval sets the alert interval in ticks.
func WithAlertInterval(ticks uint32) Option {
	return func(c *Config) {
		c.AlertInterval = ticks
	}
}

// WithCommsTimeout sets the transfer timeout in ticks.
func WithCommsTimeout(ticks uint32) Option {
	return func(c *Config) {
		c.CommsTimeout = ticks
	}
}

// WithTxPollLimit sets the transmit confirmation poll bound.
func WithTxPollLimit(polls int) Option {
	return func(c *Config) {
		if polls > 0 {
			c.TxPollLimit = polls
		}
	}
}

// WithCleanFlagAddress sets the EEPROM address of the clean flag.
func WithCleanFlagAddress(addr uint16) Option {
	return func(c *Config) {
		c.CleanFlagAddress = addr
	}
}
