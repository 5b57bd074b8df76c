package bootloader

import (
	"time"

	"github.com/moffa90/go-canboot/protocol"
)

// Defaults for the host side of an upload.
const (
	DefaultNode         = 0x01
	DefaultPageSize     = 128
	DefaultRetries      = 10
	DefaultReplyTimeout = 500 * time.Millisecond
	DefaultAlertTimeout = 10 * time.Second
	DefaultSendTimeout  = 100 * time.Millisecond
	DefaultRetryDelay   = 20 * time.Millisecond
)

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during programming to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Node is the ID of the bootloader being programmed
	Node uint8

	// Addressing must match the firmware of the target bootloader
	Addressing protocol.Addressing

	// PageSize is the flash page size of the target
	PageSize int

	// Retries bounds the attempts for each page write and each page verify
	Retries int

	// ReplyTimeout bounds the wait for each reply frame. It must cover a
	// flash page erase and program, which delays the last Write-Data reply.
	ReplyTimeout time.Duration

	// AlertTimeout bounds the wait for the bootloader's alert after reset
	AlertTimeout time.Duration

	// SendTimeout bounds each transmission
	SendTimeout time.Duration

	// RetryDelay is the pause between attempts
	RetryDelay time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Node:         DefaultNode,
		Addressing:   protocol.AddressByID,
		PageSize:     DefaultPageSize,
		Retries:      DefaultRetries,
		ReplyTimeout: DefaultReplyTimeout,
		AlertTimeout: DefaultAlertTimeout,
		SendTimeout:  DefaultSendTimeout,
		RetryDelay:   DefaultRetryDelay,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track programming progress.
//
// Example:
//
//	prog := bootloader.New(t,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithNode selects the node to program.
func WithNode(node uint8) Option {
	return func(c *Config) {
		c.Node = node
	}
}

// WithAddressing selects where the node ID travels on the wire.
func WithAddressing(a protocol.Addressing) Option {
	return func(c *Config) {
		c.Addressing = a
	}
}

// WithPageSize sets the target's flash page size. Sizes that do not fit a
// Write-Memory length field are ignored.
//
// Example:
//
//	prog := bootloader.New(t, bootloader.WithPageSize(256))
func WithPageSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= 0xFFFF {
			c.PageSize = size
		}
	}
}

// WithRetries sets the number of attempts for each page write and each page
// verify. Values below 1 are ignored.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 1 {
			c.Retries = retries
		}
	}
}

// WithTimeout sets the reply timeout.
//
// Example:
//
//	prog := bootloader.New(t, bootloader.WithTimeout(2*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ReplyTimeout = timeout
		}
	}
}

// WithAlertTimeout sets how long to wait for the bootloader to announce
// itself after reset.
func WithAlertTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.AlertTimeout = timeout
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.RetryDelay = delay
		}
	}
}
