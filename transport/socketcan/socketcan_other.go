//go:build !linux

package socketcan

import (
	"errors"

	"github.com/moffa90/go-canboot/transport"
)

// ErrUnsupported is returned on platforms without SocketCAN.
var ErrUnsupported = errors.New("socketcan is only available on linux")

func init() {
	transport.Register("socketcan", func(opts transport.Options) (transport.Transport, error) {
		return nil, ErrUnsupported
	})
}

// Open always fails outside Linux.
func Open(iface string, queueSize int) (transport.Transport, error) {
	return nil, ErrUnsupported
}
