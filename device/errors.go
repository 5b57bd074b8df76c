package device

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-canboot/protocol"
)

var (
	// ErrReset is returned by Step after a Reset command reset the CPU
	ErrReset = errors.New("device reset")

	// ErrApplicationStarted is returned by Step after control passed to
	// the application
	ErrApplicationStarted = errors.New("application started")
)

// TxTimeoutError reports a frame whose transmission was never confirmed.
// It moves the machine into ModeError, which only a hardware reset leaves.
type TxTimeoutError struct {
	Frame protocol.Frame
	Polls int
}

func (e *TxTimeoutError) Error() string {
	return fmt.Sprintf("transmit of %s not confirmed after %d polls", e.Frame, e.Polls)
}
