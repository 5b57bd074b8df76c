package protocol

import (
	"errors"
	"fmt"
)

// ProtocolError represents a malformed, truncated or unexpected frame.
// The device drops such frames; the host treats them as a failed exchange.
type ProtocolError struct {
	// Operation is the decode step that failed
	Operation string

	// Reason describes what was wrong with the frame
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("protocol error: %s", e.Reason)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Reason)
}

// IsProtocolError returns true if err is, or wraps, a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// StatusError reports that the device answered a command with a failure
// confirmation.
type StatusError struct {
	// Command is the command that was rejected
	Command MessageType
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s rejected by device", e.Command)
}
