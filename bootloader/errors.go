package bootloader

import (
	"fmt"
)

// SignatureMismatchError indicates that the device signature doesn't match
// the one the image was built for. Nothing has been written.
type SignatureMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("signature mismatch: image expects 0x%08X, device has 0x%08X",
		e.Expected, e.Actual)
}

// VerifyMismatchError reports the first allocated byte of a page that read
// back differently from the image.
type VerifyMismatchError struct {
	PageAddress uint32
	Offset      int
	Expected    byte
	Actual      byte
}

func (e *VerifyMismatchError) Error() string {
	return fmt.Sprintf("verify mismatch at 0x%08X: expected 0x%02X, got 0x%02X",
		e.PageAddress+uint32(e.Offset), e.Expected, e.Actual)
}

// PageError reports a page operation that failed on every attempt.
type PageError struct {
	// Operation is "write", "verify" or "read"
	Operation   string
	PageAddress uint32
	Attempts    int
	Err         error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("%s page 0x%08X failed after %d attempts: %v",
		e.Operation, e.PageAddress, e.Attempts, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}
