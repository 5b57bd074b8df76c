// Package bootloader provides a high-level API for uploading firmware to CAN
// bootloader nodes.
//
// # Overview
//
// This package orchestrates the complete upload sequence:
//   - Resetting the node into its bootloader and waiting for its alert
//   - Checking the device signature against the one the image targets
//   - Writing and verifying every page in increasing address order
//   - Resetting the node into the application
//
// # Basic Usage
//
//	t, err := transport.Open("socketcan", transport.Options{"iface": "can0"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	img, err := ihex.ReadFile("firmware.hex", 32*1024, ihex.Flash)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prog := bootloader.New(t, bootloader.WithNode(5))
//	if err := prog.Upload(context.Background(), img, 0x001E950F); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration Options
//
//	prog := bootloader.New(t,
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithLogger(myLogger),
//	    bootloader.WithNode(5),
//	    bootloader.WithAddressing(protocol.AddressInPayload),
//	    bootloader.WithPageSize(128),
//	    bootloader.WithRetries(10),
//	    bootloader.WithTimeout(500*time.Millisecond),
//	)
//
// # Retries
//
// Every page is written and then read back. Both steps are retried up to
// the configured bound, and a page whose read-back differs from the image
// in any allocated byte is written again. Rewriting a page is idempotent, so
// a retry never disturbs pages already written. Exhausting the retries for
// any page aborts the upload with a *PageError.
//
// # Context Support
//
// The context is checked between pages. A page in progress is always
// finished, so the node's page buffer is never left armed.
//
// # Error Handling
//
// The package provides structured error types:
//   - SignatureMismatchError: the device is not the part the image targets
//   - VerifyMismatchError: a page read back differently
//   - PageError: a page operation failed on every attempt
//   - protocol.StatusError: the bootloader refused a command
//   - transport.ErrTimeout: a reply did not arrive in time
package bootloader
