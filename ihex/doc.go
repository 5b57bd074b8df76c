// Package ihex loads and writes Intel-HEX firmware images.
//
// An Intel-HEX file is line oriented. Every record carries its own
// checksum:
//
//	:[BYTE COUNT][ADDRESS][RECTYP][DATA...][CHECKSUM]
//
// Records are loaded into an Image, a fixed-size byte buffer with a
// parallel bitmap of which bytes the file defined. Bytes the file does not
// define read as 0xFF, the value of erased flash, and are ignored when a
// page is verified.
//
// # Basic Usage
//
//	img, err := ihex.ReadFile("firmware.hex", 32*1024, ihex.Flash)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i := 0; i < img.PageCount(128); i++ {
//	    data, mask := img.Page(uint32(i*128), 128)
//	    // ...
//	}
//
// # Address Records
//
// Extended Segment Address records set the base to value << 4 and Extended
// Linear Address records set it to value << 16. Data bytes are stored at
// base + record address.
//
// # Validation
//
// A checksum mismatch, a data byte outside the image, or an unknown record
// type rejects the whole file. There is no partial recovery.
package ihex
