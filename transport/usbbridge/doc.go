// Package usbbridge implements transport.Transport for a USB-CAN adapter
// that exchanges framed packets over a pair of bulk endpoints.
//
// # Packet Format
//
//	[0xA5][TYPE][LEN][PAYLOAD...][CRC_H][CRC_L]
//
// FRAME packets carry one frame in the 11-byte protocol encoding. ALIVE
// packets are exchanged periodically; the link is reported down when the
// adapter misses three periods. An OVERFLOW packet means the adapter dropped
// received frames, which surfaces as transport.ErrOverflow so the caller
// drains instead of trusting the next reply.
//
// The transport registers itself as "usbbridge" with the options vid, pid,
// in, out, alive and queue.
package usbbridge
