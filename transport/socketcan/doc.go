// Package socketcan implements transport.Transport on a Linux raw CAN
// socket.
//
// A background goroutine polls the socket and queues standard data frames.
// When the include-only filter is active the include list is mirrored into
// the kernel filter so unrelated bus traffic never reaches user space.
//
//	t, err := socketcan.Open("can0", transport.DefaultQueueSize)
//
// The transport registers itself as "socketcan"; the "iface" option selects
// the interface (default can0).
package socketcan
