// Package transport defines how the host reaches a CAN bus.
//
// A Transport sends single frames and receives frames queued by a background
// reader. Receiving is always bounded: a timeout is reported as ErrTimeout
// and is not fatal. Callers Drain the queue before starting an exchange so
// that a stale reply is never mistaken for a fresh one.
//
// Identifier filtering keeps unrelated bus traffic away from Receive:
//
//	t.ClearFilter()
//	t.SetFilter(codec.ID(protocol.MsgGetInfo), transport.Include)
//	t.SetFilterMode(transport.FilterIncludeOnly)
//
// Implementations live in sub-packages and register themselves by name:
//
//	import _ "github.com/moffa90/go-canboot/transport/socketcan"
//
//	opts, _ := transport.ParseOptions("iface=can0")
//	t, err := transport.Open("socketcan", opts)
package transport
