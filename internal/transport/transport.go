// Package transport owns the physical duplex byte stream under the
// link layer. Implementations carry bytes only; framing lives in
// protocol and reconnect policy in link.
package transport

import "errors"

var (
	ErrNotOpen = errors.New("transport: not open")
	ErrClosed  = errors.New("transport: closed")
)

// Transport is one physical duplex byte stream.
//
// ReadAvailable is a non-blocking poll: it returns whatever bytes are
// immediately available, possibly none, and never blocks past an
// instantaneous check. Close on an already-closed transport is a
// no-op.
type Transport interface {
	Open(endpoint string) error
	Close() error
	ReadAvailable() ([]byte, error)
	Write(p []byte) error
}
