// Package transport performs datagram I/O on a bound UDP socket.
//
// It decouples the session from the socket calls, so the session can be
// exercised against a mock transport and the blocking and non-blocking paths
// stay in one place.
package transport

import (
	"context"
	"net/netip"
)

// Transport sends and receives single datagrams.
//
// Implementations:
//   - UDPTransport: production transport over *net.UDPConn
type Transport interface {
	// Send transmits packet as one datagram.
	//
	// A valid dest selects the explicit-destination (sendto) path. An invalid
	// (zero) dest selects the connected-send path and requires the socket to
	// be connected at the OS level.
	//
	// Blocking transports wait until the socket is writable; a context
	// deadline bounds the wait. Non-blocking transports return
	// errors.ErrWouldBlock instead of waiting.
	Send(ctx context.Context, packet []byte, dest netip.AddrPort) (int, error)

	// Receive reads one datagram into buf and returns its length. A datagram
	// longer than buf is truncated by the OS.
	//
	// Blocking transports wait until a datagram is available; the wait ends
	// early with errors.ErrTimeoutOrInterrupt when the context deadline
	// passes or the socket is closed. Non-blocking transports return
	// errors.ErrWouldBlock when nothing is queued.
	Receive(ctx context.Context, buf []byte) (int, error)

	// Close releases the socket.
	Close() error
}
