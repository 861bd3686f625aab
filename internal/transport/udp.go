package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	"github.com/joshuafuller/udpurl/internal/errors"
)

// UDPTransport implements Transport over a bound *net.UDPConn.
//
// In blocking mode the Go runtime poller provides the wait-for-readiness
// step. In non-blocking mode each call makes exactly one system call through
// the socket's syscall.RawConn and reports EAGAIN as errors.ErrWouldBlock.
type UDPTransport struct {
	conn        *net.UDPConn
	raw         syscall.RawConn
	nonBlocking bool
}

var _ Transport = (*UDPTransport)(nil)

// NewUDPTransport wraps conn. The transport takes ownership of conn.
func NewUDPTransport(conn *net.UDPConn, nonBlocking bool) (*UDPTransport, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, errors.New(errors.ErrIO, "wrap socket", err, "")
	}
	return &UDPTransport{conn: conn, raw: raw, nonBlocking: nonBlocking}, nil
}

// NonBlocking reports whether calls return ErrWouldBlock instead of waiting.
func (t *UDPTransport) NonBlocking() bool { return t.nonBlocking }

// Send transmits packet as one datagram.
func (t *UDPTransport) Send(ctx context.Context, packet []byte, dest netip.AddrPort) (int, error) {
	select {
	case <-ctx.Done():
		return 0, errors.New(errors.ErrTimeoutOrInterrupt, "send", ctx.Err(), "context done before send")
	default:
	}

	if t.nonBlocking {
		n, err := t.sendNow(packet, dest)
		if err != nil {
			return n, classify("send", err, destDetails(dest))
		}
		return n, nil
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return 0, errors.New(errors.ErrIO, "set write deadline", err, fmt.Sprintf("deadline %v", deadline))
		}
		defer func() { _ = t.conn.SetWriteDeadline(time.Time{}) }()
	}

	var (
		n   int
		err error
	)
	if dest.IsValid() {
		n, err = t.conn.WriteToUDPAddrPort(packet, dest)
	} else {
		n, err = t.conn.Write(packet)
	}
	if err != nil {
		return n, classify("send", err, destDetails(dest))
	}
	if n != len(packet) {
		return n, errors.New(errors.ErrIO, "send", fmt.Errorf("partial write: %d/%d bytes", n, len(packet)), destDetails(dest))
	}
	return n, nil
}

// Receive reads one datagram into buf.
func (t *UDPTransport) Receive(ctx context.Context, buf []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, errors.New(errors.ErrTimeoutOrInterrupt, "receive", ctx.Err(), "context done before receive")
	default:
	}

	if t.nonBlocking {
		n, err := t.receiveNow(buf)
		if err != nil {
			return 0, classify("receive", err, "")
		}
		return n, nil
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return 0, errors.New(errors.ErrIO, "set read deadline", err, fmt.Sprintf("deadline %v", deadline))
		}
		defer func() { _ = t.conn.SetReadDeadline(time.Time{}) }()
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		return 0, classify("receive", err, "")
	}
	return n, nil
}

// Close releases the socket.
func (t *UDPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	if err := t.conn.Close(); err != nil {
		return errors.New(errors.ErrIO, "close socket", err, "")
	}
	return nil
}

// classify maps a socket error onto the error taxonomy. Readiness signals
// (EAGAIN) become ErrWouldBlock; an expired deadline, EINTR or a socket
// closed under a waiting call become ErrTimeoutOrInterrupt; anything else is
// ErrIO.
func classify(op string, err error, details string) error {
	switch {
	case stderrors.Is(err, syscall.EAGAIN), stderrors.Is(err, syscall.EWOULDBLOCK):
		return errors.New(errors.ErrWouldBlock, op, err, details)
	case stderrors.Is(err, os.ErrDeadlineExceeded),
		stderrors.Is(err, net.ErrClosed),
		stderrors.Is(err, syscall.EINTR):
		return errors.New(errors.ErrTimeoutOrInterrupt, op, err, details)
	case stderrors.Is(err, errors.ErrUnsupported):
		return errors.New(errors.ErrUnsupported, op, err, details)
	default:
		return errors.New(errors.ErrIO, op, err, details)
	}
}

func destDetails(dest netip.AddrPort) string {
	if !dest.IsValid() {
		return "connected peer"
	}
	return "to " + dest.String()
}
