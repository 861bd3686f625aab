package socket

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/joshuafuller/udpurl/internal/errors"
)

// SetSendBuffer sets SO_SNDBUF.
func SetSendBuffer(conn *net.UDPConn, size int) error {
	if err := conn.SetWriteBuffer(size); err != nil {
		return errors.New(errors.ErrBufferConfig, "set send buffer", err, fmt.Sprintf("size %d", size))
	}
	return nil
}

// SetReceiveBuffer sets SO_RCVBUF.
func SetReceiveBuffer(conn *net.UDPConn, size int) error {
	if err := conn.SetReadBuffer(size); err != nil {
		return errors.New(errors.ErrBufferConfig, "set receive buffer", err, fmt.Sprintf("size %d", size))
	}
	return nil
}

// Connect issues an OS-level connect so the kernel fixes the peer of conn to
// dest. Afterwards plain Write calls reach dest and datagrams from other
// peers are dropped by the kernel.
func Connect(conn *net.UDPConn, dest netip.AddrPort) error {
	rc, err := conn.SyscallConn()
	if err != nil {
		return errors.New(errors.ErrConnect, "connect", err, dest.String())
	}
	var cerr error
	if err := rc.Control(func(fd uintptr) { cerr = connectFD(fd, dest) }); err != nil {
		return errors.New(errors.ErrConnect, "connect", err, dest.String())
	}
	if cerr != nil {
		return errors.New(errors.ErrConnect, "connect", cerr, dest.String())
	}
	return nil
}

// RawDescriptor returns the OS handle of conn for use with an external
// poller. The handle stays owned by conn.
func RawDescriptor(conn *net.UDPConn) (uintptr, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return 0, errors.New(errors.ErrIO, "raw descriptor", err, "")
	}
	var handle uintptr
	if err := rc.Control(func(fd uintptr) { handle = fd }); err != nil {
		return 0, errors.New(errors.ErrIO, "raw descriptor", err, "")
	}
	return handle, nil
}
