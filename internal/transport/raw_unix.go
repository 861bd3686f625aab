//go:build unix

package transport

import (
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/joshuafuller/udpurl/internal/socket"
)

// receiveNow makes a single recv on the socket without waiting.
func (t *UDPTransport) receiveNow(buf []byte) (int, error) {
	var (
		n    int
		rerr error
	)
	err := t.raw.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), buf)
		return true
	})
	if err != nil {
		return 0, err
	}
	if rerr != nil {
		return 0, rerr
	}
	return n, nil
}

// sendNow makes a single send (connected) or sendto (dest valid) without
// waiting.
func (t *UDPTransport) sendNow(packet []byte, dest netip.AddrPort) (int, error) {
	var (
		n    int
		werr error
	)
	err := t.raw.Write(func(fd uintptr) bool {
		if dest.IsValid() {
			werr = unix.Sendto(int(fd), packet, 0, socket.Sockaddr(dest))
			if werr == nil {
				n = len(packet)
			}
			return true
		}
		n, werr = unix.Write(int(fd), packet)
		return true
	})
	if err != nil {
		return 0, err
	}
	if werr != nil {
		return 0, werr
	}
	return n, nil
}
