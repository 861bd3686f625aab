//go:build !unix

package transport

import (
	"net/netip"

	"github.com/joshuafuller/udpurl/internal/errors"
)

func (t *UDPTransport) receiveNow([]byte) (int, error) {
	return 0, errors.ErrUnsupported
}

func (t *UDPTransport) sendNow([]byte, netip.AddrPort) (int, error) {
	return 0, errors.ErrUnsupported
}
