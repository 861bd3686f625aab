//go:build !unix && !windows

package socket

import (
	"net/netip"

	"github.com/joshuafuller/udpurl/internal/errors"
)

func setReuseAddr(uintptr) error {
	return errors.ErrUnsupported
}

func connectFD(uintptr, netip.AddrPort) error {
	return errors.ErrUnsupported
}
