//go:build windows

package socket

import (
	"net"
	"net/netip"

	"golang.org/x/sys/windows"
)

// setReuseAddr enables SO_REUSEADDR. Windows has no SO_REUSEPORT; on Windows
// SO_REUSEADDR alone lets multicast receivers share a port.
func setReuseAddr(fd uintptr) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
}

func connectFD(fd uintptr, dest netip.AddrPort) error {
	addr := dest.Addr()
	if addr.Is4() || addr.Is4In6() {
		return windows.Connect(windows.Handle(fd), &windows.SockaddrInet4{Port: int(dest.Port()), Addr: addr.Unmap().As4()})
	}
	sa := &windows.SockaddrInet6{Port: int(dest.Port()), Addr: addr.As16()}
	if zone := addr.Zone(); zone != "" {
		if ifi, err := net.InterfaceByName(zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return windows.Connect(windows.Handle(fd), sa)
}
