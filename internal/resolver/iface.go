package resolver

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/joshuafuller/udpurl/internal/errors"
)

// InterfaceForAddr returns the network interface that has addr assigned.
//
// Multicast readers that were given an explicit local address use it to pick
// the interface the group is joined on.
func InterfaceForAddr(addr netip.Addr) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.New(errors.ErrResolution, "list interfaces", err, "")
	}
	return interfaceForAddr(addr.Unmap(), ifaces, func(ifi net.Interface) ([]net.Addr, error) {
		return ifi.Addrs()
	})
}

func interfaceForAddr(addr netip.Addr, ifaces []net.Interface, addrsOf func(net.Interface) ([]net.Addr, error)) (*net.Interface, error) {
	for i := range ifaces {
		addrs, err := addrsOf(ifaces[i])
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip, ok := netip.AddrFromSlice(ipnet.IP)
			if !ok {
				continue
			}
			if ip.Unmap() == addr.WithZone("") {
				return &ifaces[i], nil
			}
		}
	}
	return nil, errors.New(errors.ErrResolution, "lookup interface", nil,
		fmt.Sprintf("no interface has address %s", addr))
}
