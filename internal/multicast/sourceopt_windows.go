//go:build windows

package multicast

import (
	"os"

	"golang.org/x/sys/windows"
)

// From ws2ipdef.h.
const (
	ipAddSourceMembership = 15
	ipBlockSource         = 17
)

// encode lays the request out as the Winsock struct ip_mreq_source: group,
// source, interface.
func (r ipMreqSource) encode() []byte {
	b := make([]byte, 0, 12)
	b = append(b, r.group[:]...)
	b = append(b, r.source[:]...)
	return append(b, r.iface[:]...)
}

func setIPv4SourceOption(fd uintptr, opt sourceOption, req ipMreqSource) error {
	name := int32(ipAddSourceMembership)
	if opt == sourceBlock {
		name = ipBlockSource
	}
	b := req.encode()
	if err := windows.Setsockopt(windows.Handle(fd), windows.IPPROTO_IP, name, &b[0], int32(len(b))); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}
