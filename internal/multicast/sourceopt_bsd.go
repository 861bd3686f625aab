//go:build darwin || freebsd || solaris

package multicast

import (
	"os"

	"golang.org/x/sys/unix"
)

// encode lays the request out as the BSD and Solaris struct ip_mreq_source:
// group, source, interface.
func (r ipMreqSource) encode() []byte {
	b := make([]byte, 0, 12)
	b = append(b, r.group[:]...)
	b = append(b, r.source[:]...)
	return append(b, r.iface[:]...)
}

func setIPv4SourceOption(fd uintptr, opt sourceOption, req ipMreqSource) error {
	name := unix.IP_ADD_SOURCE_MEMBERSHIP
	if opt == sourceBlock {
		name = unix.IP_BLOCK_SOURCE
	}
	if err := unix.SetsockoptString(int(fd), unix.IPPROTO_IP, name, string(req.encode())); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}
