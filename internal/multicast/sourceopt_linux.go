//go:build linux

package multicast

import (
	"os"

	"golang.org/x/sys/unix"
)

// encode lays the request out as Linux's struct ip_mreq_source: group,
// interface, source.
func (r ipMreqSource) encode() []byte {
	b := make([]byte, 0, 12)
	b = append(b, r.group[:]...)
	b = append(b, r.iface[:]...)
	return append(b, r.source[:]...)
}

func setIPv4SourceOption(fd uintptr, opt sourceOption, req ipMreqSource) error {
	name := unix.IP_ADD_SOURCE_MEMBERSHIP
	if opt == sourceBlock {
		name = unix.IP_BLOCK_SOURCE
	}
	// SetsockoptString passes the bytes through unchanged.
	if err := unix.SetsockoptString(int(fd), unix.IPPROTO_IP, name, string(req.encode())); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}
