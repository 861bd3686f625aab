//go:build !linux && !darwin && !freebsd && !solaris && !windows

package multicast

import (
	"github.com/joshuafuller/udpurl/internal/errors"
)

func setIPv4SourceOption(uintptr, sourceOption, ipMreqSource) error {
	return errors.New(errors.ErrUnsupported, "set source membership", nil, "IPv4 source requests are not available on this platform")
}
