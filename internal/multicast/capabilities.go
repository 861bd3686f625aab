package multicast

import "runtime"

// Capabilities records which optional multicast facilities the host OS
// offers. It is resolved once (see DetectCapabilities) and handed to the
// Manager, so tests and callers on unusual platforms can override it.
type Capabilities struct {
	// GroupSourceRequest is the protocol-independent source filter API
	// (MCAST_JOIN_SOURCE_GROUP / MCAST_BLOCK_SOURCE, RFC 3678). It covers
	// both IPv4 and IPv6.
	GroupSourceRequest bool

	// IPv4SourceRequest is the IPv4-only source filter API
	// (IP_ADD_SOURCE_MEMBERSHIP / IP_BLOCK_SOURCE).
	IPv4SourceRequest bool
}

// DetectCapabilities reports the facilities available on the running OS.
func DetectCapabilities() Capabilities {
	return capabilitiesFor(runtime.GOOS)
}

func capabilitiesFor(goos string) Capabilities {
	switch goos {
	case "linux", "android", "darwin", "ios", "freebsd", "solaris", "illumos":
		return Capabilities{GroupSourceRequest: true, IPv4SourceRequest: true}
	case "windows":
		// The group_source_req structures exist in the Windows SDK but do
		// not behave as on Linux; only the IPv4 API is used there.
		return Capabilities{IPv4SourceRequest: true}
	default:
		return Capabilities{}
	}
}

// SourceFiltering reports whether source filters can be applied to a group
// of the given family.
func (c Capabilities) SourceFiltering(ipv6 bool) bool {
	if ipv6 {
		return c.GroupSourceRequest
	}
	return c.GroupSourceRequest || c.IPv4SourceRequest
}
