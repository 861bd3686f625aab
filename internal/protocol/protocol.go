// Package protocol holds the constants of the udp:// URL transport.
package protocol

// Scheme is the only URL scheme accepted by the transport.
const Scheme = "udp"

// Defaults applied when the URL does not override them.
const (
	// DefaultTTL is the multicast TTL / hop limit for output sessions.
	DefaultTTL = 16

	// DefaultSendBufferSize limits SO_SNDBUF for output sessions to keep
	// queued latency low.
	DefaultSendBufferSize = 32768

	// DefaultReceiveBufferSize is the SO_RCVBUF request for input sessions,
	// large enough for the biggest UDP payload on systems with a small
	// default.
	DefaultReceiveBufferSize = 65536

	// DefaultMaxPacketSize is an Ethernet MTU minus IPv4 and UDP headers.
	DefaultMaxPacketSize = 1472
)

// Limits enforced by the option parser.
const (
	MaxTTL     = 255
	MaxPort    = 65535
	MaxSources = 32
)

// Query keys recognized in the URL.
const (
	KeyTTL        = "ttl"
	KeyLocalPort  = "localport"
	KeyPacketSize = "pkt_size"
	KeyBufferSize = "buffer_size"
	KeyReuse      = "reuse"
	KeyConnect    = "connect"
	KeyLocalAddr  = "localaddr"
	KeySources    = "sources"
	KeyBlock      = "block"
)

// Keys lists every recognized query key in a stable order.
var Keys = []string{
	KeyTTL, KeyLocalPort, KeyPacketSize, KeyBufferSize, KeyReuse,
	KeyConnect, KeyLocalAddr, KeySources, KeyBlock,
}
