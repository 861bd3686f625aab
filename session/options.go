package session

import (
	"net"

	"go.uber.org/zap"

	"github.com/joshuafuller/udpurl/internal/multicast"
	"github.com/joshuafuller/udpurl/internal/resolver"
	"github.com/joshuafuller/udpurl/internal/socket"
)

// Option is a functional option for Open.
//
// Options configure how a session is built, not what it connects to: the
// destination and socket parameters always come from the URL. All options
// are applied before any socket work starts.
//
// Example:
//
//	s, err := session.Open(ctx, "udp://239.1.1.1:5004", session.ModeRead,
//	    session.WithLogger(logger),
//	    session.WithNonBlocking(true),
//	)
type Option func(*settings) error

type settings struct {
	logger      *zap.Logger
	nonBlocking bool
	caps        *multicast.Capabilities
	resolver    *resolver.Resolver
	ifi         *net.Interface

	// Overridable collaborators; nil means the production implementation.
	factory          *socket.Factory
	manager          *multicast.Manager
	setSendBuffer    bufferFunc
	setReceiveBuffer bufferFunc
}

type bufferFunc func(conn *net.UDPConn, size int) error

// WithLogger sets the logger. The session adds its id as the "session" field.
// Without this option nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithNonBlocking makes Read and Write return ErrWouldBlock instead of
// waiting for the socket to become ready. Use RawDescriptor to wait on the
// socket with an external poller.
func WithNonBlocking(nonBlocking bool) Option {
	return func(s *settings) error {
		s.nonBlocking = nonBlocking
		return nil
	}
}

// WithCapabilities overrides the multicast facilities detected for the
// running OS. Capabilities are resolved once per process by default.
func WithCapabilities(caps multicast.Capabilities) Option {
	return func(s *settings) error {
		s.caps = &caps
		return nil
	}
}

// WithResolver replaces the system resolver, for example to resolve names
// from a fixed table.
func WithResolver(lookup resolver.LookupFunc) Option {
	return func(s *settings) error {
		s.resolver = resolver.NewWithLookup(lookup)
		return nil
	}
}

// WithInterface selects the interface multicast groups are joined on. It
// takes precedence over the interface implied by the localaddr URL option.
func WithInterface(ifi *net.Interface) Option {
	return func(s *settings) error {
		s.ifi = ifi
		return nil
	}
}
