// Package multicast manages group membership, TTL and source filters for a
// session socket whose destination is a multicast group.
//
// Family-specific socket options live behind Strategy (one implementation
// per address family); OS facility checks go through Capabilities, which the
// caller resolves once and passes in.
package multicast

import (
	"fmt"
	"net"
	"net/netip"

	"go.uber.org/zap"

	"github.com/joshuafuller/udpurl/internal/errors"
	"github.com/joshuafuller/udpurl/internal/resolver"
)

// Manager attaches multicast groups to sockets.
type Manager struct {
	caps        Capabilities
	newStrategy StrategyFunc
	logger      *zap.Logger
}

// NewManager returns a Manager using caps and the x/net strategies.
func NewManager(caps Capabilities, logger *zap.Logger) *Manager {
	return NewManagerWithStrategy(caps, logger, NewStrategy)
}

// NewManagerWithStrategy returns a Manager that builds strategies with fn.
func NewManagerWithStrategy(caps Capabilities, logger *zap.Logger, fn StrategyFunc) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{caps: caps, newStrategy: fn, logger: logger}
}

// Capabilities returns the facilities the manager assumes.
func (m *Manager) Capabilities() Capabilities { return m.caps }

// Attach prepares group operations on conn for the multicast address group.
// ifi selects the interface used for joins; nil lets the kernel choose.
func (m *Manager) Attach(conn net.PacketConn, group netip.AddrPort, ifi *net.Interface) (*Group, error) {
	addr := group.Addr().Unmap()
	if !addr.IsMulticast() {
		return nil, errors.New(errors.ErrJoin, "attach group", nil, fmt.Sprintf("%s is not a multicast address", addr))
	}
	family := resolver.FamilyOf(addr)
	s, err := m.newStrategy(family, conn, m.caps)
	if err != nil {
		return nil, err
	}
	return &Group{
		caps:     m.caps,
		strategy: s,
		addr:     udpAddr(netip.AddrPortFrom(addr, group.Port())),
		ifi:      ifi,
		logger:   m.logger.With(zap.Stringer("group", group)),
	}, nil
}

// Group is the multicast state of one socket. Membership acquired through
// Join or SetSourceFilter is released by the first Leave call only.
type Group struct {
	caps     Capabilities
	strategy Strategy
	addr     *net.UDPAddr
	ifi      *net.Interface
	logger   *zap.Logger
	joined   bool
}

// Family returns the group's address family.
func (g *Group) Family() resolver.Family { return g.strategy.Family() }

// Joined reports whether the socket currently holds membership.
func (g *Group) Joined() bool { return g.joined }

// SetTTL sets the TTL (IPv4) or hop limit (IPv6) of outgoing datagrams.
func (g *Group) SetTTL(ttl int) error {
	if err := g.strategy.SetHops(ttl); err != nil {
		op := "set IP_MULTICAST_TTL"
		if g.Family() == resolver.FamilyIPv6 {
			op = "set IPV6_MULTICAST_HOPS"
		}
		return errors.New(errors.ErrSetOption, op, err, fmt.Sprintf("ttl %d", ttl))
	}
	return nil
}

// Join performs an any-source join.
func (g *Group) Join() error {
	if err := g.strategy.JoinGroup(g.ifi, g.addr); err != nil {
		return errors.New(errors.ErrJoin, "join group", err, g.addr.IP.String())
	}
	g.joined = true
	g.logger.Debug("joined multicast group")
	return nil
}

// SetSourceFilter applies a source-specific filter.
//
// With include, the socket joins the group once per source and no
// any-source join happens; at least one source is required. Without include,
// the socket makes an any-source join (unless already joined) and then blocks
// each source.
func (g *Group) SetSourceFilter(sources []netip.Addr, include bool) error {
	if include && len(sources) == 0 {
		return errors.New(errors.ErrInvalidSourceFilter, "set source filter", nil, "inclusive filter needs at least one source")
	}
	if len(sources) == 0 {
		if g.joined {
			return nil
		}
		return g.Join()
	}

	ipv6 := g.Family() == resolver.FamilyIPv6
	if !g.caps.SourceFiltering(ipv6) {
		return errors.New(errors.ErrUnsupported, "set source filter", nil,
			fmt.Sprintf("source-specific multicast is not available for %s on this platform", g.Family()))
	}
	for _, src := range sources {
		if resolver.FamilyOf(src) != g.Family() {
			return errors.New(errors.ErrInvalidSourceFilter, "set source filter", nil,
				fmt.Sprintf("source %s does not match group family %s", src, g.Family()))
		}
	}

	if !include && !g.joined {
		if err := g.Join(); err != nil {
			return err
		}
	}

	for _, src := range sources {
		source := udpAddr(netip.AddrPortFrom(src.Unmap(), 0))
		if include {
			if err := g.strategy.JoinSourceSpecificGroup(g.ifi, g.addr, source); err != nil {
				return errors.New(errors.ErrJoin, "join source group", err, src.String())
			}
			g.joined = true
			g.logger.Debug("joined source", zap.Stringer("source", src))
			continue
		}
		if err := g.strategy.ExcludeSourceSpecificGroup(g.ifi, g.addr, source); err != nil {
			return errors.New(errors.ErrJoin, "block source", err, src.String())
		}
		g.logger.Debug("blocked source", zap.Stringer("source", src))
	}
	return nil
}

// Leave drops the membership. It is a no-op when the socket holds none, so
// membership is released at most once.
func (g *Group) Leave() error {
	if !g.joined {
		return nil
	}
	g.joined = false
	if err := g.strategy.LeaveGroup(g.ifi, g.addr); err != nil {
		return errors.New(errors.ErrJoin, "leave group", err, g.addr.IP.String())
	}
	g.logger.Debug("left multicast group")
	return nil
}

func udpAddr(ap netip.AddrPort) *net.UDPAddr {
	return net.UDPAddrFromAddrPort(ap)
}
