package multicast

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/joshuafuller/udpurl/internal/errors"
	"github.com/joshuafuller/udpurl/internal/resolver"
)

// Strategy is the per-family set of multicast socket options. The group and
// source addresses passed in are *net.UDPAddr of the strategy's family.
type Strategy interface {
	Family() resolver.Family

	// SetHops sets the outbound TTL (IPv4) or hop limit (IPv6).
	SetHops(hops int) error

	JoinGroup(ifi *net.Interface, group net.Addr) error
	LeaveGroup(ifi *net.Interface, group net.Addr) error
	JoinSourceSpecificGroup(ifi *net.Interface, group, source net.Addr) error
	ExcludeSourceSpecificGroup(ifi *net.Interface, group, source net.Addr) error
}

// StrategyFunc builds the Strategy for a socket of the given family on a
// host with caps.
type StrategyFunc func(family resolver.Family, conn net.PacketConn, caps Capabilities) (Strategy, error)

// NewStrategy wraps conn with golang.org/x/net/ipv4 or ipv6. When the host
// lacks the generic group-source request but has the IPv4-only one, IPv4
// source filters are set with IP_ADD_SOURCE_MEMBERSHIP and IP_BLOCK_SOURCE
// instead.
func NewStrategy(family resolver.Family, conn net.PacketConn, caps Capabilities) (Strategy, error) {
	switch family {
	case resolver.FamilyIPv4:
		base := ipv4Strategy{ipv4.NewPacketConn(conn)}
		if caps.GroupSourceRequest || !caps.IPv4SourceRequest {
			return base, nil
		}
		sc, ok := conn.(syscall.Conn)
		if !ok {
			return nil, errors.New(errors.ErrUnsupported, "multicast", nil, fmt.Sprintf("%T has no raw descriptor", conn))
		}
		raw, err := sc.SyscallConn()
		if err != nil {
			return nil, errors.New(errors.ErrUnsupported, "multicast", err, "raw descriptor")
		}
		return ipv4SourceStrategy{ipv4Strategy: base, raw: raw}, nil
	case resolver.FamilyIPv6:
		return ipv6Strategy{ipv6.NewPacketConn(conn)}, nil
	default:
		return nil, errors.New(errors.ErrUnsupported, "multicast", nil, fmt.Sprintf("address family %s", family))
	}
}

type ipv4Strategy struct {
	*ipv4.PacketConn
}

func (ipv4Strategy) Family() resolver.Family { return resolver.FamilyIPv4 }

func (s ipv4Strategy) SetHops(hops int) error { return s.SetMulticastTTL(hops) }

type ipv6Strategy struct {
	*ipv6.PacketConn
}

func (ipv6Strategy) Family() resolver.Family { return resolver.FamilyIPv6 }

func (s ipv6Strategy) SetHops(hops int) error { return s.SetMulticastHopLimit(hops) }

// sourceOption selects between joining and blocking a source.
type sourceOption int

const (
	sourceJoin sourceOption = iota
	sourceBlock
)

// ipMreqSource holds the addresses of an ip_mreq_source request. Each
// platform lays the fields out in its own order.
type ipMreqSource struct {
	group  [4]byte
	iface  [4]byte
	source [4]byte
}

// ipv4SourceStrategy is ipv4Strategy with source filters set through the
// IPv4-only socket options.
type ipv4SourceStrategy struct {
	ipv4Strategy
	raw syscall.RawConn
}

func (s ipv4SourceStrategy) JoinSourceSpecificGroup(ifi *net.Interface, group, source net.Addr) error {
	return s.setSource(sourceJoin, ifi, group, source)
}

func (s ipv4SourceStrategy) ExcludeSourceSpecificGroup(ifi *net.Interface, group, source net.Addr) error {
	return s.setSource(sourceBlock, ifi, group, source)
}

func (s ipv4SourceStrategy) setSource(opt sourceOption, ifi *net.Interface, group, source net.Addr) error {
	req, err := newIPMreqSource(ifi, group, source)
	if err != nil {
		return err
	}
	var serr error
	if err := s.raw.Control(func(fd uintptr) {
		serr = setIPv4SourceOption(fd, opt, req)
	}); err != nil {
		return err
	}
	return serr
}

func newIPMreqSource(ifi *net.Interface, group, source net.Addr) (ipMreqSource, error) {
	var req ipMreqSource
	g, ok := ipv4Of(group)
	if !ok {
		return req, fmt.Errorf("group %v is not an IPv4 address", group)
	}
	src, ok := ipv4Of(source)
	if !ok {
		return req, fmt.Errorf("source %v is not an IPv4 address", source)
	}
	req.group, req.source = g, src
	if ifi != nil {
		addrs, err := ifi.Addrs()
		if err != nil {
			return req, err
		}
		found := false
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok {
				if ip4 := ipnet.IP.To4(); ip4 != nil {
					copy(req.iface[:], ip4)
					found = true
					break
				}
			}
		}
		if !found {
			return req, fmt.Errorf("interface %s has no IPv4 address", ifi.Name)
		}
	}
	return req, nil
}

func ipv4Of(addr net.Addr) ([4]byte, bool) {
	var ip net.IP
	switch a := addr.(type) {
	case *net.UDPAddr:
		ip = a.IP
	case *net.IPAddr:
		ip = a.IP
	}
	var out [4]byte
	ip4 := ip.To4()
	if ip4 == nil {
		return out, false
	}
	copy(out[:], ip4)
	return out, true
}
