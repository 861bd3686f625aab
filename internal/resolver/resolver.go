// Package resolver maps the host and port of a udp:// URL to candidate socket
// addresses.
//
// Resolution is address-family aware: callers can pin the lookup to IPv4 or
// IPv6 (for example to match an already known destination) or leave it
// unspecified and receive candidates of both families, which the socket
// factory tries in order.
package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/joshuafuller/udpurl/internal/errors"
)

// Family is an IP address family.
type Family int

const (
	FamilyUnspec Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unspec"
	}
}

// Network returns the Go network name ("udp4", "udp6" or "udp").
func (f Family) Network() string {
	switch f {
	case FamilyIPv4:
		return "udp4"
	case FamilyIPv6:
		return "udp6"
	default:
		return "udp"
	}
}

// FamilyOf reports the family of addr. IPv4-mapped IPv6 addresses are IPv4.
func FamilyOf(addr netip.Addr) Family {
	switch {
	case !addr.IsValid():
		return FamilyUnspec
	case addr.Unmap().Is4():
		return FamilyIPv4
	default:
		return FamilyIPv6
	}
}

func (f Family) accepts(addr netip.Addr) bool {
	return f == FamilyUnspec || FamilyOf(addr) == f
}

// Query describes one resolution request.
type Query struct {
	// Host is a name or numeric address. Empty, or starting with '?', means
	// "unspecified".
	Host string
	Port int

	// Family restricts the candidates; FamilyUnspec returns both families.
	Family Family

	// Passive asks for a wildcard (bind-all) address when Host is
	// unspecified. Without it an unspecified host resolves to loopback.
	Passive bool

	// NumericOnly rejects names that would need a lookup.
	NumericOnly bool
}

// LookupFunc resolves host for network "ip", "ip4" or "ip6". It has the shape
// of (*net.Resolver).LookupNetIP.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Resolver resolves queries. The zero value is not usable; use New.
type Resolver struct {
	lookup LookupFunc
}

// New returns a Resolver backed by the system resolver.
func New() *Resolver {
	return &Resolver{lookup: net.DefaultResolver.LookupNetIP}
}

// NewWithLookup returns a Resolver that uses fn for name lookups.
func NewWithLookup(fn LookupFunc) *Resolver {
	return &Resolver{lookup: fn}
}

// IsUnspecifiedHost reports whether host denotes "any/unspecified".
func IsUnspecifiedHost(host string) bool {
	return host == "" || strings.HasPrefix(host, "?")
}

// Resolve returns the candidate addresses for q in preference order. It never
// returns an empty slice without an error.
func (r *Resolver) Resolve(ctx context.Context, q Query) ([]netip.AddrPort, error) {
	if q.Port < 0 || q.Port > 65535 {
		return nil, errors.New(errors.ErrResolution, "resolve", nil, fmt.Sprintf("port %d out of range", q.Port))
	}
	port := uint16(q.Port)

	var addrs []netip.Addr
	switch {
	case IsUnspecifiedHost(q.Host):
		addrs = unspecified(q.Family, q.Passive)
	default:
		found, err := r.lookupHost(ctx, q)
		if err != nil {
			return nil, err
		}
		addrs = found
	}

	candidates := make([]netip.AddrPort, 0, len(addrs))
	seen := make(map[netip.Addr]bool, len(addrs))
	for _, a := range addrs {
		a = a.Unmap()
		if !q.Family.accepts(a) || seen[a] {
			continue
		}
		seen[a] = true
		candidates = append(candidates, netip.AddrPortFrom(a, port))
	}
	if len(candidates) == 0 {
		return nil, errors.New(errors.ErrResolution, "resolve", nil,
			fmt.Sprintf("no %s address for %q", q.Family, q.Host))
	}
	return candidates, nil
}

// ResolveSource resolves a multicast source host, which must be a numeric
// address of the given family.
func (r *Resolver) ResolveSource(ctx context.Context, host string, family Family) (netip.Addr, error) {
	candidates, err := r.Resolve(ctx, Query{Host: host, Family: FamilyUnspec, NumericOnly: true})
	if err != nil {
		return netip.Addr{}, err
	}
	addr := candidates[0].Addr()
	if family != FamilyUnspec && FamilyOf(addr) != family {
		return netip.Addr{}, errors.New(errors.ErrInvalidSourceFilter, "resolve source", nil,
			fmt.Sprintf("%s is not an %s address", host, family))
	}
	return addr, nil
}

func (r *Resolver) lookupHost(ctx context.Context, q Query) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(q.Host); err == nil {
		return []netip.Addr{addr}, nil
	}
	if q.NumericOnly {
		return nil, errors.New(errors.ErrResolution, "resolve", nil,
			fmt.Sprintf("%q is not a numeric address", q.Host))
	}

	network := "ip"
	switch q.Family {
	case FamilyIPv4:
		network = "ip4"
	case FamilyIPv6:
		network = "ip6"
	}
	addrs, err := r.lookup(ctx, network, q.Host)
	if err != nil {
		return nil, errors.New(errors.ErrResolution, "resolve", err, fmt.Sprintf("lookup %s", q.Host))
	}
	return addrs, nil
}

func unspecified(family Family, passive bool) []netip.Addr {
	v4, v6 := netip.IPv4Unspecified(), netip.IPv6Unspecified()
	if !passive {
		v4, v6 = netip.AddrFrom4([4]byte{127, 0, 0, 1}), netip.IPv6Loopback()
	}
	switch family {
	case FamilyIPv4:
		return []netip.Addr{v4}
	case FamilyIPv6:
		return []netip.Addr{v6}
	default:
		return []netip.Addr{v4, v6}
	}
}
