// Package integration exercises sessions against the host's real network
// interfaces. Tests skip when the host has no usable multicast route.
package integration

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joshuafuller/udpurl/session"
)

var nextGroup atomic.Uint32

// freshGroup returns an administratively scoped group and a free port so
// parallel runs do not see each other's traffic.
func freshGroup(t *testing.T) (netip.Addr, int) {
	t.Helper()
	n := nextGroup.Add(1)
	group := netip.AddrFrom4([4]byte{239, 255, byte(time.Now().UnixNano() % 200), byte(n)})

	first, err := session.Open(context.Background(), "udp://127.0.0.1:0", session.ModeRead)
	if err != nil {
		t.Fatalf("Open(port finder) error = %v", err)
	}
	port := first.LocalPort()
	_ = first.Close()
	return group, port
}

// multicastInterfaces returns the up, multicast-capable interfaces that carry
// an IPv4 address.
func multicastInterfaces(t *testing.T) []net.Interface {
	t.Helper()
	ifaces, err := net.Interfaces()
	if err != nil {
		t.Fatalf("net.Interfaces() failed: %v", err)
	}

	var usable []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if interfaceIPv4(iface).IsValid() {
			usable = append(usable, iface)
		}
	}
	return usable
}

// interfaceIPv4 returns the first IPv4 address of iface.
func interfaceIPv4(iface net.Interface) netip.Addr {
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				a, _ := netip.AddrFromSlice(ip4)
				return a
			}
		}
	}
	return netip.Addr{}
}

// openReader opens a multicast reader or skips the test when the host cannot
// join groups.
func openReader(t *testing.T, rawURL string, opts ...session.Option) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), rawURL, session.ModeRead, opts...)
	if stderrors.Is(err, session.ErrJoin) {
		t.Skipf("multicast join not available: %v", err)
	}
	if err != nil {
		t.Fatalf("Open(%q) error = %v", rawURL, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// pump writes payload to w every 20ms until stop is closed. Send errors are
// reported on the returned channel.
func pump(w *session.Session, payload []byte, stop <-chan struct{}) <-chan error {
	errs := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := w.Write(payload); err != nil {
					errs <- err
					return
				}
			}
		}
	}()
	return errs
}

// receiveOrSkip waits for one datagram; a host without a multicast route
// never delivers it, which skips the test.
func receiveOrSkip(t *testing.T, r *session.Session, sendErrs <-chan error) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	buf := make([]byte, r.MaxPacketSize())
	n, err := r.ReadContext(ctx, buf)
	if err != nil {
		select {
		case sendErr := <-sendErrs:
			t.Skipf("multicast send not routable: %v", sendErr)
		default:
		}
		if stderrors.Is(err, session.ErrTimeoutOrInterrupt) {
			t.Skip("no multicast loopback delivery on this host")
		}
		t.Fatalf("ReadContext() error = %v", err)
	}
	return string(buf[:n])
}

func groupURL(group netip.Addr, port int, query string) string {
	u := fmt.Sprintf("udp://%s:%d", group, port)
	if query != "" {
		u += "?" + query
	}
	return u
}
