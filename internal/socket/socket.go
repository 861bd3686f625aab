// Package socket creates, binds and configures the datagram socket behind a
// session.
//
// The factory walks the local bind candidates produced by the resolver and
// keeps the first one for which the OS can allocate a socket. Address reuse
// is applied before bind through net.ListenConfig.Control, so a reader can
// share a port with other processes. Multicast readers may first try to bind
// the group address itself and fall back to the wildcard address.
package socket

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"syscall"

	"go.uber.org/zap"

	"github.com/joshuafuller/udpurl/internal/errors"
	"github.com/joshuafuller/udpurl/internal/resolver"
)

// ListenFunc opens a bound UDP socket. It has the shape of
// (*net.ListenConfig).ListenPacket with the config passed explicitly.
type ListenFunc func(ctx context.Context, lc *net.ListenConfig, network, address string) (net.PacketConn, error)

func listenPacket(ctx context.Context, lc *net.ListenConfig, network, address string) (net.PacketConn, error) {
	return lc.ListenPacket(ctx, network, address)
}

// Request describes the socket to create.
type Request struct {
	// Candidates are the local bind addresses in preference order.
	Candidates []netip.AddrPort

	// Group, when valid, is tried as the bind address before the candidate
	// of the same family. Used for read-only multicast sessions.
	Group netip.AddrPort

	// Reuse enables SO_REUSEADDR before bind.
	Reuse bool
}

// Socket is a bound UDP socket.
type Socket struct {
	Conn *net.UDPConn

	// Local is the bound address as reported by the OS. Its port is the
	// authoritative local port.
	Local netip.AddrPort

	// BoundToGroup reports whether the socket is bound to the multicast
	// group address instead of a wildcard/local address.
	BoundToGroup bool
}

// Family returns the address family of the bound socket.
func (s *Socket) Family() resolver.Family {
	return resolver.FamilyOf(s.Local.Addr())
}

// Factory creates sockets.
type Factory struct {
	listen ListenFunc
	logger *zap.Logger
}

// NewFactory returns a Factory that opens real OS sockets.
func NewFactory(logger *zap.Logger) *Factory {
	return NewFactoryWithListen(logger, listenPacket)
}

// NewFactoryWithListen returns a Factory that opens sockets through fn.
func NewFactoryWithListen(logger *zap.Logger, fn ListenFunc) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{listen: fn, logger: logger}
}

// Create allocates and binds a socket for req.
//
// A candidate whose family the OS cannot allocate is skipped. When every
// candidate is skipped the error is ErrNoUsableAddressFamily. A bind failure
// on an allocated socket is ErrBind and ends the search; a failure to apply
// SO_REUSEADDR is ErrSetOption.
func (f *Factory) Create(ctx context.Context, req Request) (*Socket, error) {
	if len(req.Candidates) == 0 {
		return nil, errors.New(errors.ErrNoUsableAddressFamily, "create socket", nil, "no local address candidates")
	}

	lc := &net.ListenConfig{Control: f.control(req.Reuse)}
	triedGroup := false
	var lastErr error

	for _, cand := range req.Candidates {
		network := resolver.FamilyOf(cand.Addr()).Network()

		if req.Group.IsValid() && !triedGroup && resolver.FamilyOf(req.Group.Addr()) == resolver.FamilyOf(cand.Addr()) {
			triedGroup = true
			pc, err := f.listen(ctx, lc, network, req.Group.String())
			if err == nil {
				return f.finish(pc, true)
			}
			if stderrors.Is(err, errors.ErrSetOption) {
				return nil, err
			}
			if failedSyscall(err) == "socket" {
				f.logger.Debug("socket family unavailable", zap.String("network", network), zap.Error(err))
				lastErr = err
				continue
			}
			f.logger.Debug("bind to multicast group failed, falling back to local address",
				zap.Stringer("group", req.Group), zap.Error(err))
		}

		pc, err := f.listen(ctx, lc, network, cand.String())
		if err != nil {
			if stderrors.Is(err, errors.ErrSetOption) {
				return nil, err
			}
			if failedSyscall(err) == "socket" {
				f.logger.Debug("socket family unavailable", zap.String("network", network), zap.Error(err))
				lastErr = err
				continue
			}
			return nil, errors.New(errors.ErrBind, "bind", unwrapOp(err), cand.String())
		}
		return f.finish(pc, false)
	}

	return nil, errors.New(errors.ErrNoUsableAddressFamily, "create socket", unwrapOp(lastErr),
		fmt.Sprintf("%d candidates tried", len(req.Candidates)))
}

func (f *Factory) finish(pc net.PacketConn, boundToGroup bool) (*Socket, error) {
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, errors.New(errors.ErrSocketCreation, "create socket", nil, fmt.Sprintf("unexpected connection type %T", pc))
	}
	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		_ = conn.Close()
		return nil, errors.New(errors.ErrSocketCreation, "getsockname", nil, "local address is not UDP")
	}
	ap := local.AddrPort()
	ap = netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())

	f.logger.Debug("socket bound", zap.Stringer("local", ap), zap.Bool("group", boundToGroup))
	return &Socket{Conn: conn, Local: ap, BoundToGroup: boundToGroup}, nil
}

func (f *Factory) control(reuse bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		if !reuse {
			return nil
		}
		var serr error
		if err := c.Control(func(fd uintptr) { serr = setReuseAddr(fd) }); err != nil {
			return errors.New(errors.ErrSetOption, "set SO_REUSEADDR", err, address)
		}
		if serr != nil {
			return errors.New(errors.ErrSetOption, "set SO_REUSEADDR", serr, address)
		}
		return nil
	}
}

// failedSyscall returns the name of the system call behind err, if any.
func failedSyscall(err error) string {
	var se *os.SyscallError
	if stderrors.As(err, &se) {
		return se.Syscall
	}
	return ""
}

// unwrapOp strips the *net.OpError wrapper, which repeats the address we
// already put in Details.
func unwrapOp(err error) error {
	var op *net.OpError
	if stderrors.As(err, &op) && op.Err != nil {
		return op.Err
	}
	return err
}
