// Package session opens UDP transport sessions described by URLs.
//
// A URL names the peer and the socket parameters in one string:
//
//	udp://[host]:port[?key=value&...]
//
// Recognized keys are ttl, localport, pkt_size, buffer_size, reuse, connect,
// localaddr, sources and block. Open turns such a URL into a bound socket,
// joins the multicast group when the host is a group address and the session
// reads, and returns a Session ready for Read and Write.
//
// # Lifecycle
//
// A session is Unconnected or Connected once Open returns. Connect, or a
// SetRemote URL carrying connect=1, moves it to Connected. Close leaves any
// joined group and releases the socket. Close is not idempotent.
//
// # Blocking
//
// By default Read and Write wait until the socket is ready; the context of
// ReadContext and WriteContext bounds the wait. With WithNonBlocking they
// return ErrWouldBlock instead, and RawDescriptor exposes the socket for an
// external poller. Closing the session from another goroutine interrupts a
// waiting call with ErrTimeoutOrInterrupt.
//
// A session supports one reader and one writer goroutine at a time.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshuafuller/udpurl/internal/errors"
	"github.com/joshuafuller/udpurl/internal/multicast"
	"github.com/joshuafuller/udpurl/internal/options"
	"github.com/joshuafuller/udpurl/internal/protocol"
	"github.com/joshuafuller/udpurl/internal/resolver"
	"github.com/joshuafuller/udpurl/internal/socket"
	"github.com/joshuafuller/udpurl/internal/transport"
)

// Mode selects the directions a session is opened for.
type Mode int

const (
	ModeRead Mode = 1 << iota
	ModeWrite

	ModeReadWrite = ModeRead | ModeWrite
)

// String returns "read", "write" or "read-write".
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) reads() bool { return m&ModeRead != 0 }

// direction maps a mode onto the option defaults. A session that reads at
// all uses the input defaults.
func (m Mode) direction() options.Direction {
	if m.reads() {
		return options.Input
	}
	return options.Output
}

// State is the externally visible session state.
type State int

const (
	StateClosed State = iota
	StateUnconnected
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Destination is the resolved remote peer.
type Destination struct {
	Addr        netip.AddrPort
	IsMulticast bool
}

// IsValid reports whether a destination has been set.
func (d Destination) IsValid() bool { return d.Addr.IsValid() }

// String returns the address in host:port form, or "none".
func (d Destination) String() string {
	if !d.IsValid() {
		return "none"
	}
	return d.Addr.String()
}

// Session is an open UDP transport session. It owns exactly one socket.
type Session struct {
	id     string
	mode   Mode
	cfg    Config
	logger *zap.Logger

	resolver *resolver.Resolver
	sock     *socket.Socket
	tr       transport.Transport
	group    *multicast.Group

	dest        Destination
	isMulticast bool
	connected   bool
	state       State

	warnings []error
}

// Open parses rawURL, creates and binds the socket, configures multicast when
// the destination is a group and returns the ready session.
//
// Every failure before the session is returned releases whatever was
// acquired, so a failed Open never leaks a socket or a group membership.
func Open(ctx context.Context, rawURL string, mode Mode, opts ...Option) (*Session, error) {
	if mode&ModeReadWrite == 0 || mode&^ModeReadWrite != 0 {
		return nil, &errors.ValidationError{Field: "mode", Value: mode.String(), Message: "must be read, write or read-write"}
	}

	st := settings{}
	for _, opt := range opts {
		if err := opt(&st); err != nil {
			return nil, err
		}
	}
	if st.logger == nil {
		st.logger = zap.NewNop()
	}
	if st.resolver == nil {
		st.resolver = resolver.New()
	}
	if st.factory == nil {
		st.factory = socket.NewFactory(st.logger)
	}
	if st.setSendBuffer == nil {
		st.setSendBuffer = socket.SetSendBuffer
	}
	if st.setReceiveBuffer == nil {
		st.setReceiveBuffer = socket.SetReceiveBuffer
	}
	if st.manager == nil {
		caps := multicast.DetectCapabilities()
		if st.caps != nil {
			caps = *st.caps
		}
		st.manager = multicast.NewManager(caps, st.logger)
	}

	target, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	cfg, err := options.Parse(target.query, mode.direction())
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		id:       id,
		mode:     mode,
		cfg:      cfg,
		logger:   st.logger.With(zap.String("session", id)),
		resolver: st.resolver,
	}

	if err := s.open(ctx, target, st); err != nil {
		s.abort()
		s.logger.Debug("open failed", zap.String("url", rawURL), zap.Error(err))
		return nil, err
	}

	s.logger.Info("session opened",
		zap.Stringer("mode", mode),
		zap.Stringer("local", s.sock.Local),
		zap.Stringer("destination", s.dest),
		zap.Bool("multicast", s.isMulticast),
		zap.Bool("connected", s.connected))
	return s, nil
}

func (s *Session) open(ctx context.Context, target target, st settings) error {
	if resolver.IsUnspecifiedHost(target.host) {
		if !s.mode.reads() {
			return &errors.ValidationError{Field: "host", Value: target.host, Message: "a destination host is required for write-only sessions"}
		}
	} else {
		dest, err := s.resolveDestination(ctx, target.host, target.port, resolver.FamilyUnspec)
		if err != nil {
			return err
		}
		s.dest = dest
	}
	s.isMulticast = s.dest.IsMulticast

	if s.mode.reads() && (s.isMulticast || s.cfg.LocalPort == 0) {
		s.cfg.LocalPort = target.port
	}
	if s.isMulticast && !s.cfg.ReuseSpecified {
		s.cfg.Reuse = true
	}

	family := resolver.FamilyUnspec
	if s.dest.IsValid() {
		family = resolver.FamilyOf(s.dest.Addr.Addr())
	}
	candidates, err := s.resolver.Resolve(ctx, resolver.Query{
		Host:    s.cfg.LocalAddress,
		Port:    s.cfg.LocalPort,
		Family:  family,
		Passive: true,
	})
	if err != nil {
		return err
	}

	req := socket.Request{Candidates: candidates, Reuse: s.cfg.Reuse}
	if s.isMulticast && s.mode == ModeRead {
		req.Group = s.dest.Addr
	}
	sock, err := st.factory.Create(ctx, req)
	if err != nil {
		return err
	}
	s.sock = sock

	if s.isMulticast {
		if err := s.setupMulticast(ctx, st); err != nil {
			return err
		}
	}

	if s.mode.reads() {
		if err := st.setReceiveBuffer(sock.Conn, s.cfg.BufferSize); err != nil {
			s.warn("receive buffer not applied", err)
		}
	} else if err := st.setSendBuffer(sock.Conn, s.cfg.BufferSize); err != nil {
		return err
	}

	tr, err := transport.NewUDPTransport(sock.Conn, st.nonBlocking)
	if err != nil {
		return err
	}
	s.tr = tr
	s.state = StateUnconnected

	if s.cfg.Connect {
		if err := s.Connect(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) setupMulticast(ctx context.Context, st settings) error {
	ifi := st.ifi
	if ifi == nil && s.cfg.LocalAddress != "" {
		if addr, err := netip.ParseAddr(s.cfg.LocalAddress); err == nil {
			found, err := resolver.InterfaceForAddr(addr)
			if err != nil {
				s.warn("no interface for localaddr, using the default", err)
			} else {
				ifi = found
			}
		}
	}

	group, err := st.manager.Attach(s.sock.Conn, s.dest.Addr, ifi)
	if err != nil {
		return err
	}
	s.group = group

	if s.mode&ModeWrite != 0 {
		if err := group.SetTTL(s.cfg.TTL); err != nil {
			return err
		}
	}
	if !s.mode.reads() {
		return nil
	}

	filter := s.cfg.SourceFilter
	switch filter.Mode {
	case options.FilterNone:
		return group.Join()
	default:
		sources := make([]netip.Addr, 0, len(filter.Hosts))
		for _, host := range filter.Hosts {
			addr, err := s.resolver.ResolveSource(ctx, host, group.Family())
			if err != nil {
				return err
			}
			sources = append(sources, addr)
		}
		return group.SetSourceFilter(sources, filter.Mode == options.FilterInclude)
	}
}

// abort releases what a failed open acquired.
func (s *Session) abort() {
	if s.group != nil && s.group.Joined() {
		if err := s.group.Leave(); err != nil {
			s.logger.Warn("leave group after failed open", zap.Error(err))
		}
	}
	switch {
	case s.tr != nil:
		_ = s.tr.Close()
	case s.sock != nil:
		_ = s.sock.Conn.Close()
	}
	s.state = StateClosed
}

func (s *Session) resolveDestination(ctx context.Context, host string, port int, family resolver.Family) (Destination, error) {
	candidates, err := s.resolver.Resolve(ctx, resolver.Query{Host: host, Port: port, Family: family})
	if err != nil {
		return Destination{}, err
	}
	addr := candidates[0]
	return Destination{Addr: addr, IsMulticast: addr.Addr().IsMulticast()}, nil
}

// SetRemote replaces the destination with the host and port of rawURL.
//
// The new host is resolved in the family of the bound socket. A connect key
// in rawURL connects the session if it is not connected yet. Once connected
// the destination is fixed: the same address is accepted as a no-op and any
// other address fails with ErrConnect. Other URL keys are ignored because the
// socket is already configured.
func (s *Session) SetRemote(ctx context.Context, rawURL string) error {
	target, err := parseURL(rawURL)
	if err != nil {
		return err
	}
	cfg, err := options.Parse(target.query, s.mode.direction())
	if err != nil {
		return err
	}
	if resolver.IsUnspecifiedHost(target.host) {
		return &errors.ValidationError{Field: "host", Value: target.host, Message: "a destination host is required"}
	}

	dest, err := s.resolveDestination(ctx, target.host, target.port, s.sock.Family())
	if err != nil {
		return err
	}

	if s.connected {
		if dest.Addr != s.dest.Addr {
			return errors.New(errors.ErrConnect, "set remote", nil,
				fmt.Sprintf("connected to %s, cannot switch to %s", s.dest, dest))
		}
		return nil
	}

	s.dest = dest
	s.logger.Debug("destination set", zap.Stringer("destination", dest))
	if cfg.Connect {
		return s.Connect()
	}
	return nil
}

// Connect fixes the kernel-level peer to the current destination. It is a
// no-op when already connected. On failure the session stays unconnected and
// Connect may be retried.
func (s *Session) Connect() error {
	if s.connected {
		return nil
	}
	if !s.dest.IsValid() {
		return errors.New(errors.ErrConnect, "connect", nil, "no destination")
	}
	if err := socket.Connect(s.sock.Conn, s.dest.Addr); err != nil {
		return err
	}
	s.connected = true
	s.state = StateConnected
	s.logger.Debug("connected", zap.Stringer("destination", s.dest))
	return nil
}

// Read reads one datagram into buf. See ReadContext.
func (s *Session) Read(buf []byte) (int, error) {
	return s.ReadContext(context.Background(), buf)
}

// ReadContext reads one datagram into buf and returns its length. A datagram
// longer than buf is truncated; size buf to MaxPacketSize.
//
// A blocking session waits for a datagram until ctx is done; a non-blocking
// session returns ErrWouldBlock when nothing is queued.
func (s *Session) ReadContext(ctx context.Context, buf []byte) (int, error) {
	return s.tr.Receive(ctx, buf)
}

// Write sends buf as one datagram. See WriteContext.
func (s *Session) Write(buf []byte) (int, error) {
	return s.WriteContext(context.Background(), buf)
}

// WriteContext sends buf as one datagram, to the connected peer when the
// session is connected and to the destination otherwise.
func (s *Session) WriteContext(ctx context.Context, buf []byte) (int, error) {
	if s.connected {
		return s.tr.Send(ctx, buf, netip.AddrPort{})
	}
	if !s.dest.IsValid() {
		return 0, errors.New(errors.ErrIO, "write", nil, "no destination; call SetRemote first")
	}
	return s.tr.Send(ctx, buf, s.dest.Addr)
}

// Close leaves the multicast group if this reader joined one, then releases
// the socket. Calling Close twice returns an error.
func (s *Session) Close() error {
	if s.group != nil && s.mode.reads() {
		if err := s.group.Leave(); err != nil {
			s.warn("leave group failed", err)
		}
	}
	s.state = StateClosed
	err := s.tr.Close()
	s.logger.Debug("session closed", zap.Error(err))
	return err
}

// RawDescriptor returns the OS socket handle for use with an external poller.
// The session keeps ownership of the handle.
func (s *Session) RawDescriptor() (uintptr, error) {
	return socket.RawDescriptor(s.sock.Conn)
}

// LocalPort returns the bound local port as reported by the OS.
func (s *Session) LocalPort() int { return int(s.sock.Local.Port()) }

// LocalAddr returns the bound local address.
func (s *Session) LocalAddr() netip.AddrPort { return s.sock.Local }

// Destination returns the current destination.
func (s *Session) Destination() Destination { return s.dest }

// IsMulticast reports whether the destination at open was a multicast group.
func (s *Session) IsMulticast() bool { return s.isMulticast }

// Config returns the configuration the session was opened with.
func (s *Session) Config() Config { return s.cfg }

// MaxPacketSize returns the largest datagram callers should expect.
func (s *Session) MaxPacketSize() int { return s.cfg.MaxPacketSize }

// Mode returns the mode the session was opened with.
func (s *Session) Mode() Mode { return s.mode }

// State returns the current state.
func (s *Session) State() State { return s.state }

// ID returns the random identifier attached to the session's log entries.
func (s *Session) ID() string { return s.id }

// Warnings returns best-effort failures that did not fail the operation,
// such as a receive buffer size the OS refused.
func (s *Session) Warnings() []error {
	return append([]error(nil), s.warnings...)
}

func (s *Session) warn(msg string, err error) {
	s.warnings = append(s.warnings, err)
	s.logger.Warn(msg, zap.Error(err))
}

type target struct {
	host  string
	port  int
	query string
}

// parseURL splits a udp:// URL into host, port and raw query.
func parseURL(rawURL string) (target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		var uerr *url.Error
		if stderrors.As(err, &uerr) {
			err = uerr.Err
		}
		return target{}, &errors.ValidationError{Field: "url", Value: rawURL, Message: err.Error()}
	}
	if u.Scheme != protocol.Scheme {
		return target{}, &errors.ValidationError{Field: "url", Value: rawURL, Message: fmt.Sprintf("scheme must be %q", protocol.Scheme)}
	}

	t := target{host: u.Hostname(), query: u.RawQuery}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 0 || port > protocol.MaxPort {
			return target{}, &errors.ValidationError{Field: "port", Value: p, Message: "must be an integer in [0, 65535]"}
		}
		t.port = port
	}
	return t, nil
}
