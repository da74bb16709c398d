package socks5

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Session drives one accepted client connection through
// GREETING -> (AUTH) -> REQUEST -> RELAY -> CLOSED. It owns both streams
// exclusively for its lifetime; the Config it reads is shared read-only.
type Session struct {
	ID     uuid.UUID
	client net.Conn
	target net.Conn
	cfg    Config
	sink   EventSink

	phase          Phase
	selectedMethod byte
	dest           Destination
}

// NewSession constructs a Session for one accepted client connection.
func NewSession(client net.Conn, cfg Config, sink EventSink) *Session {
	if sink == nil {
		sink = NopSink{}
	}
	return &Session{
		ID:     uuid.New(),
		client: client,
		cfg:    cfg,
		sink:   sink,
		phase:  PhaseGreeting,
	}
}

// Run advances the Session through every phase to completion. It always
// returns with the client (and, if opened, target) stream closed.
func (s *Session) Run(ctx context.Context) {
	defer s.close()

	s.sink.Accepted(s.ID, s.client.RemoteAddr().String())

	if !s.doGreeting() {
		return
	}

	if s.selectedMethod == MethodUserPassword {
		if !s.doAuth() {
			return
		}
	}

	s.doRequest(ctx)
}

func (s *Session) close() {
	s.phase = PhaseClosed
	if s.target != nil {
		_ = s.target.Close()
	}
	_ = s.client.Close()
}

func (s *Session) setReadDeadline() {
	if s.cfg.ReadTimeout > 0 {
		_ = s.client.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
}

// doGreeting handles the GREETING phase. Returns false if the session must
// terminate (either a framing error, or no acceptable method).
func (s *Session) doGreeting() bool {
	s.setReadDeadline()

	g, err := readGreeting(s.client)
	if err != nil {
		s.sink.Error(s.ID, PhaseGreeting, err)
		return false
	}

	method := selectMethod(g.Methods, s.cfg)
	s.selectedMethod = method

	if err := writeMethodReply(s.client, method); err != nil {
		s.sink.Error(s.ID, PhaseGreeting, err)
		return false
	}
	s.sink.MethodSelected(s.ID, method)

	if method == MethodNoAcceptable {
		return false
	}

	s.phase = PhaseAuth
	if method == MethodNoAuth {
		s.phase = PhaseRequest
	}
	return true
}

// doAuth handles the AUTH phase (RFC 1929 username/password).
func (s *Session) doAuth() bool {
	s.setReadDeadline()

	req, err := readAuthRequest(s.client)
	if err != nil {
		s.sink.Error(s.ID, PhaseAuth, err)
		return false
	}

	ok := checkCredentials(s.cfg, req.Username, req.Password)
	if err := writeAuthReply(s.client, ok); err != nil {
		s.sink.Error(s.ID, PhaseAuth, err)
		return false
	}
	s.sink.AuthResult(s.ID, ok)

	if !ok {
		return false
	}
	s.phase = PhaseRequest
	return true
}

// doRequest handles the REQUEST phase: parse, validate, resolve, dial, and
// reply. On success it transitions into RELAY and runs the relay pump
// before returning.
func (s *Session) doRequest(ctx context.Context) {
	s.setReadDeadline()

	req, err := readConnectRequest(s.client)
	if err != nil {
		s.sink.Error(s.ID, PhaseRequest, err)
		return
	}
	s.dest = req.Dest
	s.sink.RequestParsed(s.ID, req.Cmd, req.Dest)

	if req.Cmd != CmdConnect {
		s.replyAndClose(ReplyCmdNotSupported)
		return
	}

	if req.Dest.AddrType != AddrIPv4 && req.Dest.AddrType != AddrDomain && req.Dest.AddrType != AddrIPv6 {
		s.replyAndClose(ReplyAddrTypeNotSupport)
		return
	}
	if req.Dest.AddrType == AddrIPv6 && !s.cfg.AllowIPv6 {
		s.replyAndClose(ReplyAddrTypeNotSupport)
		return
	}

	resolveCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.ReadTimeout > 0 {
		resolveCtx, cancel = context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
	}

	addr, err := resolve(resolveCtx, req.Dest, s.cfg.AllowIPv6)
	if err != nil {
		var rerr *resolveError
		rep := ReplyGeneralFailure
		if errors.As(err, &rerr) {
			rep = rerr.rep
		}
		s.sink.Error(s.ID, PhaseRequest, err)
		s.replyAndClose(rep)
		return
	}

	target, err := dial(addr, req.Dest.Port, s.cfg.DialTimeout)
	if err != nil {
		s.sink.Error(s.ID, PhaseRequest, err)
		s.replyAndClose(classifyDialErr(err))
		return
	}
	s.target = target
	s.sink.UpstreamConnected(s.ID, target.LocalAddr().String(), target.RemoteAddr().String())

	if err := writeConnectReply(s.client, ReplySucceeded, target.LocalAddr()); err != nil {
		s.sink.Error(s.ID, PhaseRequest, err)
		return
	}
	s.sink.ReplySent(s.ID, ReplySucceeded)

	// Handshake complete: per-phase read deadlines no longer apply once
	// the relay starts.
	_ = s.client.SetReadDeadline(time.Time{})

	s.phase = PhaseRelay
	start := time.Now()
	up, down := relay(s.client, target)
	s.sink.RelayEnded(s.ID, up, down, time.Since(start))
}

// replyAndClose emits exactly one connect reply for the failing REQUEST
// phase, then leaves the session to be closed by Run's defer.
func (s *Session) replyAndClose(rep byte) {
	_ = writeConnectReply(s.client, rep, nil)
	s.sink.ReplySent(s.ID, rep)
}

func dial(host string, port uint16, timeout time.Duration) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	d := net.Dialer{Timeout: timeout}
	return d.Dial("tcp", addr)
}

// classifyDialErr maps a dial failure to the most specific REP code spec
// §9 allows, rather than collapsing every failure to 0x05 the way the
// original implementation did.
func classifyDialErr(err error) byte {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReplyNetworkUnreachable
	}

	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		switch sysErr.Err {
		case syscall.ECONNREFUSED:
			return ReplyConnectionRefused
		case syscall.EHOSTUNREACH:
			return ReplyHostUnreachable
		case syscall.ENETUNREACH:
			return ReplyNetworkUnreachable
		}
	}

	return ReplyConnectionRefused
}
