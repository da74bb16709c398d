package socks5

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// Admitter gates a newly accepted connection before a Session is spawned
// for it. Implementations may reject a source address under load (e.g. a
// Redis-backed rate limiter); this is deliberately orthogonal to SOCKS5
// framing — a rejected connection is simply closed, no reply is owed.
type Admitter interface {
	Admit(remoteAddr net.Addr) bool
}

// onRejected is called once per connection the Admitter refuses, letting
// an embedder observe admission-control rejections (e.g. a metrics
// counter) without the core importing a metrics package itself.
type onRejected func(remoteAddr net.Addr)

// allowAllAdmitter admits every connection; it is the default when no
// Admitter is configured.
type allowAllAdmitter struct{}

func (allowAllAdmitter) Admit(net.Addr) bool { return true }

// Server binds a TCP endpoint and spawns one Session per accepted
// connection. It never blocks on a single session and shares only the
// read-only Config with its sessions.
type Server struct {
	cfg        Config
	sink       EventSink
	admitter   Admitter
	onRejected onRejected

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithEventSink injects the sink every Session reports phase-transition
// events to.
func WithEventSink(sink EventSink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithAdmitter installs connection-admission control, consulted once per
// accepted connection before a Session is spawned.
func WithAdmitter(a Admitter) Option {
	return func(s *Server) { s.admitter = a }
}

// WithRejectionObserver installs a callback invoked once per connection
// the Admitter refuses.
func WithRejectionObserver(f func(remoteAddr net.Addr)) Option {
	return func(s *Server) { s.onRejected = f }
}

// NewServer constructs a Server for the given configuration.
func NewServer(cfg Config, opts ...Option) *Server {
	s := &Server{cfg: cfg, sink: NopSink{}, admitter: allowAllAdmitter{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve binds (bind_host, bind_port), listens with the operating system's
// default backlog (cfg.MaxPending is not applied to the listener), and
// accepts connections until ctx is canceled. Each accepted
// connection is handled by an independent goroutine carrying a fresh
// Session; Serve itself never blocks on a single session.
//
// On cancellation the accept loop stops and the listener closes first;
// Serve then waits (bounded by cfg.ShutdownTimeout) for in-flight
// sessions to finish their relay before returning — a graceful drain,
// per spec §5.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.BindHost, strconv.Itoa(int(s.cfg.BindPort)))

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("socks5: listen %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return s.drain()
			default:
				continue
			}
		}

		if !s.admitter.Admit(conn.RemoteAddr()) {
			if s.onRejected != nil {
				s.onRejected(conn.RemoteAddr())
			}
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			NewSession(conn, s.cfg, s.sink).Run(ctx)
		}()
	}
}

// drain waits for in-flight sessions to finish, bounded by
// cfg.ShutdownTimeout. Sessions still running past the deadline are left
// to finish on their own; Serve returns regardless. A ShutdownTimeout of
// zero or less waits for every session with no bound.
func (s *Server) drain() error {
	if s.cfg.ShutdownTimeout <= 0 {
		s.wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.ShutdownTimeout):
		return nil
	}
}

// Addr returns the listener's bound address. It is only valid after Serve
// has started listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
