package socks5

import (
	"context"
	"net"
	"testing"
	"time"
)

func waitForAddr(t *testing.T, srv *Server) net.Addr {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := srv.Addr(); addr != nil {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("server never bound a listener")
	return nil
}

func TestServerEndToEndNoAuthConnect(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()
	upAddr := upstream.Addr().(*net.TCPAddr)

	cfg := Config{BindHost: "127.0.0.1", BindPort: 0, DialTimeout: 2 * time.Second}
	srv := NewServer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ctx) }()

	addr := waitForAddr(t, srv)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	defer conn.Close()

	mustWrite(t, conn, []byte{0x05, 0x01, 0x00})
	methodReply := mustRead(t, conn, 2)
	if methodReply[1] != MethodNoAuth {
		t.Fatalf("method reply = %v", methodReply)
	}

	req := []byte{0x05, 0x01, 0x00, 0x01}
	req = append(req, upAddr.IP.To4()...)
	req = append(req, byte(upAddr.Port>>8), byte(upAddr.Port))
	mustWrite(t, conn, req)

	reply := mustRead(t, conn, 10)
	if reply[1] != ReplySucceeded {
		t.Fatalf("connect reply = %v", reply)
	}

	mustWrite(t, conn, []byte("ok"))
	echoed := mustRead(t, conn, 2)
	if string(echoed) != "ok" {
		t.Fatalf("echoed = %q", echoed)
	}

	// End the session so the drain on cancellation has nothing to wait for:
	// with no ShutdownTimeout configured, Serve waits for every session.
	conn.Close()

	cancel()
	select {
	case <-serveDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after cancellation")
	}
}

// denyAllAdmitter rejects every connection, used to verify the Admitter
// hook is consulted before a Session is ever spawned.
type denyAllAdmitter struct{ calls int }

func (d *denyAllAdmitter) Admit(net.Addr) bool {
	d.calls++
	return false
}

func TestServerAdmitterRejectsBeforeSession(t *testing.T) {
	admitter := &denyAllAdmitter{}
	cfg := Config{BindHost: "127.0.0.1", BindPort: 0}
	srv := NewServer(cfg, WithAdmitter(admitter))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Serve(ctx) }()
	addr := waitForAddr(t, srv)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// A rejected connection is closed with no SOCKS5 reply at all.
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 1)
	if n, err := conn.Read(buf); n != 0 || err == nil {
		t.Fatalf("expected immediate close with no bytes, got n=%d err=%v", n, err)
	}
	if admitter.calls == 0 {
		t.Fatalf("expected Admit to be consulted")
	}
}

func TestServerGracefulDrainWaitsForRelay(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()
	upAddr := upstream.Addr().(*net.TCPAddr)

	cfg := Config{BindHost: "127.0.0.1", BindPort: 0, DialTimeout: 2 * time.Second, ShutdownTimeout: 2 * time.Second}
	srv := NewServer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ctx) }()

	addr := waitForAddr(t, srv)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	mustWrite(t, conn, []byte{0x05, 0x01, 0x00})
	mustRead(t, conn, 2)

	req := []byte{0x05, 0x01, 0x00, 0x01}
	req = append(req, upAddr.IP.To4()...)
	req = append(req, byte(upAddr.Port>>8), byte(upAddr.Port))
	mustWrite(t, conn, req)
	mustRead(t, conn, 10)

	// Cancel while the relay is still active; Serve must wait for the
	// in-flight session rather than abandoning it immediately.
	cancel()

	select {
	case <-serveDone:
		t.Fatalf("Serve returned while the relay was still active")
	case <-time.After(500 * time.Millisecond):
	}

	select {
	case <-serveDone:
	case <-time.After(3 * time.Second):
		t.Fatalf("Serve did not drain within its shutdown timeout")
	}
}
