package socks5

import (
	"context"
	"testing"
)

func TestResolveIPv4Literal(t *testing.T) {
	dest := Destination{AddrType: AddrIPv4, Host: "127.0.0.1"}
	addr, err := resolve(context.Background(), dest, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "127.0.0.1" {
		t.Fatalf("addr = %q", addr)
	}
}

func TestResolveIPv6LiteralDisabled(t *testing.T) {
	dest := Destination{AddrType: AddrIPv6, Host: "::1"}
	_, err := resolve(context.Background(), dest, false)
	if err == nil {
		t.Fatalf("expected error when IPv6 disabled")
	}
	var rerr *resolveError
	if !asResolveError(err, &rerr) {
		t.Fatalf("expected resolveError, got %T", err)
	}
	if rerr.rep != ReplyAddrTypeNotSupport {
		t.Fatalf("rep = %#x, want %#x", rerr.rep, ReplyAddrTypeNotSupport)
	}
}

func TestResolveIPv6LiteralEnabled(t *testing.T) {
	dest := Destination{AddrType: AddrIPv6, Host: "::1"}
	addr, err := resolve(context.Background(), dest, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "::1" {
		t.Fatalf("addr = %q", addr)
	}
}

func TestResolveUnknownAddrType(t *testing.T) {
	dest := Destination{AddrType: 0x09, Host: "whatever"}
	_, err := resolve(context.Background(), dest, true)
	var rerr *resolveError
	if !asResolveError(err, &rerr) || rerr.rep != ReplyAddrTypeNotSupport {
		t.Fatalf("expected AddrTypeNotSupport, got %v", err)
	}
}

func asResolveError(err error, target **resolveError) bool {
	re, ok := err.(*resolveError)
	if ok {
		*target = re
	}
	return ok
}
