package socks5

import (
	"context"
	"fmt"
	"net"
)

// resolveError carries the REP code a resolution failure should produce.
type resolveError struct {
	rep byte
	err error
}

func (e *resolveError) Error() string { return e.err.Error() }
func (e *resolveError) Unwrap() error { return e.err }

// resolve maps a parsed Destination to a dialable address. IPv4/IPv6
// literals are interpreted directly; domains go through a synchronous
// forward lookup bounded by ctx, preferring the first IPv4 result and
// falling back to IPv6 when none is found and IPv6 is allowed.
func resolve(ctx context.Context, dest Destination, allowIPv6 bool) (string, error) {
	switch dest.AddrType {
	case AddrIPv4:
		return dest.Host, nil

	case AddrIPv6:
		if !allowIPv6 {
			return "", &resolveError{rep: ReplyAddrTypeNotSupport, err: fmt.Errorf("ipv6 destinations disabled")}
		}
		return dest.Host, nil

	case AddrDomain:
		addrs, err := net.DefaultResolver.LookupIPAddr(ctx, dest.Host)
		if err != nil {
			return "", &resolveError{rep: ReplyNetworkUnreachable, err: fmt.Errorf("lookup %q: %w", dest.Host, err)}
		}

		var v4, v6 net.IP
		for _, a := range addrs {
			if ip4 := a.IP.To4(); ip4 != nil && v4 == nil {
				v4 = ip4
			} else if v6 == nil && a.IP.To4() == nil {
				v6 = a.IP
			}
		}

		if v4 != nil {
			return v4.String(), nil
		}
		if allowIPv6 && v6 != nil {
			return v6.String(), nil
		}
		return "", &resolveError{rep: ReplyNetworkUnreachable, err: fmt.Errorf("no usable address for %q", dest.Host)}

	default:
		return "", &resolveError{rep: ReplyAddrTypeNotSupport, err: fmt.Errorf("unknown address type %d", dest.AddrType)}
	}
}
