package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// FrameError marks a fatal parse error for the current session phase: wrong
// VER, a short read, or a disallowed zero-length field. Per spec, a framing
// error closes the connection without a reply unless the phase has already
// committed to sending one.
type FrameError struct {
	Phase Phase
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("socks5: framing error in %s phase: %v", e.Phase, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

func frameErr(phase Phase, format string, args ...any) error {
	return &FrameError{Phase: phase, Err: fmt.Errorf(format, args...)}
}

// readExact reads exactly len(buf) bytes, looping until satisfied or EOF.
// A short EOF during any frame phase is a fatal parse error for that
// session — single recv() calls are never trusted to return a full frame.
func readExact(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// greeting is the client's method-selection message:
// VER(1)=0x05 | NMETHODS(1)=n, n∈[1,255] | METHODS(n)
type greeting struct {
	Methods []byte
}

func readGreeting(r io.Reader) (greeting, error) {
	var hdr [2]byte
	if err := readExact(r, hdr[:]); err != nil {
		return greeting{}, frameErr(PhaseGreeting, "read header: %w", err)
	}
	if hdr[0] != ver5 {
		return greeting{}, frameErr(PhaseGreeting, "unsupported version %d", hdr[0])
	}
	n := int(hdr[1])
	if n == 0 {
		return greeting{}, frameErr(PhaseGreeting, "zero methods offered")
	}
	methods := make([]byte, n)
	if err := readExact(r, methods); err != nil {
		return greeting{}, frameErr(PhaseGreeting, "read methods: %w", err)
	}
	return greeting{Methods: methods}, nil
}

// writeMethodReply sends VER(1)=0x05 | METHOD(1).
func writeMethodReply(w io.Writer, method byte) error {
	_, err := w.Write([]byte{ver5, method})
	return err
}

// authRequest is the RFC 1929 credential subnegotiation message:
// VER(1)=0x01 | ULEN(1)=u | UNAME(u) | PLEN(1)=p | PASSWD(p)
type authRequest struct {
	Username string
	Password string
}

func readAuthRequest(r io.Reader) (authRequest, error) {
	var hdr [2]byte
	if err := readExact(r, hdr[:]); err != nil {
		return authRequest{}, frameErr(PhaseAuth, "read header: %w", err)
	}
	if hdr[0] != authVer {
		return authRequest{}, frameErr(PhaseAuth, "unsupported auth version %d", hdr[0])
	}
	ulen := int(hdr[1])
	if ulen == 0 {
		return authRequest{}, frameErr(PhaseAuth, "zero-length username")
	}
	uname := make([]byte, ulen)
	if err := readExact(r, uname); err != nil {
		return authRequest{}, frameErr(PhaseAuth, "read username: %w", err)
	}

	var plenBuf [1]byte
	if err := readExact(r, plenBuf[:]); err != nil {
		return authRequest{}, frameErr(PhaseAuth, "read password length: %w", err)
	}
	plen := int(plenBuf[0])
	if plen == 0 {
		return authRequest{}, frameErr(PhaseAuth, "zero-length password")
	}
	passwd := make([]byte, plen)
	if err := readExact(r, passwd); err != nil {
		return authRequest{}, frameErr(PhaseAuth, "read password: %w", err)
	}

	return authRequest{Username: string(uname), Password: string(passwd)}, nil
}

// writeAuthReply sends VER(1)=0x01 | STATUS(1).
func writeAuthReply(w io.Writer, ok bool) error {
	status := authStatusFailed
	if ok {
		status = authStatusOK
	}
	_, err := w.Write([]byte{authVer, status})
	return err
}

// connectRequest is the CONNECT-phase message:
// VER(1)=0x05 | CMD(1) | RSV(1)=0x00 | ATYP(1) | DST.ADDR(variable) | DST.PORT(2)
type connectRequest struct {
	Cmd  byte
	Dest Destination
}

func readConnectRequest(r io.Reader) (connectRequest, error) {
	var hdr [4]byte
	if err := readExact(r, hdr[:]); err != nil {
		return connectRequest{}, frameErr(PhaseRequest, "read header: %w", err)
	}
	if hdr[0] != ver5 {
		return connectRequest{}, frameErr(PhaseRequest, "unsupported version %d", hdr[0])
	}
	if hdr[2] != 0x00 {
		return connectRequest{}, frameErr(PhaseRequest, "reserved byte not zero")
	}

	cmd, atyp := hdr[1], hdr[3]
	dest := Destination{AddrType: atyp}

	switch atyp {
	case AddrIPv4:
		var addr [4]byte
		if err := readExact(r, addr[:]); err != nil {
			return connectRequest{}, frameErr(PhaseRequest, "read ipv4 addr: %w", err)
		}
		dest.Host = net.IP(addr[:]).String()

	case AddrDomain:
		var lenBuf [1]byte
		if err := readExact(r, lenBuf[:]); err != nil {
			return connectRequest{}, frameErr(PhaseRequest, "read domain length: %w", err)
		}
		l := int(lenBuf[0])
		if l == 0 {
			return connectRequest{}, frameErr(PhaseRequest, "zero-length domain")
		}
		domain := make([]byte, l)
		if err := readExact(r, domain); err != nil {
			return connectRequest{}, frameErr(PhaseRequest, "read domain: %w", err)
		}
		dest.Host = string(domain)

	case AddrIPv6:
		var addr [16]byte
		if err := readExact(r, addr[:]); err != nil {
			return connectRequest{}, frameErr(PhaseRequest, "read ipv6 addr: %w", err)
		}
		dest.Host = net.IP(addr[:]).String()

	default:
		// Unknown ATYP is not a framing error: the caller replies
		// ReplyAddrTypeNotSupport rather than closing silently.
		return connectRequest{Cmd: cmd, Dest: dest}, nil
	}

	var portBuf [2]byte
	if err := readExact(r, portBuf[:]); err != nil {
		return connectRequest{}, frameErr(PhaseRequest, "read port: %w", err)
	}
	dest.Port = binary.BigEndian.Uint16(portBuf[:])

	return connectRequest{Cmd: cmd, Dest: dest}, nil
}

// writeConnectReply sends VER(1)=0x05 | REP(1) | RSV(1)=0x00 | ATYP(1) |
// BND.ADDR(variable) | BND.PORT(2). On failure the codec emits ATYP=0x01,
// BND.ADDR=0.0.0.0, BND.PORT=0, per spec.
func writeConnectReply(w io.Writer, rep byte, bound net.Addr) error {
	if rep != ReplySucceeded || bound == nil {
		reply := []byte{ver5, rep, 0x00, AddrIPv4, 0, 0, 0, 0, 0, 0}
		_, err := w.Write(reply)
		return err
	}

	tcpAddr, ok := bound.(*net.TCPAddr)
	if !ok {
		reply := []byte{ver5, rep, 0x00, AddrIPv4, 0, 0, 0, 0, 0, 0}
		_, err := w.Write(reply)
		return err
	}

	var atyp byte
	var ip net.IP
	if v4 := tcpAddr.IP.To4(); v4 != nil {
		atyp = AddrIPv4
		ip = v4
	} else {
		atyp = AddrIPv6
		ip = tcpAddr.IP.To16()
	}

	reply := make([]byte, 0, 4+len(ip)+2)
	reply = append(reply, ver5, rep, 0x00, atyp)
	reply = append(reply, ip...)
	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, uint16(tcpAddr.Port))
	reply = append(reply, portBuf...)

	_, err := w.Write(reply)
	return err
}
