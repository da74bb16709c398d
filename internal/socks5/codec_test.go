package socks5

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
)

func TestReadGreeting(t *testing.T) {
	cases := []struct {
		name    string
		input   []byte
		wantErr bool
		methods []byte
	}{
		{"no auth only", []byte{0x05, 0x01, 0x00}, false, []byte{0x00}},
		{"no auth and userpass", []byte{0x05, 0x02, 0x00, 0x02}, false, []byte{0x00, 0x02}},
		{"wrong version", []byte{0x04, 0x01, 0x00}, true, nil},
		{"zero methods", []byte{0x05, 0x00}, true, nil},
		{"short eof", []byte{0x05, 0x02, 0x00}, true, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := readGreeting(bytes.NewReader(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				var fe *FrameError
				if !errors.As(err, &fe) {
					t.Fatalf("expected FrameError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(g.Methods, tc.methods) {
				t.Fatalf("methods = %v, want %v", g.Methods, tc.methods)
			}
		})
	}
}

func TestWriteMethodReply(t *testing.T) {
	var buf bytes.Buffer
	if err := writeMethodReply(&buf, MethodUserPassword); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x05, 0x02}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("reply = %v, want %v", buf.Bytes(), want)
	}
}

func TestReadAuthRequest(t *testing.T) {
	input := []byte{0x01, 0x04, 'm', 'a', 'k', 'i', 0x08, 'p', 'a', 's', 's', 'w', 'o', 'r', 'd'}
	req, err := readAuthRequest(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Username != "maki" || req.Password != "password" {
		t.Fatalf("got %+v", req)
	}
}

func TestReadAuthRequestShortRead(t *testing.T) {
	input := []byte{0x01, 0x04, 'm', 'a'}
	if _, err := readAuthRequest(bytes.NewReader(input)); err == nil {
		t.Fatalf("expected error on short read")
	}
}

func TestWriteAuthReply(t *testing.T) {
	var buf bytes.Buffer
	if err := writeAuthReply(&buf, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x01, 0x00}) {
		t.Fatalf("got %v", buf.Bytes())
	}

	buf.Reset()
	if err := writeAuthReply(&buf, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x01, 0x01}) {
		t.Fatalf("got %v", buf.Bytes())
	}
}

func TestReadConnectRequestIPv4(t *testing.T) {
	input := []byte{0x05, 0x01, 0x00, 0x01, 127, 0, 0, 1, 0x00, 0x50}
	req, err := readConnectRequest(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Cmd != CmdConnect {
		t.Fatalf("cmd = %v", req.Cmd)
	}
	if req.Dest.Host != "127.0.0.1" || req.Dest.Port != 80 {
		t.Fatalf("dest = %+v", req.Dest)
	}
}

func TestReadConnectRequestDomain(t *testing.T) {
	domain := "example.com"
	input := append([]byte{0x05, 0x01, 0x00, 0x03, byte(len(domain))}, domain...)
	input = append(input, 0x00, 0x50)
	req, err := readConnectRequest(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Dest.Host != domain || req.Dest.Port != 80 {
		t.Fatalf("dest = %+v", req.Dest)
	}
}

func TestReadConnectRequestBindCommand(t *testing.T) {
	input := []byte{0x05, 0x02, 0x00, 0x01, 8, 8, 8, 8, 0x00, 0x35}
	req, err := readConnectRequest(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Cmd != CmdBind {
		t.Fatalf("cmd = %v, want CmdBind", req.Cmd)
	}
}

func TestReadConnectRequestReservedByteNonZero(t *testing.T) {
	input := []byte{0x05, 0x01, 0x01, 0x01, 127, 0, 0, 1, 0x00, 0x50}
	if _, err := readConnectRequest(bytes.NewReader(input)); err == nil {
		t.Fatalf("expected framing error for nonzero reserved byte")
	}
}

func TestWriteConnectReplyFailure(t *testing.T) {
	var buf bytes.Buffer
	if err := writeConnectReply(&buf, ReplyCmdNotSupported, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x05, 0x07, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got %v, want %v", buf.Bytes(), want)
	}
}

func TestWriteConnectReplySuccessIPv4(t *testing.T) {
	var buf bytes.Buffer
	bound := &net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 4321}
	if err := writeConnectReply(&buf, ReplySucceeded, bound); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x05, 0x00, 0x00, 0x01, 10, 0, 0, 5, 0x10, 0xe1}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got %v, want %v", buf.Bytes(), want)
	}
}

func TestReadExactLoopsUntilSatisfied(t *testing.T) {
	r := &slowReader{chunks: [][]byte{{0x05}, {0x01}, {0x00}}}
	buf := make([]byte, 3)
	if err := readExact(r, buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(buf, []byte{0x05, 0x01, 0x00}) {
		t.Fatalf("got %v", buf)
	}
}

// slowReader returns one chunk per Read call, simulating a socket that
// delivers a multi-byte field across several partial reads.
type slowReader struct {
	chunks [][]byte
}

func (r *slowReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}
