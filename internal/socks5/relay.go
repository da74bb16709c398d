package socks5

import (
	"io"
	"net"
	"sync"
)

const relayBufferSize = 4096

var relayBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, relayBufferSize)
		return &buf
	},
}

// halfCloser is implemented by net.TCPConn and lets a finished direction
// signal EOF to its peer without tearing down the still-active direction.
type halfCloser interface {
	CloseWrite() error
}

// relayResult reports the byte count a single direction moved.
type relayResult struct {
	bytes int64
	err   error
}

// pump copies from src to dst until EOF or a read/write error, then
// half-closes dst's write side (or fully closes it if the connection type
// does not support half-close). No protocol interpretation happens here:
// bytes are opaque, and io.CopyBuffer blocks on read rather than spinning
// on zero-byte reads.
func pump(dst io.Writer, src io.Reader) relayResult {
	bufp := relayBufferPool.Get().(*[]byte)
	defer relayBufferPool.Put(bufp)

	n, err := io.CopyBuffer(dst, src, *bufp)
	if err == io.EOF {
		err = nil
	}

	if hc, ok := dst.(halfCloser); ok {
		_ = hc.CloseWrite()
	} else if c, ok := dst.(io.Closer); ok {
		_ = c.Close()
	}

	return relayResult{bytes: n, err: err}
}

// relay shuttles bytes bidirectionally between client and target until
// both directions have reached EOF or errored. It implements a true
// half-close: a direction that reaches EOF first only shuts down its own
// write side, so bytes still in flight the other way are not lost.
// Returns (bytesClientToTarget, bytesTargetToClient).
func relay(client, target net.Conn) (int64, int64) {
	var up, down relayResult
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		up = pump(target, client)
	}()
	go func() {
		defer wg.Done()
		down = pump(client, target)
	}()

	wg.Wait()
	return up.bytes, down.bytes
}
