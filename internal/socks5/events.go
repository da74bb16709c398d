package socks5

import (
	"time"

	"github.com/google/uuid"
)

// EventSink receives structured events at each session phase transition.
// The core never logs directly: it emits to an injected sink, so the
// embedder controls format and destination (spec §6).
type EventSink interface {
	Accepted(sessionID uuid.UUID, remoteAddr string)
	MethodSelected(sessionID uuid.UUID, method byte)
	AuthResult(sessionID uuid.UUID, success bool)
	RequestParsed(sessionID uuid.UUID, cmd byte, dest Destination)
	UpstreamConnected(sessionID uuid.UUID, local, remote string)
	ReplySent(sessionID uuid.UUID, rep byte)
	RelayEnded(sessionID uuid.UUID, bytesUp, bytesDown int64, d time.Duration)
	Error(sessionID uuid.UUID, phase Phase, err error)
}

// NopSink discards every event. Useful as a default for tests and for
// embedders that do not care about observability.
type NopSink struct{}

func (NopSink) Accepted(uuid.UUID, string)                        {}
func (NopSink) MethodSelected(uuid.UUID, byte)                    {}
func (NopSink) AuthResult(uuid.UUID, bool)                        {}
func (NopSink) RequestParsed(uuid.UUID, byte, Destination)        {}
func (NopSink) UpstreamConnected(uuid.UUID, string, string)       {}
func (NopSink) ReplySent(uuid.UUID, byte)                         {}
func (NopSink) RelayEnded(uuid.UUID, int64, int64, time.Duration) {}
func (NopSink) Error(uuid.UUID, Phase, error)                     {}

// MultiSink fans an event out to every sink in order. Grounded in how the
// teacher composes logger output with Prometheus counters across its HTTP
// handlers (pkg/logger + pkg/metrics called side by side).
type MultiSink []EventSink

func (m MultiSink) Accepted(id uuid.UUID, remoteAddr string) {
	for _, s := range m {
		s.Accepted(id, remoteAddr)
	}
}

func (m MultiSink) MethodSelected(id uuid.UUID, method byte) {
	for _, s := range m {
		s.MethodSelected(id, method)
	}
}

func (m MultiSink) AuthResult(id uuid.UUID, success bool) {
	for _, s := range m {
		s.AuthResult(id, success)
	}
}

func (m MultiSink) RequestParsed(id uuid.UUID, cmd byte, dest Destination) {
	for _, s := range m {
		s.RequestParsed(id, cmd, dest)
	}
}

func (m MultiSink) UpstreamConnected(id uuid.UUID, local, remote string) {
	for _, s := range m {
		s.UpstreamConnected(id, local, remote)
	}
}

func (m MultiSink) ReplySent(id uuid.UUID, rep byte) {
	for _, s := range m {
		s.ReplySent(id, rep)
	}
}

func (m MultiSink) RelayEnded(id uuid.UUID, bytesUp, bytesDown int64, d time.Duration) {
	for _, s := range m {
		s.RelayEnded(id, bytesUp, bytesDown, d)
	}
}

func (m MultiSink) Error(id uuid.UUID, phase Phase, err error) {
	for _, s := range m {
		s.Error(id, phase, err)
	}
}
