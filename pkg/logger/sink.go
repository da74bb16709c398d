package logger

import (
	"time"

	"github.com/google/uuid"

	"github.com/aureonet/socks5-proxy/internal/socks5"
)

// Sink adapts a Logger into a socks5.EventSink, so the proxy core can
// report phase transitions without importing a logging package itself.
type Sink struct {
	log *Logger
}

// NewSink wraps l as an EventSink.
func NewSink(l *Logger) *Sink {
	return &Sink{log: l}
}

func (s *Sink) Accepted(sessionID uuid.UUID, remoteAddr string) {
	s.log.LogAccepted(sessionID, remoteAddr)
}

func (s *Sink) MethodSelected(sessionID uuid.UUID, method byte) {
	s.log.WithField("method", method).Debug("method_selected", "session_id", sessionID.String())
}

func (s *Sink) AuthResult(sessionID uuid.UUID, success bool) {
	s.log.LogAuth(sessionID, success)
}

func (s *Sink) RequestParsed(sessionID uuid.UUID, cmd byte, dest socks5.Destination) {
	s.log.Debug("request_parsed",
		"session_id", sessionID.String(),
		"cmd", cmd,
		"dest_host", dest.Host,
		"dest_port", dest.Port,
	)
}

func (s *Sink) UpstreamConnected(sessionID uuid.UUID, local, remote string) {
	s.log.LogUpstream(sessionID, local, remote)
}

func (s *Sink) ReplySent(sessionID uuid.UUID, rep byte) {
	s.log.Debug("reply_sent", "session_id", sessionID.String(), "rep", rep)
}

func (s *Sink) RelayEnded(sessionID uuid.UUID, bytesUp, bytesDown int64, d time.Duration) {
	s.log.LogRelayEnded(sessionID, bytesUp, bytesDown, d)
}

func (s *Sink) Error(sessionID uuid.UUID, phase socks5.Phase, err error) {
	s.log.LogSessionError(sessionID, phase.String(), err)
}
