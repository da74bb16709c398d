package metrics

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/aureonet/socks5-proxy/internal/socks5"
)

// Sink adapts the package's Prometheus collectors into a socks5.EventSink,
// so the proxy core's phase-transition events drive metrics the same way
// they drive structured logs (see pkg/logger.Sink). The two are composed
// side by side into a socks5.MultiSink at startup.
type Sink struct{}

// NewSink constructs a metrics-backed EventSink.
func NewSink() *Sink {
	return &Sink{}
}

func (Sink) Accepted(uuid.UUID, string) {
	ConnectionsTotal.Inc()
	ActiveSessions.Inc()
}

func (Sink) MethodSelected(uuid.UUID, byte) {}

func (Sink) AuthResult(_ uuid.UUID, success bool) {
	if success {
		AuthAttempts.WithLabelValues("success").Inc()
	} else {
		AuthAttempts.WithLabelValues("failure").Inc()
	}
}

func (Sink) RequestParsed(uuid.UUID, byte, socks5.Destination) {}

func (Sink) UpstreamConnected(uuid.UUID, string, string) {}

func (Sink) ReplySent(_ uuid.UUID, rep byte) {
	RepliesTotal.WithLabelValues(strconv.Itoa(int(rep))).Inc()
}

func (Sink) RelayEnded(_ uuid.UUID, bytesUp, bytesDown int64, d time.Duration) {
	BytesTransferred.WithLabelValues("up").Add(float64(bytesUp))
	BytesTransferred.WithLabelValues("down").Add(float64(bytesDown))
	RelayDuration.Observe(d.Seconds())
	ActiveSessions.Dec()
}

func (Sink) Error(_ uuid.UUID, phase socks5.Phase, _ error) {
	SessionErrors.WithLabelValues(phase.String()).Inc()
	if phase != socks5.PhaseRelay {
		// RelayEnded accounts for sessions that reached the relay phase;
		// every other phase's Error call is itself the session's only
		// terminal event, so it must balance Accepted's increment here.
		ActiveSessions.Dec()
	}
}
