package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socks5_connections_total",
			Help: "Total number of accepted client connections",
		},
	)

	ConnectionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socks5_connections_rejected_total",
			Help: "Total number of connections rejected by admission control",
		},
	)

	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socks5_auth_attempts_total",
			Help: "Total number of RFC 1929 username/password authentication attempts",
		},
		[]string{"result"},
	)

	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socks5_replies_total",
			Help: "Total number of CONNECT replies sent, by REP code",
		},
		[]string{"rep"},
	)

	BytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socks5_bytes_transferred_total",
			Help: "Total bytes relayed between client and upstream",
		},
		[]string{"direction"},
	)

	RelayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "socks5_relay_duration_seconds",
			Help:    "Duration of the relay phase of a session",
			Buckets: []float64{0.1, 1, 5, 15, 60, 300, 900, 3600},
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "socks5_active_sessions",
			Help: "Number of sessions currently relaying traffic",
		},
	)

	SessionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socks5_session_errors_total",
			Help: "Total number of session failures, by phase",
		},
		[]string{"phase"},
	)
)

// PrometheusHandler returns a Fiber handler exposing the registered
// collectors for scraping.
func PrometheusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		handler(c.Context())
		return nil
	}
}

// HealthHandler returns a Fiber handler for a liveness probe.
func HealthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
