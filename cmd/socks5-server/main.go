package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/aureonet/socks5-proxy/internal/socks5"
	"github.com/aureonet/socks5-proxy/pkg/admission"
	"github.com/aureonet/socks5-proxy/pkg/config"
	"github.com/aureonet/socks5-proxy/pkg/logger"
	"github.com/aureonet/socks5-proxy/pkg/metrics"
	"github.com/aureonet/socks5-proxy/pkg/validator"
)

const version = "1.0.0"

var (
	flagBindHost    string
	flagBindPort    int
	flagRequireAuth bool
	flagUsername    string
	flagPassword    string
	flagAllowIPv6   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "socks5-server",
		Short: "SOCKS5 proxy server",
		Long:  "A RFC 1928 SOCKS5 proxy with optional RFC 1929 username/password authentication.",
		Run:   runServer,
	}

	rootCmd.Flags().StringVar(&flagBindHost, "bind-host", "", "Bind host (overrides SOCKS5_BIND_HOST)")
	rootCmd.Flags().IntVar(&flagBindPort, "bind-port", 0, "Bind port (overrides SOCKS5_BIND_PORT)")
	rootCmd.Flags().BoolVar(&flagRequireAuth, "require-auth", false, "Require username/password authentication")
	rootCmd.Flags().StringVar(&flagUsername, "username", "", "Required username (overrides SOCKS5_USERNAME)")
	rootCmd.Flags().StringVar(&flagPassword, "password", "", "Required password (overrides SOCKS5_PASSWORD)")
	rootCmd.Flags().BoolVar(&flagAllowIPv6, "allow-ipv6", false, "Allow dialing IPv6 upstream targets")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, cmd)

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		AddSource:   cfg.Logging.AddSource,
		Service:     "socks5-server",
		Version:     version,
		Environment: cfg.Logging.Environment,
	})
	logger.SetGlobal(log)

	if appErr := validator.ValidateConfig(cfg.Socks5); appErr != nil {
		log.Error("invalid configuration", "error", appErr.Error())
		os.Exit(1)
	}

	log.Info("starting socks5 proxy",
		"version", version,
		"environment", cfg.Logging.Environment,
		"bind_addr", fmt.Sprintf("%s:%d", cfg.Socks5.BindHost, cfg.Socks5.BindPort),
		"require_auth", cfg.Socks5.RequireAuth,
		"connection_string", socks5.ConnectionString(cfg.Socks5),
	)

	sink := socks5.MultiSink{logger.NewSink(log), metrics.NewSink()}

	opts := []socks5.Option{
		socks5.WithEventSink(sink),
		socks5.WithRejectionObserver(func(addr net.Addr) {
			metrics.ConnectionsRejected.Inc()
		}),
	}

	if limiter := buildAdmitter(cfg, log); limiter != nil {
		opts = append(opts, socks5.WithAdmitter(limiter))
	}

	srv := socks5.NewServer(cfg.Socks5, opts...)

	ctx, cancel := context.WithCancel(context.Background())

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Serve(ctx)
	}()

	var metricsApp *fiber.App
	if cfg.Metrics.Enabled {
		metricsApp = newMetricsApp(cfg)
		go func() {
			addr := ":" + cfg.Metrics.Port
			log.Info("metrics server listening", "address", addr)
			if err := metricsApp.Listen(addr); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Error("server error", "error", err)
		}
		cancel()

	case sig := <-shutdown:
		log.Info("shutting down", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Socks5.ShutdownTimeout)
		defer shutdownCancel()

		if metricsApp != nil {
			if err := metricsApp.ShutdownWithContext(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown error", "error", err)
			}
		}

		<-serverErrors
		log.Info("server stopped gracefully")
	}
}

func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("bind-host") {
		cfg.Socks5.BindHost = flagBindHost
	}
	if cmd.Flags().Changed("bind-port") {
		cfg.Socks5.BindPort = uint16(flagBindPort)
	}
	if cmd.Flags().Changed("require-auth") {
		cfg.Socks5.RequireAuth = flagRequireAuth
	}
	if cmd.Flags().Changed("username") {
		cfg.Socks5.Username = flagUsername
	}
	if cmd.Flags().Changed("password") {
		cfg.Socks5.Password = flagPassword
	}
	if cmd.Flags().Changed("allow-ipv6") {
		cfg.Socks5.AllowIPv6 = flagAllowIPv6
	}
}

func buildAdmitter(cfg *config.Config, log *logger.Logger) socks5.Admitter {
	if !cfg.Admission.Enabled {
		return nil
	}
	if !cfg.Redis.Enabled {
		return admission.NewInMemoryLimiter(cfg.Admission.MaxConnections, cfg.Admission.WindowSize)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, falling back to in-memory admission control", "error", err)
		return admission.NewInMemoryLimiter(cfg.Admission.MaxConnections, cfg.Admission.WindowSize)
	}

	return admission.NewRedisLimiter(client, cfg.Admission.MaxConnections, cfg.Admission.WindowSize)
}

func newMetricsApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "socks5-proxy metrics v" + version,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())

	app.Get("/healthz", metrics.HealthHandler())
	app.Get(cfg.Metrics.Path, metrics.PrometheusHandler())

	return app
}
