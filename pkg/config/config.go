package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aureonet/socks5-proxy/internal/socks5"
)

// Config holds all application configuration.
type Config struct {
	// Socks5 is the proxy core's own configuration (internal/socks5.Config).
	Socks5 socks5.Config

	// Redis backs the admission limiter (pkg/admission).
	Redis RedisConfig

	// Logging configures pkg/logger.
	Logging LoggingConfig

	// Metrics configures the Prometheus exposition server (pkg/metrics).
	Metrics MetricsConfig

	// Admission configures per-source-IP connection admission control.
	Admission AdmissionConfig
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string
	Format      string
	AddSource   bool
	Service     string
	Version     string
	Environment string
}

// MetricsConfig holds the admin HTTP server's configuration (serves
// /metrics and /healthz, never SOCKS5 traffic itself).
type MetricsConfig struct {
	Enabled bool
	Port    string
	Path    string
}

// AdmissionConfig holds per-source-IP connection rate limiting.
type AdmissionConfig struct {
	Enabled        bool
	MaxConnections int
	WindowSize     time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	maxPending := getEnvAsInt("SOCKS5_MAX_PENDING", 128)

	cfg := &Config{
		Socks5: socks5.Config{
			BindHost:        getEnv("SOCKS5_BIND_HOST", "0.0.0.0"),
			BindPort:        uint16(getEnvAsInt("SOCKS5_BIND_PORT", 1080)),
			MaxPending:      maxPending,
			RequireAuth:     getEnvAsBool("SOCKS5_REQUIRE_AUTH", false),
			Username:        getEnv("SOCKS5_USERNAME", ""),
			Password:        getEnv("SOCKS5_PASSWORD", ""),
			ReadTimeout:     getEnvAsDuration("SOCKS5_READ_TIMEOUT", 30*time.Second),
			DialTimeout:     getEnvAsDuration("SOCKS5_DIAL_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SOCKS5_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowIPv6:       getEnvAsBool("SOCKS5_ALLOW_IPV6", false),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			AddSource:   getEnvAsBool("LOG_ADD_SOURCE", true),
			Service:     getEnv("SERVICE_NAME", "socks5-proxy"),
			Version:     getEnv("VERSION", "1.0.0"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},

		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Port:    getEnv("METRICS_PORT", "9090"),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},

		Admission: AdmissionConfig{
			Enabled: getEnvAsBool("ADMISSION_ENABLED", false),
			// MaxConnections defaults to MaxPending: in the absence of a raw
			// listen(2) backlog knob, the pending-connections budget doubles
			// as the admission limiter's default per-source burst size.
			MaxConnections: getEnvAsInt("ADMISSION_MAX_CONNECTIONS", maxPending),
			WindowSize:     getEnvAsDuration("ADMISSION_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration beyond what pkg/validator checks
// against the socks5.Config shape: cross-cutting constraints between
// sibling sections (admission needs Redis when enabled).
func (c *Config) Validate() error {
	if c.Admission.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("ADMISSION_ENABLED requires REDIS_ENABLED")
	}
	return nil
}

// Helper functions.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Logging.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Logging.Environment == "production"
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
