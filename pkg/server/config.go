package server

import (
	"log/slog"
	"net/http"
	"runtime"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tern-dev/tern/pkg/ws"
)

// Config holds configuration for the server.
type Config struct {
	// Socket

	// Address is the host to bind (e.g., "0.0.0.0" or "127.0.0.1").
	// Default: "127.0.0.1".
	Address string

	// Port is the TCP port. 0 picks a free port.
	// Default: 8080.
	Port int

	// Backlog is the listen queue depth.
	// Default: 1024.
	Backlog int

	// DeferAccept sets TCP_DEFER_ACCEPT on Linux. Zero disables it.
	DeferAccept time.Duration

	// Workers

	// Workers is the number of accept loops sharing the socket.
	// Default: runtime.NumCPU().
	Workers int

	// OffloadWorkers bounds concurrently running offloaded handlers.
	// Default: 4 * GOMAXPROCS.
	OffloadWorkers int

	// HTTP

	// MaxBodyBytes limits request bodies. Negative disables the limit.
	// Default: 10MB.
	MaxBodyBytes int64

	// Timeouts for the per-worker http.Server.
	// Defaults: 10s header, 60s read, no write limit, 120s idle.
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds graceful shutdown before connections are
	// force-closed.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// RequestHeaders are added to every request that does not carry them.
	RequestHeaders http.Header

	// ResponseHeaders are added to every response that does not set them.
	ResponseHeaders http.Header

	// ExcludeResponseHeaders lists canonical paths that do not get
	// ResponseHeaders.
	ExcludeResponseHeaders []string

	// ExposeErrors puts internal error messages in 500 responses.
	// Default: false.
	ExposeErrors bool

	// WebSocket configures socket routes.
	// Default: ws.DefaultConfig().
	WebSocket *ws.Config

	// Admin configures the optional operations listener.
	Admin AdminConfig

	// Observability

	// MetricsNamespace prefixes metric names.
	// Default: "tern".
	MetricsNamespace string

	// Registry receives the server's collectors and backs the admin
	// metrics endpoint.
	// Default: a fresh registry per server.
	Registry *prometheus.Registry

	// TracerProvider is used for request spans.
	// Default: the otel global provider.
	TracerProvider trace.TracerProvider

	// Logger is the base logger.
	// Default: slog.Default().
	Logger *slog.Logger
}

// AdminConfig configures the operations listener.
type AdminConfig struct {
	// Address enables the admin listener when non-empty (e.g., "127.0.0.1:9090").
	Address string

	// MetricsPath serves Prometheus metrics.
	// Default: "/metrics".
	MetricsPath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           "127.0.0.1",
		Port:              8080,
		Backlog:           1024,
		Workers:           runtime.NumCPU(),
		OffloadWorkers:    4 * runtime.GOMAXPROCS(0),
		MaxBodyBytes:      10 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		WebSocket:         ws.DefaultConfig(),
		Admin:             AdminConfig{MetricsPath: "/metrics"},
		MetricsNamespace:  "tern",
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.WebSocket = c.WebSocket.Clone()
	clone.RequestHeaders = c.RequestHeaders.Clone()
	clone.ResponseHeaders = c.ResponseHeaders.Clone()
	clone.ExcludeResponseHeaders = slices.Clone(c.ExcludeResponseHeaders)
	return &clone
}

// WithAddress sets host and port and returns the config for chaining.
func (c *Config) WithAddress(host string, port int) *Config {
	c.Address = host
	c.Port = port
	return c
}

// WithWorkers sets the worker count and returns the config for chaining.
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

// WithWebSocket sets the WebSocket configuration and returns the config for chaining.
func (c *Config) WithWebSocket(wc *ws.Config) *Config {
	c.WebSocket = wc
	return c
}

// WithLogger sets the logger and returns the config for chaining.
func (c *Config) WithLogger(l *slog.Logger) *Config {
	c.Logger = l
	return c
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	defaults := DefaultConfig()
	if c == nil {
		return defaults
	}
	config := c.Clone()
	if config.Address == "" {
		config.Address = defaults.Address
	}
	if config.Backlog <= 0 {
		config.Backlog = defaults.Backlog
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.OffloadWorkers <= 0 {
		config.OffloadWorkers = defaults.OffloadWorkers
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.WebSocket == nil {
		config.WebSocket = defaults.WebSocket
	}
	if config.Admin.MetricsPath == "" {
		config.Admin.MetricsPath = defaults.Admin.MetricsPath
	}
	if config.MetricsNamespace == "" {
		config.MetricsNamespace = defaults.MetricsNamespace
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return config
}
