package config

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tern-dev/tern/pkg/server"
	"github.com/tern-dev/tern/pkg/ws"
)

// Logger builds the slog logger selected by Logging, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Logging.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ServerConfig converts c to a server.Config using logger.
func (c *Config) ServerConfig(logger *slog.Logger) *server.Config {
	sc := server.DefaultConfig()
	sc.Address = c.Server.Host
	sc.Port = c.Server.Port
	sc.Backlog = c.Server.Backlog
	sc.Workers = c.Server.Workers
	sc.OffloadWorkers = c.Server.OffloadWorkers
	sc.MaxBodyBytes = c.Server.MaxBodyBytes
	sc.ReadHeaderTimeout = c.Server.ReadHeaderTimeout
	sc.ReadTimeout = c.Server.ReadTimeout
	sc.WriteTimeout = c.Server.WriteTimeout
	sc.IdleTimeout = c.Server.IdleTimeout
	sc.ShutdownTimeout = c.Server.ShutdownTimeout
	sc.DeferAccept = c.Server.DeferAccept
	sc.ExposeErrors = c.Server.ExposeErrors

	sc.RequestHeaders = toHeader(c.Headers.Request)
	sc.ResponseHeaders = toHeader(c.Headers.Response)
	sc.ExcludeResponseHeaders = c.Headers.ExcludeResponse

	wc := ws.DefaultConfig()
	wc.MaxMessageSize = c.WebSocket.MaxMessageSize
	wc.SendQueueSize = c.WebSocket.SendQueueSize
	wc.HandshakeTimeout = c.WebSocket.HandshakeTimeout
	wc.WriteTimeout = c.WebSocket.WriteTimeout
	wc.PingInterval = c.WebSocket.PingInterval
	wc.CloseTimeout = c.WebSocket.CloseTimeout
	wc.EnableCompression = c.WebSocket.EnableCompression
	sc.WebSocket = wc

	sc.Admin = server.AdminConfig{Address: c.Admin.Address, MetricsPath: c.Admin.MetricsPath}
	sc.Logger = logger
	return sc
}

func toHeader(m map[string]string) http.Header {
	if len(m) == 0 {
		return nil
	}
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
