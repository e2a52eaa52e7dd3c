package ws

import (
	"net/http"
	"time"
)

// Config holds WebSocket settings.
type Config struct {
	// ReadBufferSize and WriteBufferSize size the upgrader's I/O buffers.
	// Default: 4096.
	ReadBufferSize  int
	WriteBufferSize int

	// MaxMessageSize is the largest inbound message accepted.
	// Default: 1MB.
	MaxMessageSize int64

	// SendQueueSize is the per-connection outbound queue length.
	// Default: 64.
	SendQueueSize int

	// HandshakeTimeout bounds the upgrade handshake.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single frame write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// PingInterval is the time between heartbeat pings. The connection is
	// dropped when nothing, pongs included, arrives within twice this.
	// Default: 30 seconds.
	PingInterval time.Duration

	// CloseTimeout bounds the close handshake.
	// Default: 5 seconds.
	CloseTimeout time.Duration

	// EnableCompression negotiates permessage-deflate.
	EnableCompression bool

	// CheckOrigin validates the Origin header.
	// Default: allows all origins.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		MaxMessageSize:   1 << 20,
		SendQueueSize:    64,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
		CloseTimeout:     5 * time.Second,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// withDefaults fills zero fields.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	out := c.Clone()
	if out == nil {
		return d
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.SendQueueSize == 0 {
		out.SendQueueSize = d.SendQueueSize
	}
	if out.HandshakeTimeout == 0 {
		out.HandshakeTimeout = d.HandshakeTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.PingInterval == 0 {
		out.PingInterval = d.PingInterval
	}
	if out.CloseTimeout == 0 {
		out.CloseTimeout = d.CloseTimeout
	}
	return out
}
