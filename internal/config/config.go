// Package config loads tern.yaml for the tern command.
//
// Sources are layered: built-in defaults, then the YAML file, then TERN_*
// environment variables, then _file secret references. The result is
// validated and converted to a server.Config.
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	  workers: 4
//	admin:
//	  address: 127.0.0.1:9090
//	static:
//	  - prefix: /
//	    dir: ./public
//	logging:
//	  level: info
//	  format: json
package config

import (
	"time"

	"github.com/tern-dev/tern/pkg/server"
	"github.com/tern-dev/tern/pkg/ws"
)

// FileName is the config file looked up in the working directory.
const FileName = "tern.yaml"

// Config is the file configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Headers   HeadersConfig   `yaml:"headers"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
	Static    []StaticConfig  `yaml:"static"`
	CORS      *CORSConfig     `yaml:"cors"`
	Auth      AuthConfig      `yaml:"auth"`

	path string
}

// ServerConfig maps to server.Config.
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Backlog           int           `yaml:"backlog"`
	Workers           int           `yaml:"workers"`
	OffloadWorkers    int           `yaml:"offload_workers"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	DeferAccept       time.Duration `yaml:"defer_accept"`
	ExposeErrors      bool          `yaml:"expose_errors"`
}

// HeadersConfig holds global headers.
type HeadersConfig struct {
	Request         map[string]string `yaml:"request"`
	Response        map[string]string `yaml:"response"`
	ExcludeResponse []string          `yaml:"exclude_response"`
}

// WebSocketConfig maps to ws.Config.
type WebSocketConfig struct {
	MaxMessageSize    int64         `yaml:"max_message_size"`
	SendQueueSize     int           `yaml:"send_queue_size"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	CloseTimeout      time.Duration `yaml:"close_timeout"`
	EnableCompression bool          `yaml:"compression"`
}

// AdminConfig configures the operations listener.
type AdminConfig struct {
	Address     string `yaml:"address"`
	MetricsPath string `yaml:"metrics_path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// StaticConfig mounts one static source. Exactly one of Dir and S3 is set.
type StaticConfig struct {
	Prefix       string    `yaml:"prefix"`
	Dir          string    `yaml:"dir"`
	S3           *S3Config `yaml:"s3"`
	Index        string    `yaml:"index"`
	CacheControl string    `yaml:"cache_control"`
}

// S3Config locates a bucket.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// PathStyle is needed by most S3-compatible stores.
	PathStyle bool `yaml:"path_style"`
}

// CORSConfig enables CORS when present.
type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age"`
}

// AuthConfig configures authentication.
type AuthConfig struct {
	JWT *JWTConfig `yaml:"jwt"`
}

// JWTConfig configures bearer token validation. Secret may be supplied
// through SecretFile.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"`
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	sc := server.DefaultConfig()
	wc := ws.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Host:              sc.Address,
			Port:              sc.Port,
			Backlog:           sc.Backlog,
			Workers:           sc.Workers,
			OffloadWorkers:    sc.OffloadWorkers,
			MaxBodyBytes:      sc.MaxBodyBytes,
			ReadHeaderTimeout: sc.ReadHeaderTimeout,
			ReadTimeout:       sc.ReadTimeout,
			WriteTimeout:      sc.WriteTimeout,
			IdleTimeout:       sc.IdleTimeout,
			ShutdownTimeout:   sc.ShutdownTimeout,
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize:    wc.MaxMessageSize,
			SendQueueSize:     wc.SendQueueSize,
			HandshakeTimeout:  wc.HandshakeTimeout,
			WriteTimeout:      wc.WriteTimeout,
			PingInterval:      wc.PingInterval,
			CloseTimeout:      wc.CloseTimeout,
			EnableCompression: wc.EnableCompression,
		},
		Admin:   AdminConfig{MetricsPath: sc.Admin.MetricsPath},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Path returns the file the config was loaded from, or "".
func (c *Config) Path() string { return c.path }
