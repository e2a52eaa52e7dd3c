package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tern-dev/tern/pkg/routepath"
)

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 0..65535, got %d", c.Server.Port))
	}
	if c.Server.Workers < 0 {
		errs = append(errs, fmt.Errorf("server.workers must be >= 0, got %d", c.Server.Workers))
	}
	if c.Server.OffloadWorkers < 0 {
		errs = append(errs, fmt.Errorf("server.offload_workers must be >= 0, got %d", c.Server.OffloadWorkers))
	}
	if c.WebSocket.SendQueueSize < 0 {
		errs = append(errs, fmt.Errorf("websocket.send_queue_size must be >= 0, got %d", c.WebSocket.SendQueueSize))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if p := c.Admin.MetricsPath; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("admin.metrics_path must start with /, got %q", p))
	}

	for i, s := range c.Static {
		field := fmt.Sprintf("static[%d]", i)
		if _, err := routepath.Canonicalize(s.Prefix); err != nil || !strings.HasPrefix(s.Prefix, "/") {
			errs = append(errs, fmt.Errorf("%s.prefix must be an absolute path, got %q", field, s.Prefix))
		}
		switch {
		case s.Dir == "" && s.S3 == nil:
			errs = append(errs, fmt.Errorf("%s needs dir or s3", field))
		case s.Dir != "" && s.S3 != nil:
			errs = append(errs, fmt.Errorf("%s sets both dir and s3", field))
		case s.S3 != nil && s.S3.Bucket == "":
			errs = append(errs, fmt.Errorf("%s.s3.bucket is required", field))
		}
	}

	if c.CORS != nil && len(c.CORS.AllowOrigins) == 0 {
		errs = append(errs, errors.New("cors.allow_origins is required when cors is set"))
	}
	if j := c.Auth.JWT; j != nil && j.Secret == "" && j.SecretFile == "" {
		errs = append(errs, errors.New("auth.jwt.secret or auth.jwt.secret_file is required"))
	}

	return errors.Join(errs...)
}
