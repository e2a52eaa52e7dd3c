package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps validation failures returned by Load.
var ErrInvalid = errors.New("config: invalid configuration")

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "TERN_"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML file (explicit path, TERN_CONFIG env, ./tern.yaml)
//  3. TERN_* environment variables
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if p := discover(path); p != "" {
		if err := loadYAML(p, &cfg); err != nil {
			return nil, fmt.Errorf("%w: loading %s: %w", ErrInvalid, p, err)
		}
		cfg.path = p
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &cfg, nil
}

func discover(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	return ""
}

// loadYAML decodes path over cfg. Unknown keys are rejected so typos do not
// pass silently.
func loadYAML(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv maps TERN_* variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("HOST", &cfg.Server.Host)
	str("ADMIN_ADDRESS", &cfg.Admin.Address)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	for name, dst := range map[string]*int{
		"PORT":            &cfg.Server.Port,
		"WORKERS":         &cfg.Server.Workers,
		"OFFLOAD_WORKERS": &cfg.Server.OffloadWorkers,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "JWT_SECRET"); ok && v != "" {
		if cfg.Auth.JWT == nil {
			cfg.Auth.JWT = &JWTConfig{}
		}
		cfg.Auth.JWT.Secret = v
	}
	return nil
}

// resolveFileReferences fills secrets from their _file counterparts when
// the value itself is empty.
func resolveFileReferences(cfg *Config) error {
	if j := cfg.Auth.JWT; j != nil && j.SecretFile != "" && j.Secret == "" {
		val, err := readSecretFile(j.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		j.Secret = val
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
