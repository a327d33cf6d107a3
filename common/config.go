package common

import (
	"os"
	"strings"
)

const (
	defaultServiceName = "bd"
	defaultEnvironment = "local"
	defaultVersion     = "dev"
)

type LogConfig interface {
	Debug() bool
	ServiceName() string
}

type OtlpConfig interface {
	LogConfig
	Environment() string
	Dsn() string
	Version() string
	TracingEnabled() bool
}

// EnvConfig is the ambient process configuration read from the environment.
// Only DSN has no default; without it tracing stays disabled.
type EnvConfig struct {
	debug       bool
	dsn         string
	serviceName string
	environment string
	version     string
}

type EnvConfigOption func(*EnvConfig)

func WithDebug(debug bool) EnvConfigOption {
	return func(cfg *EnvConfig) {
		cfg.debug = cfg.debug || debug
	}
}

func WithVersion(version string) EnvConfigOption {
	return func(cfg *EnvConfig) {
		if version != "" {
			cfg.version = version
		}
	}
}

func NewEnvConfig(opts ...EnvConfigOption) *EnvConfig {
	cfg := &EnvConfig{
		debug:       strings.ToLower(os.Getenv("DEBUG")) == "true",
		dsn:         os.Getenv("DSN"),
		serviceName: getenv("SERVICE_NAME", defaultServiceName),
		environment: getenv("ENVIRONMENT", defaultEnvironment),
		version:     getenv("VERSION", defaultVersion),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (d *EnvConfig) Debug() bool {
	return d.debug
}

func (d *EnvConfig) Environment() string {
	return d.environment
}

func (d *EnvConfig) Dsn() string {
	return d.dsn
}

func (d *EnvConfig) ServiceName() string {
	return d.serviceName
}

func (d *EnvConfig) Version() string {
	return d.version
}

func (d *EnvConfig) TracingEnabled() bool {
	return d.dsn != ""
}

var _ OtlpConfig = (*EnvConfig)(nil)
