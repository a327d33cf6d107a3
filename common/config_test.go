package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvConfigDefaults(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("DSN", "")
	t.Setenv("SERVICE_NAME", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("VERSION", "")

	cfg := NewEnvConfig()
	assert.False(t, cfg.Debug())
	assert.Equal(t, defaultServiceName, cfg.ServiceName())
	assert.Equal(t, defaultEnvironment, cfg.Environment())
	assert.Equal(t, defaultVersion, cfg.Version())
	assert.False(t, cfg.TracingEnabled())

	shutdown, err := InitOpentelemetry(cfg)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewEnvConfigFromEnvironment(t *testing.T) {
	t.Setenv("DEBUG", "TRUE")
	t.Setenv("DSN", "https://token@api.uptrace.dev/1")
	t.Setenv("SERVICE_NAME", "bd-test")
	t.Setenv("ENVIRONMENT", "ci")
	t.Setenv("VERSION", "")

	cfg := NewEnvConfig(WithVersion("1.2.3"))
	assert.True(t, cfg.Debug())
	assert.Equal(t, "bd-test", cfg.ServiceName())
	assert.Equal(t, "ci", cfg.Environment())
	assert.Equal(t, "1.2.3", cfg.Version())
	assert.True(t, cfg.TracingEnabled())
}

func TestWithDebugOverridesEnvironment(t *testing.T) {
	t.Setenv("DEBUG", "false")

	assert.True(t, NewEnvConfig(WithDebug(true)).Debug())
	assert.False(t, NewEnvConfig(WithDebug(false)).Debug())
}

func TestNewLogger(t *testing.T) {
	t.Setenv("DEBUG", "true")

	logger, err := NewLogger(NewEnvConfig())
	require.NoError(t, err)
	require.NotNil(t, logger.ZapLogger())

	logger.Ctx(context.Background()).Debug("logger ready")
	child := logger.With()
	assert.NotNil(t, child.OtelZapLogger())

	nop := NewNopLogger()
	nop.Ctx(context.Background()).Info("discarded")
}
