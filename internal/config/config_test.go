package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"KIROKU_CONFIG", "KIROKU_TRACE_DIR", "KIROKU_LOG_LEVEL", "KIROKU_LOG_FORMAT",
		"KIROKU_OTLP_INSECURE", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	// Point the file lookup at an empty dir so a developer's real
	// ~/.config/kiroku.yaml cannot leak into the test.
	t.Setenv("KIROKU_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.TraceDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.False(t, cfg.OTLPInsecure)
	assert.Equal(t, "kiroku", cfg.ServiceName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("KIROKU_TRACE_DIR", "/data/traces")
	t.Setenv("KIROKU_LOG_LEVEL", "debug")
	t.Setenv("KIROKU_LOG_FORMAT", "json")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	t.Setenv("KIROKU_OTLP_INSECURE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/traces", cfg.TraceDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
	assert.True(t, cfg.OTLPInsecure)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kiroku.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trace_dir: /yaml/traces
log_level: warn
otlp_endpoint: collector:4318
`), 0o644))
	t.Setenv("KIROKU_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/yaml/traces", cfg.TraceDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "collector:4318", cfg.OTLPEndpoint)
	assert.Equal(t, "text", cfg.LogFormat, "unset file keys keep their defaults")
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kiroku.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))
	t.Setenv("KIROKU_CONFIG", path)
	t.Setenv("KIROKU_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kiroku.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: [unclosed\n"), 0o644))
	t.Setenv("KIROKU_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_LogFormat(t *testing.T) {
	clearEnv(t)
	t.Setenv("KIROKU_LOG_FORMAT", "xml")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KIROKU_LOG_FORMAT")
}
