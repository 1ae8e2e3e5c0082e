// Package config loads application configuration from an optional YAML file
// and environment variables. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// TraceDir is where saved traces and the catalog database live.
	TraceDir string `yaml:"trace_dir"`

	// Logging settings.
	LogLevel  string `yaml:"log_level"`  // "debug", "info", "warn", "error"
	LogFormat string `yaml:"log_format"` // "text" or "json"

	// OTLP export settings for the `export -format otlp` bridge.
	OTLPEndpoint string `yaml:"otlp_endpoint"` // host:port; empty disables export
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	ServiceName  string `yaml:"service_name"`
}

// Load reads configuration with sensible defaults. Precedence, lowest to
// highest: defaults, YAML file (KIROKU_CONFIG, else ~/.config/kiroku.yaml
// when present), KIROKU_* environment variables.
func Load() (Config, error) {
	cfg := Config{
		TraceDir:     defaultTraceDir(),
		LogLevel:     "info",
		LogFormat:    "text",
		OTLPEndpoint: "",
		OTLPInsecure: false,
		ServiceName:  "kiroku",
	}

	path := configFilePath()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// No config file is the common case.
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.TraceDir = envStr("KIROKU_TRACE_DIR", cfg.TraceDir)
	cfg.LogLevel = envStr("KIROKU_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envStr("KIROKU_LOG_FORMAT", cfg.LogFormat)
	cfg.OTLPEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.OTLPInsecure = envBool("KIROKU_OTLP_INSECURE", cfg.OTLPInsecure)
	cfg.ServiceName = envStr("OTEL_SERVICE_NAME", cfg.ServiceName)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.TraceDir == "" {
		return fmt.Errorf("config: KIROKU_TRACE_DIR must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: KIROKU_LOG_FORMAT must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	return nil
}

func configFilePath() string {
	if p := os.Getenv("KIROKU_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "kiroku.yaml")
}

func defaultTraceDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kiroku"
	}
	return filepath.Join(home, ".kiroku", "traces")
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
