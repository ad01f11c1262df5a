package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, strips comments, expands ${{ .Env.VAR }}
// templates, unmarshals it into Config, and applies defaults. A missing
// file is not an error: the host runs fine on defaults alone.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates (before stripping, since templates are in strings)
	expanded := expandEnvTemplates(string(data))

	// Strip JSONC comments and unmarshal
	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Memory.MaxEntries and Memory.BusyTimeout stay zero on purpose: the
// store clamps its own defaults.
func applyDefaults(cfg *Config) {
	if cfg.Memory.Path == "" {
		cfg.Memory.Path = filepath.Join(SovereignPath(), "memory.db")
	}
	if cfg.Reader.MaxChars == 0 {
		cfg.Reader.MaxChars = 8000
	}
	if cfg.Reader.Timeout == 0 {
		cfg.Reader.Timeout = Duration(20 * time.Second)
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18520
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Events.AuditDir == "" {
		cfg.Events.AuditDir = filepath.Join(SovereignPath(), "events")
	}
	if cfg.Plugins.Dir == "" {
		cfg.Plugins.Dir = filepath.Join(SovereignPath(), "plugins")
	}
	if cfg.Maintenance.Schedule == "" {
		cfg.Maintenance.Schedule = "0 3 * * *"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
