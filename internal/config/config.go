package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the root configuration for Sovereign.
type Config struct {
	Memory      MemoryConfig      `json:"memory"`
	Reader      ReaderConfig      `json:"reader"`
	Gateway     GatewayConfig     `json:"gateway"`
	Events      EventsConfig      `json:"events"`
	Plugins     PluginsConfig     `json:"plugins"`
	Maintenance MaintenanceConfig `json:"maintenance"`
	Log         LogConfig         `json:"log"`
}

// MemoryConfig configures the fact store. MaxEntries and BusyTimeout fall
// back to the store's own defaults when left zero.
type MemoryConfig struct {
	Path        string   `json:"path"` // database file (default: $SOVEREIGN_PATH/memory.db)
	MaxEntries  int      `json:"max_entries,omitempty"`
	BusyTimeout Duration `json:"busy_timeout,omitempty"`
}

// ReaderConfig configures the webpage reader tool.
type ReaderConfig struct {
	MaxChars     int      `json:"max_chars"`
	Timeout      Duration `json:"timeout"`
	UserAgent    string   `json:"user_agent,omitempty"`
	AllowedHosts []string `json:"allowed_hosts,omitempty"` // glob patterns; empty = all
	BlockedHosts []string `json:"blocked_hosts,omitempty"` // glob patterns, checked first
	Disabled     bool     `json:"disabled,omitempty"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// EventsConfig holds event bus and audit log settings.
type EventsConfig struct {
	BufferSize    int    `json:"buffer_size"`
	AuditDir      string `json:"audit_dir"` // default: $SOVEREIGN_PATH/events
	AuditDisabled bool   `json:"audit_disabled,omitempty"`
}

// PluginsConfig configures the plugin system.
type PluginsConfig struct {
	Dir     string   `json:"dir"`               // plugin directory (default: $SOVEREIGN_PATH/plugins)
	Enabled []string `json:"enabled,omitempty"` // enabled plugin names (empty = all)
}

// MaintenanceConfig configures the housekeeping schedule.
type MaintenanceConfig struct {
	Schedule string `json:"schedule"` // cron expression (default: "0 3 * * *")
	Disabled bool   `json:"disabled,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `json:"level"` // debug, info, warn, error
}

// SlogLevel maps the configured level name to a slog level. Unknown
// names fall back to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
