package config

import (
	"os"
	"path/filepath"
)

// SovereignPath returns the root directory for Sovereign data.
// It uses $SOVEREIGN_PATH if set, otherwise defaults to ~/.sovereign.
func SovereignPath() string {
	if v := os.Getenv("SOVEREIGN_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".sovereign")
	}
	return filepath.Join(home, ".sovereign")
}

// ConfigPath returns the path to the Sovereign config file.
func ConfigPath() string {
	return filepath.Join(SovereignPath(), "config.jsonc")
}

// DotenvPath returns the path to the Sovereign .env file.
func DotenvPath() string {
	return filepath.Join(SovereignPath(), ".env")
}
