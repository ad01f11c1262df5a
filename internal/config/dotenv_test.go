package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotenv(t *testing.T) {
	content := `# Store location
SOVEREIGN_DB_DIR=/var/lib/sovereign

# Quoted values
GATEWAY_BIND="127.0.0.1:18520"
AUDIT_DIR='/var/log/sovereign'

# Spaces around =
SPACED_KEY = spaced_value
`

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// Clear any existing values.
	os.Unsetenv("SOVEREIGN_DB_DIR")
	os.Unsetenv("GATEWAY_BIND")
	os.Unsetenv("AUDIT_DIR")
	os.Unsetenv("SPACED_KEY")

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key, want string
	}{
		{"SOVEREIGN_DB_DIR", "/var/lib/sovereign"},
		{"GATEWAY_BIND", "127.0.0.1:18520"},
		{"AUDIT_DIR", "/var/log/sovereign"},
		{"SPACED_KEY", "spaced_value"},
	}

	for _, tt := range tests {
		got := os.Getenv(tt.key)
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadDotenvShellisms(t *testing.T) {
	content := `export SOVEREIGN_GATEWAY_PORT=18520
SOVEREIGN_MAX_ENTRIES=500 # keep the store small
SOVEREIGN_GREETING="hello # not a comment"
`
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	os.Unsetenv("SOVEREIGN_GATEWAY_PORT")
	os.Unsetenv("SOVEREIGN_MAX_ENTRIES")
	os.Unsetenv("SOVEREIGN_GREETING")

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("SOVEREIGN_GATEWAY_PORT"); got != "18520" {
		t.Errorf("export prefix: got %q, want %q", got, "18520")
	}
	if got := os.Getenv("SOVEREIGN_MAX_ENTRIES"); got != "500" {
		t.Errorf("inline comment: got %q, want %q", got, "500")
	}
	if got := os.Getenv("SOVEREIGN_GREETING"); got != "hello # not a comment" {
		t.Errorf("quoted hash: got %q, want %q", got, "hello # not a comment")
	}
}

func TestLoadDotenvNoOverride(t *testing.T) {
	content := `EXISTING_VAR=new-value`
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EXISTING_VAR", "original")

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("EXISTING_VAR"); got != "original" {
		t.Errorf("expected existing var to be preserved, got %q", got)
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	err := LoadDotenv("/nonexistent/.env")
	if err != nil {
		t.Errorf("missing file should be silently ignored, got: %v", err)
	}
}
