// Package backup exports and imports the memory store as JSONL,
// optionally encrypted with an age X25519 identity.
package backup

import (
	"fmt"
	"os"
	"path/filepath"

	"filippo.io/age"

	"github.com/sovereign-tools/sovereign/internal/config"
)

// KeyPath returns the default age key file path: $SOVEREIGN_PATH/.age-key.
func KeyPath() string {
	return filepath.Join(config.SovereignPath(), ".age-key")
}

// GenerateIdentity creates an X25519 key pair and writes it to path with 0o600.
// It is idempotent: if the file already exists, it does nothing.
func GenerateIdentity(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // already exists
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generate age identity: %w", err)
	}

	content := fmt.Sprintf("# created by sovereign\n# public key: %s\n%s\n",
		identity.Recipient().String(), identity.String())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write age key: %w", err)
	}
	return nil
}

// LoadIdentity reads an age private key from the given file.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open age key: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in %s", path)
	}

	id, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("unexpected identity type in %s", path)
	}
	return id, nil
}
