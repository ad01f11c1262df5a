package config

import (
	"fmt"
	"os"
	"strings"
)

// LoadDotenv reads a .env file and exports every assignment that is not
// already present in the environment, so real env vars always win. A
// missing file is not an error. Lines may use the shell-compatible
// `export KEY=value` form, and unquoted values may carry a trailing
// `# comment`.
func LoadDotenv(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("dotenv %s: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseDotenvLine(line)
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("dotenv %s: set %s: %w", path, key, err)
		}
	}
	return nil
}

// parseDotenvLine extracts one KEY=value assignment. Blank lines,
// comments, and lines without an assignment report ok=false.
func parseDotenvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}

	value = strings.TrimSpace(value)
	switch {
	case len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"':
		value = value[1 : len(value)-1]
	case len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\'':
		value = value[1 : len(value)-1]
	default:
		// Unquoted values stop at an inline comment.
		if i := strings.Index(value, " #"); i >= 0 {
			value = strings.TrimSpace(value[:i])
		}
	}
	return key, value, true
}
