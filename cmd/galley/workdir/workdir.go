// Package workdir resolves where galley keeps its local state: the config
// file, the embedding cache and the embedded vector database.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Resolve returns the galley working directory, creating it if missing.
// Precedence: the override flag, $GALLEY_HOME, then ~/.galley.
func Resolve(override string) (string, error) {
	dir := override
	if dir == "" {
		dir = os.Getenv("GALLEY_HOME")
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".galley")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create working directory %s: %w", dir, err)
	}

	return dir, nil
}

// ConfigPath returns the config file inside dir when one exists, or empty
// when the defaults should apply.
func ConfigPath(dir string) string {
	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
