package present

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stovetop/galley/pkg/envelope"
	"github.com/stovetop/galley/pkg/tabular"
)

// CSVFile writes rows as a CSV artifact named name under dir, creating the
// directory if needed, and returns the written path.
func CSVFile(dir, name string, rows *tabular.Rows) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}

	if err := rows.WriteCSV(f); err != nil {
		f.Close()
		return "", fmt.Errorf("write artifact %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close artifact %q: %w", path, err)
	}

	return path, nil
}

// SaveEnvelope writes a file envelope received from the action gateway into
// dir and returns the written path.
func SaveEnvelope(dir string, file envelope.File) (string, error) {
	path, err := file.Save(dir)
	if err != nil {
		return "", fmt.Errorf("save envelope: %w", err)
	}
	return path, nil
}
