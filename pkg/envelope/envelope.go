// Package envelope implements the file-attachment payload exchanged with the
// action gateway: a named, MIME-typed file carried as base64 content inside a
// JSON body.
package envelope

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// File is the wire shape of an attached file.
type File struct {
	Name     string `json:"name"`      // File name, e.g. "results.csv"
	MimeType string `json:"mime_type"` // IANA media type, e.g. "text/csv"
	Content  string `json:"content"`   // Base64-encoded payload (standard encoding)
}

// New wraps raw bytes in an envelope. Empty payloads are valid and
// round-trip to empty bytes.
func New(name, mimeType string, data []byte) File {
	return File{
		Name:     name,
		MimeType: mimeType,
		Content:  base64.StdEncoding.EncodeToString(data),
	}
}

// Bytes decodes the payload back to its original bytes.
func (f File) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(f.Content)
	if err != nil {
		return nil, fmt.Errorf("decode envelope content: %w", err)
	}
	return data, nil
}

// Validate checks that the envelope names a file, carries a media type, and
// holds decodable content.
func (f File) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("envelope has no file name")
	}
	if f.MimeType == "" {
		return fmt.Errorf("envelope %q has no mime type", f.Name)
	}
	if _, err := base64.StdEncoding.DecodeString(f.Content); err != nil {
		return fmt.Errorf("envelope %q content is not base64: %w", f.Name, err)
	}
	return nil
}

// Save writes the decoded payload into dir under the envelope's base name and
// returns the written path. The name is reduced to its final element so a
// hostile envelope cannot escape the directory.
func (f File) Save(dir string) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}

	name := filepath.Base(f.Name)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("envelope file name %q is not usable", f.Name)
	}

	data, err := f.Bytes()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write envelope file: %w", err)
	}

	return path, nil
}
