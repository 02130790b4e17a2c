// Package compose builds the structured requests the external services
// expect from plain user inputs. Every function fails fast: a malformed or
// missing input surfaces here, before any network call is attempted. The
// only side effect is reading image files off disk.
package compose

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/stovetop/galley/pkg/actions"
	"github.com/stovetop/galley/pkg/chat"
	"github.com/stovetop/galley/pkg/tabular"
	"github.com/stovetop/galley/pkg/vector"
)

// Messages builds the role-tagged message list for a completion request:
// an optional system message, then the user prompt with any images read
// from disk and base64-encoded.
func Messages(system, prompt string, imagePaths []string) ([]chat.Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt is empty")
	}

	var messages []chat.Message
	if strings.TrimSpace(system) != "" {
		messages = append(messages, chat.Message{Role: chat.RoleSystem, Content: system})
	}

	user := chat.Message{Role: chat.RoleUser, Content: prompt}
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image %q: %w", path, err)
		}
		user.Images = append(user.Images, base64.StdEncoding.EncodeToString(data))
	}
	messages = append(messages, user)

	return messages, nil
}

// Document joins the named fields of one record as "name: value" lines,
// the text shape the embedding model sees. A missing or empty field fails
// the whole document.
func Document(values map[string]string, fields []string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("no fields named")
	}

	lines := make([]string, 0, len(fields))
	for _, field := range fields {
		value := strings.TrimSpace(values[field])
		if value == "" {
			return "", fmt.Errorf("field %q is missing or empty", field)
		}
		lines = append(lines, field+": "+value)
	}

	return strings.Join(lines, "\n"), nil
}

// Documents builds one embedding document per record in rows.
func Documents(rows *tabular.Rows, fields []string) ([]string, error) {
	docs := make([]string, 0, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		doc, err := Document(rows.Record(i), fields)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// RecordIDs resolves one id per record: the named column when idField is
// set, the 1-based record position otherwise.
func RecordIDs(rows *tabular.Rows, idField string) ([]string, error) {
	ids := make([]string, rows.Len())

	if idField == "" {
		for i := range ids {
			ids[i] = strconv.Itoa(i + 1)
		}
		return ids, nil
	}

	if rows.Index(idField) < 0 {
		return nil, fmt.Errorf("id field %q is not a column of the input", idField)
	}
	for i := range ids {
		id, _ := rows.Value(i, idField)
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("record %d has an empty id", i)
		}
		ids[i] = id
	}
	return ids, nil
}

// VectorQuery assembles a search query from an embedded vector, a result
// count, an optional filter expression and the fields to return.
func VectorQuery(vec []float32, k int, filter string, returns []string) (vector.Query, error) {
	if len(vec) == 0 {
		return vector.Query{}, fmt.Errorf("query vector is empty")
	}
	if k <= 0 {
		return vector.Query{}, fmt.Errorf("k must be positive, got %d", k)
	}

	parsed, err := vector.ParseFilter(filter)
	if err != nil {
		return vector.Query{}, err
	}

	var cleaned []string
	for _, name := range returns {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}

	return vector.Query{Vector: vec, K: k, Filter: parsed, Return: cleaned}, nil
}

// SQLRequest wraps a SQL statement for the action gateway, selecting the
// rows or file response shape.
func SQLRequest(query string, wantFile bool) (actions.QueryRequest, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return actions.QueryRequest{}, fmt.Errorf("query is empty")
	}

	req := actions.QueryRequest{Query: trimmed}
	if wantFile {
		req.Format = actions.FormatFile
	}
	return req, nil
}
