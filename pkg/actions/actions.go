// Package actions is the client side of an action gateway: the middleware
// endpoint a chat assistant invokes to run a database query and receive
// either JSON rows or a file-shaped attachment.
package actions

import (
	"encoding/json"
	"fmt"

	"github.com/stovetop/galley/pkg/envelope"
	"github.com/stovetop/galley/pkg/tabular"
)

// FormatFile asks the gateway to answer with a CSV file envelope instead of
// JSON rows.
const FormatFile = "file"

// QueryRequest asks the gateway to run a read-only SQL statement.
type QueryRequest struct {
	// Query is the SQL text, a single SELECT statement
	Query string `json:"query"`

	// Format selects the response shape: empty for JSON rows, "file"
	// for a CSV envelope
	Format string `json:"format,omitempty"`
}

// QueryResponse is the gateway's reply. Exactly one of Rows or File is set.
type QueryResponse struct {
	// Rows holds the result records. Kept raw so the field order the
	// gateway produced survives decoding.
	Rows json.RawMessage `json:"rows,omitempty"`

	// File is the attachment envelope for format "file"
	File *envelope.File `json:"file,omitempty"`
}

// Tabular decodes the rows payload with column order preserved.
func (r *QueryResponse) Tabular() (*tabular.Rows, error) {
	if r.Rows == nil {
		return nil, fmt.Errorf("response has no rows")
	}
	return tabular.FromJSON(r.Rows)
}
