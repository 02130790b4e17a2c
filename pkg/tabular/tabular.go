// Package tabular holds the ordered row/column model shared by the gateway,
// the clients, and the presenters. Values are carried as text: the reference
// artifact format is delimited text, and services that return typed JSON are
// reduced to their literal form on receipt.
//
// Column order is significant everywhere: when rows are decoded from a JSON
// record sequence, the column order follows the key order of the first
// record, with keys first seen in later records appended behind it.
package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// Rows is an ordered set of records over an ordered set of columns.
// Every record holds exactly one value per column; absent values are empty.
type Rows struct {
	Columns []string
	Records [][]string
}

// New creates an empty Rows with the given column order.
func New(columns ...string) *Rows {
	return &Rows{Columns: append([]string(nil), columns...)}
}

// Append adds one record. The number of values must match the column count.
func (r *Rows) Append(values ...string) error {
	if len(values) != len(r.Columns) {
		return fmt.Errorf("record has %d values for %d columns", len(values), len(r.Columns))
	}
	r.Records = append(r.Records, append([]string(nil), values...))
	return nil
}

// Len returns the number of records.
func (r *Rows) Len() int {
	return len(r.Records)
}

// Index returns the position of a column, or -1 when absent.
func (r *Rows) Index(column string) int {
	for i, c := range r.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the value of the named column in record i.
// The second return is false when the column does not exist.
func (r *Rows) Value(i int, column string) (string, bool) {
	idx := r.Index(column)
	if idx < 0 || i < 0 || i >= len(r.Records) {
		return "", false
	}
	return r.Records[i][idx], true
}

// Record returns record i as a column-to-value map.
func (r *Rows) Record(i int) map[string]string {
	if i < 0 || i >= len(r.Records) {
		return nil
	}

	values := make(map[string]string, len(r.Columns))
	for j, col := range r.Columns {
		values[col] = r.Records[i][j]
	}
	return values
}

// FromJSON decodes a JSON array of objects into Rows. The decoder walks the
// token stream rather than unmarshalling into maps, which is what preserves
// the first record's key order.
func FromJSON(data []byte) (*Rows, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode record array: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expected a JSON array of records, got %v", tok)
	}

	rows := New()
	seen := map[string]int{}

	type pair struct {
		key string
		val string
	}
	var parsed [][]pair

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return nil, fmt.Errorf("expected a JSON object record, got %v", tok)
		}

		var rec []pair
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("decode record key: %w", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("record key is not a string: %v", keyTok)
			}

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("decode value of %q: %w", key, err)
			}

			if _, known := seen[key]; !known {
				seen[key] = len(rows.Columns)
				rows.Columns = append(rows.Columns, key)
			}
			rec = append(rec, pair{key: key, val: literal(raw)})
		}
		if _, err := dec.Token(); err != nil { // closing brace
			return nil, fmt.Errorf("decode record: %w", err)
		}
		parsed = append(parsed, rec)
	}
	if _, err := dec.Token(); err != nil { // closing bracket
		return nil, fmt.Errorf("decode record array: %w", err)
	}

	for _, rec := range parsed {
		values := make([]string, len(rows.Columns))
		for _, p := range rec {
			values[seen[p.key]] = p.val
		}
		rows.Records = append(rows.Records, values)
	}

	return rows, nil
}

// literal reduces a raw JSON value to its textual form. Strings are
// unquoted, null becomes empty, everything else keeps its literal encoding.
func literal(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// MarshalJSON emits the records as an array of objects whose keys follow the
// column order. Every record carries the full column set.
func (r *Rows) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, rec := range r.Records {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range r.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(rec[j])
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// WriteCSV writes the rows as delimited text, header first.
func (r *Rows) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range r.Records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadCSV reads delimited text produced by WriteCSV (or any header-first
// CSV) back into Rows.
func ReadCSV(rd io.Reader) (*Rows, error) {
	cr := csv.NewReader(rd)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	rows := New(header...)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		rows.Records = append(rows.Records, rec)
	}
	return rows, nil
}
