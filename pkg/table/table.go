// Package table loads delimited or parquet input into an in-memory row set.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrSchema is matched by every *SchemaError.
	ErrSchema = errors.New("schema mismatch")
	// ErrNoHeader indicates the input has no header row.
	ErrNoHeader = errors.New("input has no header row")
	// ErrMalformedRow indicates a row with more fields than the header.
	ErrMalformedRow = errors.New("malformed row")
	// ErrUnsupportedSchema indicates a parquet schema that cannot be flattened.
	ErrUnsupportedSchema = errors.New("unsupported parquet schema")
)

// SchemaError reports a required column missing from the header.
type SchemaError struct {
	Column string
	Header []string
}

func (e *SchemaError) Error() string {
	found := make([]string, len(e.Header))
	for i, h := range e.Header {
		found[i] = strconv.Quote(h)
	}
	return fmt.Sprintf("column %q not found in header; found %d column(s): %s",
		e.Column, len(e.Header), strings.Join(found, ", "))
}

// Is makes errors.Is(err, ErrSchema) true.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// Row holds one record's raw field values, aligned with Table.Header.
type Row []string

// Table is an ordered row set with a header-derived column list.
type Table struct {
	Header []string
	Rows   []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the first column with the given name, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Require returns the index of a column, or a *SchemaError if it is absent.
func (t *Table) Require(name string) (int, error) {
	idx := t.Index(name)
	if idx < 0 {
		return -1, &SchemaError{Column: name, Header: append([]string(nil), t.Header...)}
	}
	return idx, nil
}

// Value returns row i's value for column col. Missing values read as "".
func (t *Table) Value(i, col int) string {
	row := t.Rows[i]
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
