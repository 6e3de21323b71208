package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSVOptions configures LoadCSV.
type CSVOptions struct {
	// Delimiter is the field separator. Zero means comma.
	Delimiter rune
	// DateColumn, when set, must be present in the header.
	DateColumn string
}

// newDelimitedReader creates a csv.Reader configured for uploaded exports:
//   - Accept variable field counts (FieldsPerRecord = -1)
//   - Handle lazy quotes common in spreadsheet exports
func newDelimitedReader(r io.Reader, delim rune) *csv.Reader {
	csvr := csv.NewReader(r)
	csvr.Comma = delim
	csvr.FieldsPerRecord = -1
	csvr.LazyQuotes = true
	return csvr
}

// LoadCSV reads the full input. The first record is the header; blank lines
// are skipped and short rows are padded to the header width.
func LoadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}
	csvr := newDelimitedReader(r, delim)

	header, err := csvr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Header: header}
	if opts.DateColumn != "" {
		if _, err := t.Require(opts.DateColumn); err != nil {
			return nil, err
		}
	}

	for {
		fields, err := csvr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}

		if len(fields) > len(header) {
			line, _ := csvr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrMalformedRow, line, len(fields), len(header))
		}

		row := make(Row, len(header))
		copy(row, fields)
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// WriteCSV serializes a header and rows as delimited text with "\n" line
// endings and no index column.
func WriteCSV(w io.Writer, delim rune, header []string, rows [][]string) error {
	if delim == 0 {
		delim = ','
	}
	csvw := csv.NewWriter(w)
	csvw.Comma = delim

	if err := csvw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := csvw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	csvw.Flush()
	if err := csvw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
