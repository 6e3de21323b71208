package table

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// parquetBatch is the number of rows read from a row group at a time.
const parquetBatch = 1024

// LoadParquet reads a flat parquet file into a Table. Column names come from
// the top-level schema fields; values are rendered as text, nulls as "".
// DATE and TIMESTAMP columns render as ISO dates and RFC 3339 timestamps so
// the classifier can parse them.
func LoadParquet(r io.ReaderAt, size int64, dateColumn string) (*Table, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	fields := file.Schema().Fields()
	header := make([]string, len(fields))
	renderers := make([]func(parquet.Value) string, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			return nil, fmt.Errorf("%w: column %q is nested", ErrUnsupportedSchema, field.Name())
		}
		header[i] = field.Name()
		renderers[i] = valueRenderer(field.Type().LogicalType())
	}

	t := &Table{Header: header}
	if dateColumn != "" {
		if _, err := t.Require(dateColumn); err != nil {
			return nil, err
		}
	}

	buf := make([]parquet.Row, parquetBatch)
	for _, rg := range file.RowGroups() {
		if err := readRowGroup(t, rg, buf, renderers); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func readRowGroup(t *Table, rg parquet.RowGroup, buf []parquet.Row, renderers []func(parquet.Value) string) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, prow := range buf[:n] {
			row := make(Row, len(t.Header))
			for _, val := range prow {
				col := val.Column()
				if val.IsNull() || col < 0 || col >= len(row) {
					continue
				}
				row[col] = renderers[col](val)
			}
			t.Rows = append(t.Rows, row)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// valueRenderer picks a text rendering for a column's logical type.
func valueRenderer(lt *format.LogicalType) func(parquet.Value) string {
	switch {
	case lt != nil && lt.Date != nil:
		return func(v parquet.Value) string {
			return time.Unix(int64(v.Int32())*86400, 0).UTC().Format(time.DateOnly)
		}
	case lt != nil && lt.Timestamp != nil:
		unit := lt.Timestamp.Unit
		return func(v parquet.Value) string {
			n := v.Int64()
			var ts time.Time
			switch {
			case unit.Millis != nil:
				ts = time.UnixMilli(n)
			case unit.Micros != nil:
				ts = time.UnixMicro(n)
			default:
				ts = time.Unix(0, n)
			}
			return ts.UTC().Format(time.RFC3339Nano)
		}
	default:
		return parquet.Value.String
	}
}
