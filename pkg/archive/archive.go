// Package archive packs chunk files into a single in-memory deflate zip.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/eunmann/agesplit/pkg/table"
)

// DefaultLabel names archives when no project prefix is set.
const DefaultLabel = "agesplit"

// ErrDuplicateEntry is returned when two entries share a name.
var ErrDuplicateEntry = errors.New("duplicate archive entry")

// Entry is one file in the archive, written as <Name>.csv.
type Entry struct {
	Name   string
	Header []string
	Rows   [][]string
}

// FileName returns the entry's path inside the archive.
func (e Entry) FileName() string {
	return e.Name + ".csv"
}

// Options configures Build.
type Options struct {
	// Delimiter separates output fields. Zero means comma.
	Delimiter rune
	// Modified is stamped on every entry. Zero leaves the zip default.
	Modified time.Time
	// Level is the flate compression level. Zero means flate.DefaultCompression.
	Level int
}

// Build serializes entries in order and returns the finished zip. On any
// error no bytes are returned.
func Build(entries []Entry, opts Options) ([]byte, error) {
	level := opts.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("invalid compression level %d", level)
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.FileName())
		}
		seen[e.Name] = struct{}{}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	for _, e := range entries {
		if err := writeEntry(zw, e, opts); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, e Entry, opts Options) error {
	hdr := &zip.FileHeader{
		Name:   e.FileName(),
		Method: zip.Deflate,
	}
	if !opts.Modified.IsZero() {
		hdr.Modified = opts.Modified
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", hdr.Name, err)
	}
	if err := table.WriteCSV(w, opts.Delimiter, e.Header, e.Rows); err != nil {
		return fmt.Errorf("write entry %s: %w", hdr.Name, err)
	}
	return nil
}

// FileName returns the archive name <label>_<YYYYMMDD>.zip, using
// DefaultLabel when label is empty.
func FileName(label string, ref time.Time) string {
	if label == "" {
		label = DefaultLabel
	}
	return fmt.Sprintf("%s_%s.zip", label, ref.Format("20060102"))
}
