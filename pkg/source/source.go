// Package source opens an input file, undoes transport encodings and holds
// the decoded bytes in memory so later stages can seek and rewind.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/eunmann/agesplit/internal/logctx"
	"github.com/eunmann/agesplit/pkg/humanfmt"
	"github.com/eunmann/agesplit/pkg/membudget"
	"github.com/eunmann/agesplit/pkg/s3fetch"
)

// ErrInputTooLarge is returned when the raw or decoded input exceeds the budget.
var ErrInputTooLarge = membudget.ErrExceeded

// StdinName is the URI that selects standard input.
const StdinName = "-"

// Format is the tabular layout of the decoded input.
type Format string

const (
	// FormatDelimited is CSV-like text.
	FormatDelimited Format = "delimited"
	// FormatParquet is an Apache Parquet file.
	FormatParquet Format = "parquet"
)

// Compression is the transport compression found on the raw input.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

var (
	gzipMagic    = []byte{0x1f, 0x8b}
	zstdMagic    = []byte{0x28, 0xb5, 0x2f, 0xfd}
	parquetMagic = []byte("PAR1")
)

// Input is a fully decoded input held in memory.
type Input struct {
	// Name is the base name of the source, used for logs and defaults.
	Name        string
	Format      Format
	Compression Compression
	// RawSize is the number of bytes read from the source before decoding.
	RawSize int64

	data []byte
}

// Reader returns a new reader positioned at the start of the decoded data.
func (in *Input) Reader() *bytes.Reader {
	return bytes.NewReader(in.data)
}

// Size returns the decoded length in bytes.
func (in *Input) Size() int64 {
	return int64(len(in.data))
}

// ObjectStreamer opens S3 objects. *s3fetch.Client implements it.
type ObjectStreamer interface {
	StreamObject(ctx context.Context, bucket, key string) (*s3fetch.Object, error)
}

// Opener resolves input URIs. The zero value reads local files; S3 and
// Stdin are filled in lazily from the environment when nil.
type Opener struct {
	Budget *membudget.Budget
	S3     ObjectStreamer
	Stdin  io.Reader
}

// Open reads uri (a local path, "-" for stdin, or s3://bucket/key) within
// budget and decodes it.
func Open(ctx context.Context, uri string, budget *membudget.Budget) (*Input, error) {
	o := &Opener{Budget: budget}
	return o.Open(ctx, uri)
}

// Open reads and decodes uri.
func (o *Opener) Open(ctx context.Context, uri string) (*Input, error) {
	log := logctx.FromContext(ctx)

	rc, size, err := o.open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	budget := o.budget()
	if size > 0 && uint64(size) > budget.Total() {
		return nil, fmt.Errorf("%w: %s is %s, budget is %s",
			ErrInputTooLarge, uri, humanfmt.Bytes(size), budget)
	}

	in, err := Decode(displayName(uri), rc, budget)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}

	log.Debug().
		Str("input", uri).
		Str("format", string(in.Format)).
		Str("compression", string(in.Compression)).
		Str("raw_size", humanfmt.Bytes(in.RawSize)).
		Str("decoded_size", humanfmt.Bytes(in.Size())).
		Msg("input loaded")

	return in, nil
}

func (o *Opener) budget() *membudget.Budget {
	if o.Budget == nil {
		o.Budget = membudget.NewFromSystemRAM()
	}
	return o.Budget
}

func (o *Opener) open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	switch {
	case uri == StdinName:
		r := o.Stdin
		if r == nil {
			r = os.Stdin
		}
		return io.NopCloser(r), -1, nil

	case s3fetch.IsS3URI(uri):
		bucket, key, err := s3fetch.ParseObjectURI(uri)
		if err != nil {
			return nil, 0, err
		}
		if o.S3 == nil {
			client, err := s3fetch.NewClient(ctx)
			if err != nil {
				return nil, 0, err
			}
			o.S3 = client
		}
		obj, err := o.S3.StreamObject(ctx, bucket, key)
		if err != nil {
			return nil, 0, err
		}
		return obj.Body, obj.Size, nil

	default:
		f, err := os.Open(uri)
		if err != nil {
			return nil, 0, fmt.Errorf("open input: %w", err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("stat input: %w", err)
		}
		if info.IsDir() {
			f.Close()
			return nil, 0, fmt.Errorf("open input: %s is a directory", uri)
		}
		return f, info.Size(), nil
	}
}

// Decode reads r within budget, decompresses gzip or zstd payloads and
// classifies the result. Delimited text has a UTF-8 BOM stripped and
// BOM-marked UTF-16 converted to UTF-8; other bytes are kept verbatim.
func Decode(name string, r io.Reader, budget *membudget.Budget) (*Input, error) {
	if budget == nil {
		budget = membudget.NewFromSystemRAM()
	}

	raw, err := budget.ReadAll(r)
	if err != nil {
		return nil, err
	}

	in := &Input{Name: name, Compression: CompressionNone, RawSize: int64(len(raw))}

	data, err := decompress(raw, budget, &in.Compression)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(data, parquetMagic) {
		in.Format = FormatParquet
		in.data = data
		return in, nil
	}

	text, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}
	in.Format = FormatDelimited
	in.data = text
	return in, nil
}

func decompress(raw []byte, budget *membudget.Budget, kind *Compression) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		*kind = CompressionGzip
		gzr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gzr.Close()
		return readDecompressed(gzr, budget)

	case bytes.HasPrefix(raw, zstdMagic):
		*kind = CompressionZstd
		dec, err := zstd.NewReader(bytes.NewReader(raw), zstd.WithDecoderMaxMemory(budget.Total()))
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		defer dec.Close()
		return readDecompressed(dec, budget)

	default:
		return raw, nil
	}
}

func readDecompressed(r io.Reader, budget *membudget.Budget) ([]byte, error) {
	data, err := budget.ReadAll(r)
	if err != nil {
		if errors.Is(err, membudget.ErrExceeded) {
			return nil, fmt.Errorf("decompressed %w", err)
		}
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return data, nil
}

func displayName(uri string) string {
	if uri == StdinName {
		return "stdin"
	}
	if s3fetch.IsS3URI(uri) {
		_, key, _ := strings.Cut(strings.TrimPrefix(uri, s3fetch.Scheme), "/")
		return filepath.Base(key)
	}
	return filepath.Base(uri)
}
