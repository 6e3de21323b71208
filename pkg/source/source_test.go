package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunmann/agesplit/pkg/membudget"
	"github.com/eunmann/agesplit/pkg/s3fetch"
)

const sample = "id;joindate\n1;2024-03-01\n"

func budget(n uint64) *membudget.Budget {
	return membudget.New(membudget.Config{TotalBytes: n, Source: membudget.BudgetSourceConfig})
}

func readAll(t *testing.T, in *Input) string {
	t.Helper()
	data, err := io.ReadAll(in.Reader())
	require.NoError(t, err)
	return string(data)
}

func TestDecode_Plain(t *testing.T) {
	in, err := Decode("x.csv", strings.NewReader(sample), budget(1<<20))
	require.NoError(t, err)

	assert.Equal(t, FormatDelimited, in.Format)
	assert.Equal(t, CompressionNone, in.Compression)
	assert.Equal(t, int64(len(sample)), in.RawSize)
	assert.Equal(t, sample, readAll(t, in))
	// Each Reader starts from the beginning.
	assert.Equal(t, sample, readAll(t, in))
}

func TestDecode_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	in, err := Decode("x.csv.gz", &buf, budget(1<<20))
	require.NoError(t, err)
	assert.Equal(t, CompressionGzip, in.Compression)
	assert.Equal(t, sample, readAll(t, in))
}

func TestDecode_Zstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll([]byte(sample), nil)
	require.NoError(t, enc.Close())

	in, err := Decode("x.csv.zst", bytes.NewReader(compressed), budget(1<<20))
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, in.Compression)
	assert.Equal(t, sample, readAll(t, in))
}

func TestDecode_StripsUTF8BOM(t *testing.T) {
	in, err := Decode("bom.csv", strings.NewReader("\xef\xbb\xbf"+sample), budget(1<<20))
	require.NoError(t, err)
	assert.Equal(t, sample, readAll(t, in))
}

func TestDecode_UTF16LE(t *testing.T) {
	units := utf16.Encode([]rune(sample))
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xfe})
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, units))

	in, err := Decode("wide.csv", &buf, budget(1<<20))
	require.NoError(t, err)
	assert.Equal(t, sample, readAll(t, in))
}

func TestDecode_KeepsNonUTF8Bytes(t *testing.T) {
	latin1 := "id;name\n1;Jos\xe9\n"
	in, err := Decode("latin1.csv", strings.NewReader(latin1), budget(1<<20))
	require.NoError(t, err)
	assert.Equal(t, latin1, readAll(t, in))
}

func TestDecode_Parquet(t *testing.T) {
	in, err := Decode("x.parquet", strings.NewReader("PAR1....PAR1"), budget(1<<20))
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, in.Format)
}

func TestDecode_Budget(t *testing.T) {
	_, err := Decode("big.csv", strings.NewReader(sample), budget(8))
	assert.ErrorIs(t, err, ErrInputTooLarge)

	// A small gzip payload that inflates past the budget.
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err = gw.Write(bytes.Repeat([]byte("a,b\n"), 10000))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.Less(t, buf.Len(), 4096)

	_, err = Decode("bomb.csv.gz", &buf, budget(4096))
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestOpen_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	in, err := Open(context.Background(), path, budget(1<<20))
	require.NoError(t, err)
	assert.Equal(t, "contacts.csv", in.Name)
	assert.Equal(t, sample, readAll(t, in))

	_, err = Open(context.Background(), path, budget(4))
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), budget(1<<20))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_Stdin(t *testing.T) {
	o := &Opener{Budget: budget(1 << 20), Stdin: strings.NewReader(sample)}
	in, err := o.Open(context.Background(), StdinName)
	require.NoError(t, err)
	assert.Equal(t, "stdin", in.Name)
	assert.Equal(t, sample, readAll(t, in))
}

type fakeS3 struct {
	objects map[string]string
	calls   []string
}

func (f *fakeS3) StreamObject(_ context.Context, bucket, key string) (*s3fetch.Object, error) {
	f.calls = append(f.calls, bucket+"/"+key)
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &s3fetch.Object{Body: io.NopCloser(strings.NewReader(body)), Size: int64(len(body))}, nil
}

func TestOpen_S3(t *testing.T) {
	s3 := &fakeS3{objects: map[string]string{"exports/2024/contacts.csv": sample}}
	o := &Opener{Budget: budget(1 << 20), S3: s3}

	in, err := o.Open(context.Background(), "s3://exports/2024/contacts.csv")
	require.NoError(t, err)
	assert.Equal(t, "contacts.csv", in.Name)
	assert.Equal(t, sample, readAll(t, in))
	assert.Equal(t, []string{"exports/2024/contacts.csv"}, s3.calls)

	_, err = o.Open(context.Background(), "s3://exports/")
	assert.Error(t, err)
}
