package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readArchive(t *testing.T, data []byte) (*zip.Reader, map[string]string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	contents := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		contents[f.Name] = string(body)
	}
	return zr, contents
}

func TestBuild(t *testing.T) {
	entries := []Entry{
		{Name: "0-30_days_chunk001", Header: []string{"id", "joindate"}, Rows: [][]string{{"1", "2024-03-01"}, {"2", "2024-03-02"}}},
		{Name: "outside_0_90_chunk001", Header: []string{"id", "joindate"}, Rows: [][]string{{"3", "2020-01-01"}}},
	}
	modified := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	data, err := Build(entries, Options{Delimiter: ';', Modified: modified})
	require.NoError(t, err)

	zr, contents := readArchive(t, data)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "0-30_days_chunk001.csv", zr.File[0].Name)
	assert.Equal(t, "outside_0_90_chunk001.csv", zr.File[1].Name)
	assert.Equal(t, zip.Deflate, zr.File[0].Method)
	assert.True(t, zr.File[0].Modified.Equal(modified))

	assert.Equal(t, "id;joindate\n1;2024-03-01\n2;2024-03-02\n", contents["0-30_days_chunk001.csv"])
	assert.Equal(t, "id;joindate\n3;2020-01-01\n", contents["outside_0_90_chunk001.csv"])
}

func TestBuild_HeaderOnlyEntry(t *testing.T) {
	data, err := Build([]Entry{{Name: "empty", Header: []string{"a", "b"}}}, Options{})
	require.NoError(t, err)

	_, contents := readArchive(t, data)
	assert.Equal(t, "a,b\n", contents["empty.csv"])
}

func TestBuild_NoEntries(t *testing.T) {
	data, err := Build(nil, Options{})
	require.NoError(t, err)

	zr, _ := readArchive(t, data)
	assert.Empty(t, zr.File)
}

func TestBuild_CompressionLevels(t *testing.T) {
	rows := make([][]string, 500)
	for i := range rows {
		rows[i] = []string{"repeated value", "2024-01-01"}
	}
	entries := []Entry{{Name: "big", Header: []string{"v", "d"}, Rows: rows}}

	fast, err := Build(entries, Options{Level: 1})
	require.NoError(t, err)
	best, err := Build(entries, Options{Level: 9})
	require.NoError(t, err)

	_, a := readArchive(t, fast)
	_, b := readArchive(t, best)
	assert.Equal(t, a, b)

	_, err = Build(entries, Options{Level: 42})
	assert.Error(t, err)
}

func TestBuild_DuplicateEntry(t *testing.T) {
	data, err := Build([]Entry{{Name: "x"}, {Name: "x"}}, Options{})
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	assert.Nil(t, data)
}

func TestFileName(t *testing.T) {
	ref := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "agesplit_20240310.zip", FileName("", ref))
	assert.Equal(t, "Brightcall_Split_20240310.zip", FileName("Brightcall_Split", ref))
}
