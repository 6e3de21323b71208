package partition

import (
	"testing"

	"github.com/eunmann/agesplit/pkg/buckets"
	"github.com/eunmann/agesplit/pkg/classify"
	"github.com/eunmann/agesplit/pkg/table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classified builds rows whose buckets follow the given sequence.
func classified(ids ...buckets.ID) []classify.Row {
	rows := make([]classify.Row, len(ids))
	for i, id := range ids {
		rows[i] = classify.Row{Index: i, Bucket: id, Date: classify.DateOutcome{Parsed: id != buckets.InvalidDate}}
	}
	return rows
}

func repeat(id buckets.ID, n int) []buckets.ID {
	out := make([]buckets.ID, n)
	for i := range out {
		out[i] = id
	}
	return out
}

func names(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Name
	}
	return out
}

func TestName(t *testing.T) {
	assert.Equal(t, "0-30_days_chunk001", Name("", buckets.Days0To30, 1))
	assert.Equal(t, "acme_outside_0_90_chunk012", Name("acme", buckets.Outside0To90, 12))
	assert.Equal(t, "invalid_date_chunk1000", Name("", buckets.InvalidDate, 1000))
	assert.Equal(t, "acme_60-90_days_chunk002_sub03", SubName(Name("acme", buckets.Days60To90, 2), 3))
}

func TestSplit_ScenarioHundredRows(t *testing.T) {
	ids := append(repeat(buckets.Days0To30, 45), repeat(buckets.Outside0To90, 55)...)
	chunks, err := Split(classified(ids...), 50, "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"0-30_days_chunk001",
		"outside_0_90_chunk001",
		"outside_0_90_chunk002",
	}, names(chunks))
	assert.Equal(t, 45, chunks[0].Len())
	assert.Equal(t, 50, chunks[1].Len())
	assert.Equal(t, 5, chunks[2].Len())
}

func TestSplit_PreservesOrderWithinBucket(t *testing.T) {
	ids := []buckets.ID{
		buckets.InvalidDate, buckets.Days0To30, buckets.Days30To60, buckets.Days0To30,
		buckets.InvalidDate, buckets.Days0To30, buckets.Days0To30, buckets.Days30To60,
	}
	chunks, err := Split(classified(ids...), 2, "p")
	require.NoError(t, err)

	got := map[buckets.ID][]int{}
	for _, c := range chunks {
		got[c.Bucket] = append(got[c.Bucket], c.Rows...)
		assert.LessOrEqual(t, c.Len(), 2)
		assert.Empty(t, c.Parent)
	}
	want := map[buckets.ID][]int{
		buckets.Days0To30:   {1, 3, 5, 6},
		buckets.Days30To60:  {2, 7},
		buckets.InvalidDate: {0, 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bucket rows mismatch (-want +got):\n%s", diff)
	}

	// Canonical bucket order, then sequence.
	assert.Equal(t, []string{
		"p_0-30_days_chunk001",
		"p_0-30_days_chunk002",
		"p_30-60_days_chunk001",
		"p_invalid_date_chunk001",
	}, names(chunks))
}

func TestSplit_EmptyBucketsProduceNoChunks(t *testing.T) {
	chunks, err := Split(classified(buckets.Days60To90), 10, "")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, buckets.Days60To90, chunks[0].Bucket)

	chunks, err = Split(nil, 10, "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_NamesAreUnique(t *testing.T) {
	var ids []buckets.ID
	for id := range buckets.NumBuckets {
		ids = append(ids, repeat(id, 7)...)
	}
	chunks, err := Split(classified(ids...), 3, "x")
	require.NoError(t, err)

	seen := map[string]bool{}
	total := 0
	for _, c := range chunks {
		assert.False(t, seen[c.Name], "duplicate name %s", c.Name)
		seen[c.Name] = true
		total += c.Len()
	}
	assert.Equal(t, len(ids), total)
	assert.Len(t, chunks, 15)
}

func TestSplit_InvalidSize(t *testing.T) {
	_, err := Split(classified(buckets.Days0To30), 0, "")
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestSubSplit(t *testing.T) {
	chunks, err := Split(classified(repeat(buckets.Days0To30, 7)...), 5, "")
	require.NoError(t, err)
	require.Equal(t, []string{"0-30_days_chunk001", "0-30_days_chunk002"}, names(chunks))

	final, err := SubSplit(chunks, map[string]int{"0-30_days_chunk001": 2})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"0-30_days_chunk001_sub01",
		"0-30_days_chunk001_sub02",
		"0-30_days_chunk001_sub03",
		"0-30_days_chunk002",
	}, names(final))

	var rejoined []int
	for _, c := range final[:3] {
		assert.Equal(t, "0-30_days_chunk001", c.Parent)
		assert.Equal(t, buckets.Days0To30, c.Bucket)
		rejoined = append(rejoined, c.Rows...)
	}
	assert.Equal(t, chunks[0].Rows, rejoined)
	assert.Equal(t, []int{1, 2, 3}, []int{final[0].Seq, final[1].Seq, final[2].Seq})
	assert.Equal(t, chunks[1], final[3])
}

func TestSubSplit_OverrideLargerThanChunk(t *testing.T) {
	chunks, err := Split(classified(repeat(buckets.InvalidDate, 3)...), 10, "")
	require.NoError(t, err)

	final, err := SubSplit(chunks, map[string]int{"invalid_date_chunk001": 100})
	require.NoError(t, err)
	require.Len(t, final, 1)
	assert.Equal(t, "invalid_date_chunk001_sub01", final[0].Name)
	assert.Equal(t, []int{0, 1, 2}, final[0].Rows)
}

func TestSubSplit_NoOverrides(t *testing.T) {
	chunks, err := Split(classified(buckets.Days0To30, buckets.Days30To60), 10, "")
	require.NoError(t, err)

	final, err := SubSplit(chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, chunks, final)
}

func TestSubSplit_Errors(t *testing.T) {
	chunks, err := Split(classified(buckets.Days0To30), 10, "")
	require.NoError(t, err)

	_, err = SubSplit(chunks, map[string]int{"missing_chunk001": 2})
	assert.ErrorIs(t, err, ErrUnknownChunk)

	_, err = SubSplit(chunks, map[string]int{"0-30_days_chunk001": 0})
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestShape(t *testing.T) {
	header := []string{"id", "joindate"}
	row := table.Row{"7", "2024-01-01"}
	parsed := classify.Row{AgeDays: 12, Date: classify.DateOutcome{Parsed: true}}
	unparsed := classify.Row{Bucket: buckets.InvalidDate}

	var plain Shape
	require.NoError(t, plain.Validate(header))
	assert.Equal(t, header, plain.Header(header))
	assert.Equal(t, []string{"7", "2024-01-01"}, plain.Row(row, parsed))

	keep := Shape{KeepAge: true}
	require.NoError(t, keep.Validate(header))
	assert.Equal(t, []string{"id", "joindate", "days_since_date"}, keep.Header(header))
	assert.Equal(t, []string{"7", "2024-01-01", "12"}, keep.Row(row, parsed))
	assert.Equal(t, []string{"7", "2024-01-01", ""}, keep.Row(row, unparsed))
	assert.Equal(t, table.Row{"7", "2024-01-01"}, row, "input row must not be modified")

	custom := Shape{KeepAge: true, AgeColumn: "age"}
	assert.Equal(t, []string{"id", "joindate", "age"}, custom.Header(header))
	assert.ErrorIs(t, custom.Validate([]string{"id", "age"}), ErrColumnConflict)
}
