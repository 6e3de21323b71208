package classify

import (
	"errors"
	"testing"
	"time"

	"github.com/eunmann/agesplit/pkg/buckets"
	"github.com/eunmann/agesplit/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = time.Date(2024, time.March, 10, 15, 30, 0, 0, time.UTC)

func daysAgo(n int) string {
	return ref.AddDate(0, 0, -n).Format(time.DateOnly)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-01", "2024-03-01"},
		{" 2024-03-01 ", "2024-03-01"},
		{"2024-03-01T23:59:59", "2024-03-01"},
		{"2024-03-01 08:15", "2024-03-01"},
		{"2024-03-01T08:15:00.123Z", "2024-03-01"},
		{"2024/03/01", "2024-03-01"},
		{"20240301", "2024-03-01"},
		{"03/01/2024", "2024-03-01"},
		{"3/1/2024 10:00", "2024-03-01"},
		{"25/12/2023", "2023-12-25"},
		{"25.12.2023", "2023-12-25"},
		{"Mar 1, 2024", "2024-03-01"},
		{"March 1, 2024", "2024-03-01"},
		{"1 Mar 2024", "2024-03-01"},
		{"01-Mar-2024", "2024-03-01"},
		{"Fri, 01 Mar 2024 10:00:00 +0000", "2024-03-01"},
		{"3/10/2024 10:00 AM", "2024-03-10"},
		{"3/10/2024 11:45:30 PM", "2024-03-10"},
		{"2024-03-10 10:00:00 UTC", "2024-03-10"},
		{"2024-03-10 9:05 PM", "2024-03-10"},
		{"2024.03.10", "2024-03-10"},
		{"2024.3.9", "2024-03-09"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseDate(tt.in, time.UTC)
			require.True(t, got.Parsed, "expected %q to parse", tt.in)
			assert.Equal(t, tt.want, got.Time.Format(time.DateOnly))
		})
	}
}

func TestParseDate_TwelveHourClock(t *testing.T) {
	got := ParseDate("3/10/2024 11:45:30 PM", time.UTC)
	require.True(t, got.Parsed)
	assert.Equal(t, 23, got.Time.Hour())
	assert.Equal(t, 45, got.Time.Minute())
}

func TestParseDate_Unparsed(t *testing.T) {
	for _, in := range []string{"", "   ", "not a date", "2024-13-45", "yesterday", "31/31/2024"} {
		got := ParseDate(in, time.UTC)
		assert.False(t, got.Parsed, "expected %q to be unparsed", in)
		assert.True(t, got.Time.IsZero())
	}
}

func TestParseDate_OffsetConvertedToLocation(t *testing.T) {
	// 23:30 at UTC-5 is already the next day in UTC.
	got := ParseDate("2024-03-01T23:30:00-05:00", time.UTC)
	require.True(t, got.Parsed)
	assert.Equal(t, "2024-03-02", got.Time.Format(time.DateOnly))
	assert.Equal(t, time.UTC, got.Time.Location())
}

func TestParseDate_NaiveUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	got := ParseDate("2024-03-01 01:00", loc)
	require.True(t, got.Parsed)
	assert.Equal(t, loc, got.Time.Location())
	assert.Equal(t, 1, got.Time.Hour())
}

func TestAgeDays(t *testing.T) {
	assert.Equal(t, 0, AgeDays(ref, ref))
	assert.Equal(t, 0, AgeDays(ref, time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 1, AgeDays(ref, time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, -1, AgeDays(ref, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 366, AgeDays(ref, time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestAgeDays_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// DST started 2024-03-10 in New York; the day is only 23 hours long.
	r := time.Date(2024, 3, 11, 0, 30, 0, 0, loc)
	d := time.Date(2024, 3, 10, 0, 30, 0, 0, loc)
	assert.Equal(t, 1, AgeDays(r, d))
}

func TestClassify_Boundaries(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"id", "joindate"},
		Rows: []table.Row{
			{"a", daysAgo(0)},
			{"b", daysAgo(29)},
			{"c", daysAgo(30)},
			{"d", daysAgo(59)},
			{"e", daysAgo(60)},
			{"f", daysAgo(90)},
			{"g", daysAgo(91)},
			{"h", daysAgo(-1)},
			{"i", "garbage"},
			{"j", ""},
		},
	}

	rows, err := Classify(tbl, "joindate", ref)
	require.NoError(t, err)
	require.Len(t, rows, tbl.Len())

	want := []buckets.ID{
		buckets.Days0To30,
		buckets.Days0To30,
		buckets.Days30To60,
		buckets.Days30To60,
		buckets.Days60To90,
		buckets.Days60To90,
		buckets.Outside0To90,
		buckets.Outside0To90,
		buckets.InvalidDate,
		buckets.InvalidDate,
	}
	for i, r := range rows {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, want[i], r.Bucket, "row %d (%s)", i, tbl.Rows[i][1])
	}
	assert.Equal(t, 91, rows[6].AgeDays)
	assert.Equal(t, -1, rows[7].AgeDays)
	assert.False(t, rows[8].Date.Parsed)
}

func TestClassify_ExhaustivePartition(t *testing.T) {
	values := []string{daysAgo(5), "x", daysAgo(45), daysAgo(75), daysAgo(400), daysAgo(-20), "", daysAgo(10)}
	tbl := &table.Table{Header: []string{"joindate"}}
	for _, v := range values {
		tbl.Rows = append(tbl.Rows, table.Row{v})
	}

	rows, err := Classify(tbl, "joindate", ref)
	require.NoError(t, err)

	counts := Counts(rows)
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, len(values), total)
	assert.Equal(t, [buckets.NumBuckets]int{2, 1, 1, 2, 2}, counts)
}

func TestClassify_Deterministic(t *testing.T) {
	tbl := &table.Table{
		Header: []string{"joindate"},
		Rows:   []table.Row{{daysAgo(3)}, {daysAgo(70)}, {"?"}},
	}
	first, err := Classify(tbl, "joindate", ref)
	require.NoError(t, err)

	reversed := &table.Table{Header: tbl.Header, Rows: []table.Row{tbl.Rows[2], tbl.Rows[1], tbl.Rows[0]}}
	second, err := Classify(reversed, "joindate", ref)
	require.NoError(t, err)

	for i := range first {
		j := len(first) - 1 - i
		assert.Equal(t, first[i].Bucket, second[j].Bucket)
		assert.Equal(t, first[i].AgeDays, second[j].AgeDays)
	}
}

func TestClassify_Errors(t *testing.T) {
	tbl := &table.Table{Header: []string{"id", "signup"}}

	_, err := Classify(tbl, "joindate", ref)
	assert.True(t, errors.Is(err, table.ErrSchema))

	_, err = Classify(tbl, "signup", time.Time{})
	assert.ErrorIs(t, err, ErrNoReference)
}
