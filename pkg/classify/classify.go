// Package classify assigns every loaded row to exactly one age bucket.
package classify

import (
	"errors"
	"time"

	"github.com/eunmann/agesplit/pkg/buckets"
	"github.com/eunmann/agesplit/pkg/table"
)

// ErrNoReference is returned when no reference instant was supplied.
var ErrNoReference = errors.New("reference instant is required")

// Row is the classification of one input row. AgeDays is meaningful only
// when Date.Parsed is true.
type Row struct {
	Index   int
	Date    DateOutcome
	AgeDays int
	Bucket  buckets.ID
}

// Classify parses the date column of every row and buckets it by age
// relative to ref. Row i's outcome depends only on row i and ref.
func Classify(t *table.Table, dateColumn string, ref time.Time) ([]Row, error) {
	if ref.IsZero() {
		return nil, ErrNoReference
	}
	col, err := t.Require(dateColumn)
	if err != nil {
		return nil, err
	}

	loc := ref.Location()
	out := make([]Row, t.Len())
	for i := range t.Rows {
		out[i] = classifyValue(i, t.Value(i, col), ref, loc)
	}
	return out, nil
}

func classifyValue(i int, value string, ref time.Time, loc *time.Location) Row {
	d := ParseDate(value, loc)
	if !d.Parsed {
		return Row{Index: i, Date: d, Bucket: buckets.InvalidDate}
	}
	age := AgeDays(ref, d.Time)
	return Row{Index: i, Date: d, AgeDays: age, Bucket: buckets.ForAge(age)}
}

// Counts tallies rows per bucket.
func Counts(rows []Row) [buckets.NumBuckets]int {
	var counts [buckets.NumBuckets]int
	for _, r := range rows {
		counts[r.Bucket]++
	}
	return counts
}
