// Package buckets defines the fixed set of age buckets rows are sorted into.
package buckets

import "strings"

// ID represents an age bucket identifier. IDs are ordered canonically:
// iterating 0..NumBuckets-1 visits buckets in report and archive order.
type ID uint8

// Bucket IDs in canonical order.
const (
	Days0To30 ID = iota
	Days30To60
	Days60To90
	Outside0To90
	InvalidDate
	NumBuckets // Sentinel value for array sizing
)

// Info describes an age bucket.
type Info struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// AllBuckets contains information about every bucket, indexed by ID.
var AllBuckets = []Info{
	{Days0To30, "0-30_days", "0-30 days"},
	{Days30To60, "30-60_days", "30-60 days"},
	{Days60To90, "60-90_days", "60-90 days"},
	{Outside0To90, "outside_0_90", "outside 0-90"},
	{InvalidDate, "invalid_date", "invalid date"},
}

var indexByName = func() map[string]ID {
	m := make(map[string]ID, len(AllBuckets))
	for _, b := range AllBuckets {
		m[b.Name] = b.ID
	}
	return m
}()

// ForAge maps an age in whole days to a bucket. Ranges are half-open except
// 60-90, which includes 90. Negative ages (future dates) fall outside.
func ForAge(age int) ID {
	switch {
	case age >= 0 && age < 30:
		return Days0To30
	case age >= 30 && age < 60:
		return Days30To60
	case age >= 60 && age <= 90:
		return Days60To90
	default:
		return Outside0To90
	}
}

// ByID returns bucket info by ID.
func ByID(id ID) Info {
	if int(id) < len(AllBuckets) {
		return AllBuckets[id]
	}
	return Info{ID: id, Name: "unknown", Label: "unknown"}
}

// ByName looks up a bucket by its file-name form (e.g. "30-60_days").
func ByName(name string) (ID, bool) {
	id, ok := indexByName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// String returns the bucket name.
func (id ID) String() string {
	return ByID(id).Name
}

// Label returns the human-readable label used in summaries.
func (id ID) Label() string {
	return ByID(id).Label
}
