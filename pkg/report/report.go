// Package report derives the run summary and per-file listing from the
// classifier counts and the final chunk list.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eunmann/agesplit/pkg/buckets"
	"github.com/eunmann/agesplit/pkg/partition"
)

// StatusReady marks a file that was written to the archive.
const StatusReady = "Ready"

// ErrUnreconciled is returned when bucket or file row counts do not sum to
// the total row count.
var ErrUnreconciled = errors.New("row counts do not reconcile")

// BucketStat is the row and primary chunk count of one bucket.
type BucketStat struct {
	Bucket buckets.ID
	Rows   int
	Chunks int
}

// FileInfo is one line of the per-file listing.
type FileInfo struct {
	File   string `json:"file"`
	Rows   int    `json:"rows"`
	Bucket string `json:"bucket"`
	Status string `json:"status"`
}

// Summary is the immutable result of a run.
type Summary struct {
	Reference time.Time
	TotalRows int
	Buckets   [buckets.NumBuckets]BucketStat
	Files     []FileInfo
}

// New builds a Summary. chunks is the primary chunk list; final is the list
// after sub-splitting and names the files in the archive.
func New(ref time.Time, total int, counts [buckets.NumBuckets]int, chunks, final []partition.Chunk) (*Summary, error) {
	s := &Summary{Reference: ref, TotalRows: total}

	sum := 0
	for id := range buckets.NumBuckets {
		s.Buckets[id] = BucketStat{Bucket: id, Rows: counts[id]}
		sum += counts[id]
	}
	if sum != total {
		return nil, fmt.Errorf("%w: buckets hold %d rows, input has %d", ErrUnreconciled, sum, total)
	}

	for _, c := range chunks {
		if c.Parent == "" {
			s.Buckets[c.Bucket].Chunks++
		}
	}

	fileRows := 0
	s.Files = make([]FileInfo, len(final))
	for i, c := range final {
		s.Files[i] = FileInfo{
			File:   c.Name + ".csv",
			Rows:   c.Len(),
			Bucket: c.Bucket.String(),
			Status: StatusReady,
		}
		fileRows += c.Len()
	}
	if fileRows != total {
		return nil, fmt.Errorf("%w: files hold %d rows, input has %d", ErrUnreconciled, fileRows, total)
	}

	return s, nil
}

// Text renders the fixed-format summary report.
func (s *Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today: %s\n", s.Reference.Format(time.DateOnly))
	fmt.Fprintf(&b, "Total rows: %d\n", s.TotalRows)
	for _, st := range s.Buckets {
		fmt.Fprintf(&b, "%s: %d rows, %d chunk(s)\n", st.Bucket.Label(), st.Rows, st.Chunks)
	}
	return b.String()
}

// WriteListing writes the per-file listing as an aligned text table.
func (s *Summary) WriteListing(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "File\tRows\tBucket\tStatus")
	for _, f := range s.Files {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.File, f.Rows, f.Bucket, f.Status)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}
	return nil
}

type bucketJSON struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Rows   int    `json:"rows"`
	Chunks int    `json:"chunks"`
}

type summaryJSON struct {
	Reference string       `json:"reference"`
	TotalRows int          `json:"total_rows"`
	Buckets   []bucketJSON `json:"buckets"`
	Files     []FileInfo   `json:"files"`
}

// MarshalJSON encodes the summary with bucket names and labels spelled out.
func (s *Summary) MarshalJSON() ([]byte, error) {
	out := summaryJSON{
		Reference: s.Reference.Format(time.DateOnly),
		TotalRows: s.TotalRows,
		Buckets:   make([]bucketJSON, 0, len(s.Buckets)),
		Files:     s.Files,
	}
	if out.Files == nil {
		out.Files = []FileInfo{}
	}
	for _, st := range s.Buckets {
		info := buckets.ByID(st.Bucket)
		out.Buckets = append(out.Buckets, bucketJSON{
			Name:   info.Name,
			Label:  info.Label,
			Rows:   st.Rows,
			Chunks: st.Chunks,
		})
	}
	return json.Marshal(out)
}
