// Package partition slices classified rows into named, order-preserving chunks.
package partition

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/eunmann/agesplit/pkg/buckets"
	"github.com/eunmann/agesplit/pkg/classify"
)

var (
	// ErrInvalidChunkSize is returned for a chunk or override size below 1.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	// ErrUnknownChunk is returned when an override names no produced chunk.
	ErrUnknownChunk = errors.New("unknown chunk")
)

// Chunk is a contiguous run of one bucket's rows. Rows holds indices into
// the loaded table. Parent is set only on sub-chunks.
type Chunk struct {
	Name   string
	Bucket buckets.ID
	Seq    int
	Parent string
	Rows   []int
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int { return len(c.Rows) }

// Name builds a chunk name from the non-empty parts of prefix, bucket name
// and a three-digit sequence number.
func Name(prefix string, b buckets.ID, seq int) string {
	parts := make([]string, 0, 3)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, b.String(), fmt.Sprintf("chunk%03d", seq))
	return strings.Join(parts, "_")
}

// SubName builds the name of a sub-chunk of parent.
func SubName(parent string, seq int) string {
	return fmt.Sprintf("%s_sub%02d", parent, seq)
}

// Split groups rows by bucket in canonical order and slices each bucket into
// chunks of at most size rows. Empty buckets produce no chunks.
func Split(rows []classify.Row, size int, prefix string) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}

	var byBucket [buckets.NumBuckets][]int
	for _, r := range rows {
		byBucket[r.Bucket] = append(byBucket[r.Bucket], r.Index)
	}

	var chunks []Chunk
	for id := range buckets.NumBuckets {
		for seq, part := range slice(byBucket[id], size) {
			chunks = append(chunks, Chunk{
				Name:   Name(prefix, id, seq+1),
				Bucket: id,
				Seq:    seq + 1,
				Rows:   part,
			})
		}
	}
	return chunks, nil
}

// SubSplit re-slices every chunk named in overrides with its override size.
// Unflagged chunks pass through unchanged. An override at least as large as
// the chunk still yields a single _sub01 entry.
func SubSplit(chunks []Chunk, overrides map[string]int) ([]Chunk, error) {
	if len(overrides) == 0 {
		return chunks, nil
	}

	known := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		known[c.Name] = true
	}
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownChunk, name)
		}
		if overrides[name] <= 0 {
			return nil, fmt.Errorf("%w: override for %q is %d", ErrInvalidChunkSize, name, overrides[name])
		}
	}

	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		size, ok := overrides[c.Name]
		if !ok {
			out = append(out, c)
			continue
		}
		for seq, part := range slice(c.Rows, size) {
			out = append(out, Chunk{
				Name:   SubName(c.Name, seq+1),
				Bucket: c.Bucket,
				Seq:    seq + 1,
				Parent: c.Name,
				Rows:   part,
			})
		}
	}
	return out, nil
}

// slice cuts idx into contiguous pieces of at most size elements.
func slice(idx []int, size int) [][]int {
	var parts [][]int
	for start := 0; start < len(idx); start += size {
		end := min(start+size, len(idx))
		parts = append(parts, idx[start:end:end])
	}
	return parts
}
