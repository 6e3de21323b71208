// Package pipeline runs one input through detection, loading, classification,
// partitioning and packaging.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/agesplit/internal/logctx"
	"github.com/eunmann/agesplit/pkg/archive"
	"github.com/eunmann/agesplit/pkg/buckets"
	"github.com/eunmann/agesplit/pkg/classify"
	"github.com/eunmann/agesplit/pkg/delimiter"
	"github.com/eunmann/agesplit/pkg/logging"
	"github.com/eunmann/agesplit/pkg/memdiag"
	"github.com/eunmann/agesplit/pkg/partition"
	"github.com/eunmann/agesplit/pkg/report"
	"github.com/eunmann/agesplit/pkg/source"
	"github.com/eunmann/agesplit/pkg/table"
)

// ErrConfig wraps every configuration error returned by Run.
var ErrConfig = errors.New("invalid configuration")

// Config is everything a run needs besides the input itself.
type Config struct {
	// DateColumn names the header column holding each row's date.
	DateColumn string
	// ChunkSize is the maximum number of rows per primary chunk.
	ChunkSize int
	// Overrides re-splits the named chunks with their own sizes.
	Overrides map[string]int
	// Delimiter is the input separator; zero means detect.
	Delimiter rune
	// Detector is used when Delimiter is zero. Nil means the default.
	Detector *delimiter.Detector
	// OutputDelimiter separates fields in the archive. Zero reuses the
	// input delimiter, or comma for parquet input.
	OutputDelimiter rune
	// Prefix is prepended to chunk names and names the archive.
	Prefix string
	Shape  partition.Shape
	// Reference is "today" for age computation. It must be set.
	Reference time.Time
	// CompressionLevel is the flate level; zero means default.
	CompressionLevel int
}

// Validate reports the first invalid field, wrapped in ErrConfig.
func (c Config) Validate() error {
	switch {
	case c.DateColumn == "":
		return fmt.Errorf("%w: date column is required", ErrConfig)
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfig, c.ChunkSize)
	case c.Reference.IsZero():
		return fmt.Errorf("%w: reference date is required", ErrConfig)
	case strings.ContainsAny(c.Prefix, `/\`) || strings.Contains(c.Prefix, ".."):
		return fmt.Errorf("%w: prefix %q must be a plain file name", ErrConfig, c.Prefix)
	}
	for name, size := range c.Overrides {
		if size <= 0 {
			return fmt.Errorf("%w: override for %q must be positive, got %d", ErrConfig, name, size)
		}
	}
	return nil
}

// Result is the output of a successful run.
type Result struct {
	Archive     []byte
	ArchiveName string
	Summary     *report.Summary
	// Delimiter is the input delimiter used, detected or configured.
	Delimiter rune
	// Chunks is the final file list in archive order.
	Chunks []partition.Chunk
}

// Run processes in according to cfg. Any error aborts the whole run and no
// partial Result is returned.
func Run(ctx context.Context, in *source.Input, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, _ = logctx.WithRunID(ctx)
	ctx = logctx.WithStr(ctx, "input", in.Name)
	log := logctx.FromContext(ctx)
	start := time.Now()

	mem := memdiag.NewTracker(log)
	mem.SetInputSize(in.Size())
	r := &runner{cfg: cfg, in: in, log: log}
	steps := []struct {
		phase string
		fn    func() error
	}{
		{"detect", r.detectDelimiter},
		{"load", r.loadTable},
		{"classify", r.classifyRows},
		{"partition", r.partitionRows},
		{"archive", r.buildArchive},
		{"report", r.buildReport},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step.fn(); err != nil {
			log.Error().Err(err).Str("phase", step.phase).Msg("run failed")
			return nil, err
		}
		mem.Sample(step.phase)
	}

	ev := logging.PhaseComplete(log, "run", time.Since(start)).
		Count("total_rows", r.tbl.Len()).
		Int("files", len(r.final)).
		Str("archive", r.result.ArchiveName)
	if mem.Enabled() {
		ev.Bytes("peak_heap", int64(mem.PeakHeap()))
	}
	ev.Log("split complete")

	return r.result, nil
}

type runner struct {
	cfg Config
	in  *source.Input
	log zerolog.Logger

	delim      rune
	tbl        *table.Table
	classified []classify.Row
	chunks     []partition.Chunk
	final      []partition.Chunk
	result     *Result
}

func (r *runner) detectDelimiter() error {
	if r.in.Format == source.FormatParquet || r.cfg.Delimiter != 0 {
		r.delim = r.cfg.Delimiter
		return nil
	}
	start := time.Now()
	det := r.cfg.Detector
	if det == nil {
		det = delimiter.DefaultDetector()
	}
	d, err := det.DetectFrom(r.in.Reader())
	if err != nil {
		return err
	}
	r.delim = d
	logging.PhaseComplete(r.log, "detect", time.Since(start)).
		Str("delimiter", delimiter.Name(d)).
		LogDebug("delimiter detected")
	return nil
}

func (r *runner) loadTable() error {
	start := time.Now()
	var err error
	if r.in.Format == source.FormatParquet {
		r.tbl, err = table.LoadParquet(r.in.Reader(), r.in.Size(), r.cfg.DateColumn)
	} else {
		r.tbl, err = table.LoadCSV(r.in.Reader(), table.CSVOptions{
			Delimiter:  r.delim,
			DateColumn: r.cfg.DateColumn,
		})
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", r.in.Name, err)
	}
	if err := r.cfg.Shape.Validate(r.tbl.Header); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	logging.PhaseComplete(r.log, "load", time.Since(start)).
		Count("rows", r.tbl.Len()).
		Int("columns", len(r.tbl.Header)).
		Bytes("input_bytes", r.in.Size()).
		Throughput(r.in.Size()).
		Log("input loaded")
	return nil
}

func (r *runner) classifyRows() error {
	start := time.Now()
	rows, err := classify.Classify(r.tbl, r.cfg.DateColumn, r.cfg.Reference)
	if err != nil {
		return err
	}
	r.classified = rows

	counts := classify.Counts(rows)
	ev := logging.PhaseComplete(r.log, "classify", time.Since(start)).
		Str("reference", r.cfg.Reference.Format(time.DateOnly))
	for id, n := range counts {
		ev.Int(buckets.ID(id).String(), n)
	}
	ev.Log("rows classified")
	return nil
}

func (r *runner) partitionRows() error {
	start := time.Now()
	chunks, err := partition.Split(r.classified, r.cfg.ChunkSize, r.cfg.Prefix)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	final, err := partition.SubSplit(chunks, r.cfg.Overrides)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	r.chunks, r.final = chunks, final
	logging.PhaseComplete(r.log, "partition", time.Since(start)).
		Int("chunks", len(chunks)).
		Int("files", len(final)).
		Log("rows partitioned")
	return nil
}

func (r *runner) buildArchive() error {
	start := time.Now()
	out := r.cfg.OutputDelimiter
	if out == 0 {
		out = r.delim
	}

	header := r.cfg.Shape.Header(r.tbl.Header)
	entries := make([]archive.Entry, len(r.final))
	for i, c := range r.final {
		rows := make([][]string, len(c.Rows))
		for j, idx := range c.Rows {
			rows[j] = r.cfg.Shape.Row(r.tbl.Rows[idx], r.classified[idx])
		}
		entries[i] = archive.Entry{Name: c.Name, Header: header, Rows: rows}
	}

	data, err := archive.Build(entries, archive.Options{
		Delimiter: out,
		Modified:  r.cfg.Reference,
		Level:     r.cfg.CompressionLevel,
	})
	if err != nil {
		return fmt.Errorf("build archive: %w", err)
	}

	r.result = &Result{
		Archive:     data,
		ArchiveName: archive.FileName(r.cfg.Prefix, r.cfg.Reference),
		Delimiter:   r.delim,
		Chunks:      r.final,
	}
	logging.PhaseComplete(r.log, "archive", time.Since(start)).
		Int("entries", len(entries)).
		Bytes("archive_bytes", int64(len(data))).
		Log("archive built")
	return nil
}

func (r *runner) buildReport() error {
	s, err := report.New(r.cfg.Reference, r.tbl.Len(), classify.Counts(r.classified), r.chunks, r.final)
	if err != nil {
		return err
	}
	r.result.Summary = s
	return nil
}
