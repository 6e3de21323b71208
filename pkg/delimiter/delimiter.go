// Package delimiter infers the field separator of delimited text from a
// bounded sample of its leading bytes.
package delimiter

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrDetectionFailure is matched by every *DetectionError.
var ErrDetectionFailure = errors.New("delimiter detection failed")

// Default detector settings.
const (
	DefaultSampleBytes    = 64 * 1024
	DefaultMaxLines       = 50
	DefaultMinConsistency = 0.9
)

// DefaultCandidates is the candidate set used when none is configured.
var DefaultCandidates = []rune{',', ';', '\t', '|'}

// DetectionError reports why no single delimiter could be chosen.
type DetectionError struct {
	Reason     string
	Candidates []rune
	// Sample holds the leading part of the inspected text.
	Sample string
}

func (e *DetectionError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = Name(c)
	}
	return fmt.Sprintf("detect delimiter: %s (candidates: %s); set the delimiter explicitly",
		e.Reason, strings.Join(names, ", "))
}

// Is makes errors.Is(err, ErrDetectionFailure) true.
func (e *DetectionError) Is(target error) bool {
	return target == ErrDetectionFailure
}

// Detector scores candidate delimiters by how consistently they split the
// sampled records.
type Detector struct {
	// Candidates are the delimiters considered, in no particular priority.
	Candidates []rune
	// SampleBytes bounds how much input DetectFrom reads.
	SampleBytes int
	// MaxLines bounds how many records of the sample are scored.
	MaxLines int
	// MinConsistency is the minimum fraction of records that must share the
	// candidate's modal field-separator count.
	MinConsistency float64
}

// DefaultDetector returns a detector with the default candidate set.
func DefaultDetector() *Detector {
	return &Detector{
		Candidates:     append([]rune(nil), DefaultCandidates...),
		SampleBytes:    DefaultSampleBytes,
		MaxLines:       DefaultMaxLines,
		MinConsistency: DefaultMinConsistency,
	}
}

// score is the per-candidate result of scoring a sample.
type score struct {
	delim       rune
	mode        int
	consistency float64
}

// Detect returns the delimiter of a complete sample.
func (d *Detector) Detect(sample []byte) (rune, error) {
	return d.detect(sample, false)
}

// DetectFrom reads up to SampleBytes from rs, restores the original read
// position, and detects the delimiter of what was read. The position is
// restored on failure too, so a caller can retry with an explicit delimiter.
func (d *Detector) DetectFrom(rs io.ReadSeeker) (rune, error) {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("get sample position: %w", err)
	}

	size := d.sampleBytes()
	buf := make([]byte, size)
	n, readErr := io.ReadFull(rs, buf)

	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind after sampling: %w", err)
	}
	if readErr != nil && !errors.Is(readErr, io.EOF) && !errors.Is(readErr, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("read sample: %w", readErr)
	}

	return d.detect(buf[:n], n == size)
}

func (d *Detector) detect(sample []byte, truncated bool) (rune, error) {
	candidates := d.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}

	records := splitRecords(sample, truncated)
	if maxLines := d.maxLines(); len(records) > maxLines {
		records = records[:maxLines]
	}
	if len(records) == 0 {
		return 0, d.fail("sample contains no records", candidates, sample)
	}

	minConsistency := d.MinConsistency
	if minConsistency <= 0 {
		minConsistency = DefaultMinConsistency
	}

	var plausible []score
	for _, c := range candidates {
		s := scoreCandidate(c, records)
		if s.mode >= 1 && s.consistency >= minConsistency {
			plausible = append(plausible, s)
		}
	}

	switch len(plausible) {
	case 0:
		return 0, d.fail("no candidate splits the sampled lines consistently", candidates, sample)
	case 1:
		return plausible[0].delim, nil
	}

	best := plausible[0]
	tied := []rune{best.delim}
	for _, s := range plausible[1:] {
		switch {
		case s.consistency > best.consistency:
			best = s
			tied = []rune{s.delim}
		case s.consistency == best.consistency:
			tied = append(tied, s.delim)
		}
	}
	if len(tied) > 1 {
		names := make([]string, len(tied))
		for i, c := range tied {
			names[i] = Name(c)
		}
		return 0, d.fail("ambiguous between "+strings.Join(names, " and "), candidates, sample)
	}
	return best.delim, nil
}

func (d *Detector) fail(reason string, candidates []rune, sample []byte) error {
	const maxSample = 256
	s := string(sample)
	if len(s) > maxSample {
		s = s[:maxSample]
		for !utf8.ValidString(s) && len(s) > 0 {
			s = s[:len(s)-1]
		}
	}
	return &DetectionError{
		Reason:     reason,
		Candidates: append([]rune(nil), candidates...),
		Sample:     s,
	}
}

func (d *Detector) sampleBytes() int {
	if d.SampleBytes > 0 {
		return d.SampleBytes
	}
	return DefaultSampleBytes
}

func (d *Detector) maxLines() int {
	if d.MaxLines > 0 {
		return d.MaxLines
	}
	return DefaultMaxLines
}

// scoreCandidate computes the modal per-record count of delim and the share
// of records that match it. Ties between modes resolve to the larger count.
func scoreCandidate(delim rune, records []string) score {
	freq := make(map[int]int)
	for _, rec := range records {
		freq[countUnquoted(rec, delim)]++
	}

	mode, modeFreq := 0, 0
	for count, f := range freq {
		if f > modeFreq || (f == modeFreq && count > mode) {
			mode, modeFreq = count, f
		}
	}

	return score{
		delim:       delim,
		mode:        mode,
		consistency: float64(modeFreq) / float64(len(records)),
	}
}

// splitRecords splits a sample into records on newlines outside double
// quotes. Blank records are dropped. When truncated is set and the sample
// does not end on a newline, the final record is incomplete and dropped.
func splitRecords(sample []byte, truncated bool) []string {
	var (
		records  []string
		inQuotes bool
		start    int
	)
	for i, b := range sample {
		switch b {
		case '"':
			inQuotes = !inQuotes
		case '\n':
			if inQuotes {
				continue
			}
			records = appendRecord(records, sample[start:i])
			start = i + 1
		}
	}
	if start < len(sample) && !truncated {
		records = appendRecord(records, sample[start:])
	}
	return records
}

func appendRecord(records []string, rec []byte) []string {
	s := strings.TrimRight(string(rec), "\r")
	if strings.TrimSpace(s) == "" {
		return records
	}
	return append(records, s)
}

func countUnquoted(rec string, delim rune) int {
	n := 0
	inQuotes := false
	for _, r := range rec {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			n++
		}
	}
	return n
}

// Name returns a readable name for a delimiter, for logs and messages.
func Name(r rune) string {
	switch r {
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	case '|':
		return "pipe"
	case ' ':
		return "space"
	default:
		return strconv.QuoteRune(r)
	}
}

// Parse interprets a configured delimiter value. "auto" (or empty) requests
// detection and returns auto=true.
func Parse(s string) (r rune, auto bool, err error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0, true, nil
	case "comma":
		return ',', false, nil
	case "semicolon":
		return ';', false, nil
	case "tab", `\t`:
		return '\t', false, nil
	case "pipe":
		return '|', false, nil
	case "space":
		return ' ', false, nil
	}

	if utf8.RuneCountInString(s) != 1 {
		return 0, false, fmt.Errorf("invalid delimiter %q: want a single character or auto", s)
	}
	r, _ = utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, false, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, false, nil
}

// ParseCandidates parses configured candidates such as []string{",", "tab"}.
func ParseCandidates(list []string) ([]rune, error) {
	out := make([]rune, 0, len(list))
	for _, item := range list {
		r, auto, err := Parse(item)
		if err != nil {
			return nil, err
		}
		if auto {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, errors.New("no delimiter candidates")
	}
	return out, nil
}
