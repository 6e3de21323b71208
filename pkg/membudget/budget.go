// Package membudget bounds how many input bytes a run may hold in memory.
//
// The whole input is materialised before delimiter detection so the sample
// can be rewound; the budget caps that buffer, both for the raw upload and
// for its decompressed form.
package membudget

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/eunmann/agesplit/pkg/humanfmt"
	"github.com/eunmann/agesplit/pkg/sysmem"
)

// DefaultBudgetBytes is used when system RAM cannot be detected.
const DefaultBudgetBytes uint64 = 1 * humanfmt.GiB

// ErrExceeded is returned when input grows past the budget.
var ErrExceeded = errors.New("input exceeds memory budget")

// BudgetSource indicates how the budget was determined.
type BudgetSource string

const (
	// BudgetSourceAuto25Pct is a quarter of detected RAM.
	BudgetSourceAuto25Pct BudgetSource = "auto-25pct"
	// BudgetSourceDefault is the DefaultBudgetBytes fallback.
	BudgetSourceDefault BudgetSource = "default"
	// BudgetSourceConfig is an explicit max_input setting (flag, env or file).
	BudgetSourceConfig BudgetSource = "config"
)

// Budget is an immutable byte limit.
type Budget struct {
	total  uint64
	source BudgetSource
}

// Config holds configuration for creating a Budget.
type Config struct {
	TotalBytes uint64
	Source     BudgetSource
}

// New creates a Budget.
func New(cfg Config) *Budget {
	return &Budget{total: cfg.TotalBytes, source: cfg.Source}
}

// NewFromSystemRAM sizes the budget at 25% of RAM, or DefaultBudgetBytes
// when RAM cannot be detected.
func NewFromSystemRAM() *Budget {
	quarter, reliable := sysmem.Fraction(1, 4)
	if !reliable {
		return New(Config{TotalBytes: DefaultBudgetBytes, Source: BudgetSourceDefault})
	}
	return New(Config{TotalBytes: quarter, Source: BudgetSourceAuto25Pct})
}

// Resolve turns a max_input setting into a Budget. An empty or "auto"
// setting sizes from system RAM.
func Resolve(setting string) (*Budget, error) {
	setting = strings.TrimSpace(setting)
	if setting == "" || strings.EqualFold(setting, "auto") {
		return NewFromSystemRAM(), nil
	}
	n, err := ParseHumanSize(setting)
	if err != nil {
		return nil, fmt.Errorf("parse max input %q: %w", setting, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("max input must be positive, got %q", setting)
	}
	return New(Config{TotalBytes: n, Source: BudgetSourceConfig}), nil
}

// Total returns the budget in bytes.
func (b *Budget) Total() uint64 {
	return b.total
}

// Source returns how the budget was determined.
func (b *Budget) Source() BudgetSource {
	return b.source
}

// String renders the budget for logs, e.g. "1.00 GiB (default)".
func (b *Budget) String() string {
	return fmt.Sprintf("%s (%s)", humanfmt.Bytes(int64(b.total)), b.source)
}

// ReadAll reads r to EOF, failing with ErrExceeded once more than Total
// bytes have been read.
func (b *Budget) ReadAll(r io.Reader) ([]byte, error) {
	limit := int64(b.total)
	if limit < 0 {
		limit = int64(^uint64(0) >> 1)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %s", ErrExceeded, humanfmt.Bytes(limit))
	}
	return data, nil
}

// ParseHumanSize parses a human-readable size string (e.g., "4GiB", "512MB").
// Supported suffixes: B, KB, KiB, K, MB, MiB, M, GB, GiB, G, TB, TiB, T.
func ParseHumanSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size string")
	}

	numEnd := len(s)
	for i, c := range s {
		if (c < '0' || c > '9') && c != '.' {
			numEnd = i
			break
		}
	}

	var num float64
	if _, err := fmt.Sscanf(s[:numEnd], "%f", &num); err != nil {
		return 0, fmt.Errorf("invalid number: %q", s[:numEnd])
	}

	multiplier, ok := sizeSuffixes[strings.TrimSpace(s[numEnd:])]
	if !ok {
		return 0, fmt.Errorf("unknown size suffix: %s", s[numEnd:])
	}
	return uint64(num * multiplier), nil
}

var sizeSuffixes = map[string]float64{
	"":    1,
	"B":   1,
	"KB":  1e3,
	"K":   humanfmt.KiB,
	"KiB": humanfmt.KiB,
	"MB":  1e6,
	"M":   humanfmt.MiB,
	"MiB": humanfmt.MiB,
	"GB":  1e9,
	"G":   humanfmt.GiB,
	"GiB": humanfmt.GiB,
	"TB":  1e12,
	"T":   humanfmt.TiB,
	"TiB": humanfmt.TiB,
}
