// Package benchutil generates synthetic contact exports for benchmarks and
// tests.
package benchutil

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"
)

// BenchmarkSeed is the default seed for reproducible data.
const BenchmarkSeed = 42

// BenchmarkSizes are the row counts used by quick benchmarks.
var BenchmarkSizes = []int{1000, 10000, 100000}

// ScalingSizes are larger row counts, run with AGESPLIT_LONG_BENCH=1.
var ScalingSizes = []int{250000, 1000000}

// SkipIfNoLongBench skips b unless AGESPLIT_LONG_BENCH is set.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("AGESPLIT_LONG_BENCH") == "" {
		b.Skip("set AGESPLIT_LONG_BENCH=1 to run scaling benchmark")
	}
}

// dateFormats are the layouts the generator writes dates in, weighted by
// repetition.
var dateFormats = []string{
	time.DateOnly,
	time.DateOnly,
	time.DateOnly,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"2 Jan 2006",
}

// GeneratorConfig configures synthetic data generation.
type GeneratorConfig struct {
	Rows      int
	Reference time.Time
	// MaxAge is the oldest date generated, in days before Reference.
	MaxAge int
	// InvalidFraction of rows get an unparseable or empty date.
	InvalidFraction float64
	// FutureFraction of rows are dated after Reference.
	FutureFraction float64
	Delimiter      rune
	Seed           int64
}

// DefaultConfig returns a mix that fills every bucket.
func DefaultConfig(rows int, ref time.Time) GeneratorConfig {
	return GeneratorConfig{
		Rows:            rows,
		Reference:       ref,
		MaxAge:          365,
		InvalidFraction: 0.02,
		FutureFraction:  0.01,
		Delimiter:       ',',
		Seed:            BenchmarkSeed,
	}
}

// Generator produces contact rows with an id, name, email and joindate.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a generator. A zero Seed uses BenchmarkSeed.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = BenchmarkSeed
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 365
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// CSV renders the full export, header first.
func (g *Generator) CSV() []byte {
	d := string(g.cfg.Delimiter)
	var buf bytes.Buffer
	buf.Grow(g.cfg.Rows * 48)
	fmt.Fprintf(&buf, "id%sname%semail%sjoindate\n", d, d, d)
	for i := range g.cfg.Rows {
		fmt.Fprintf(&buf, "%d%scontact %d%scontact%d@example.com%s%s\n", i+1, d, i+1, d, i+1, d, g.date())
	}
	return buf.Bytes()
}

func (g *Generator) date() string {
	switch p := g.rng.Float64(); {
	case p < g.cfg.InvalidFraction/2:
		return ""
	case p < g.cfg.InvalidFraction:
		return "unknown"
	case p < g.cfg.InvalidFraction+g.cfg.FutureFraction:
		return g.cfg.Reference.AddDate(0, 0, 1+g.rng.Intn(30)).Format(time.DateOnly)
	}
	age := g.rng.Intn(g.cfg.MaxAge + 1)
	t := g.cfg.Reference.AddDate(0, 0, -age).Add(time.Duration(g.rng.Intn(86400)) * time.Second)
	layout := dateFormats[g.rng.Intn(len(dateFormats))]
	if layout == time.RFC3339 {
		return t.UTC().Format(layout)
	}
	return t.Format(layout)
}
