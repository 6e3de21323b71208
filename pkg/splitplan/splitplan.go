// Package splitplan reads per-chunk sub-split overrides from a YAML plan
// file and from repeated chunk=size flags.
//
//	overrides:
//	  0-30_days_chunk001: 10
//	  outside_0_90_chunk002: 2
package splitplan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/eunmann/agesplit/pkg/buckets"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPlan is returned for malformed plans and override flags.
var ErrInvalidPlan = errors.New("invalid split plan")

// Plan maps chunk names to their sub-split size.
type Plan struct {
	Overrides map[string]int `yaml:"overrides"`
}

// Load reads a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read split plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a plan. Unknown keys and non-positive sizes are rejected.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every override names a bucket chunk and has a positive
// size.
func (p *Plan) Validate() error {
	for name, size := range p.Overrides {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty chunk name", ErrInvalidPlan)
		}
		if !isChunkName(name) {
			return fmt.Errorf("%w: %q does not name a bucket chunk", ErrInvalidPlan, name)
		}
		if size <= 0 {
			return fmt.Errorf("%w: size for %q must be positive, got %d", ErrInvalidPlan, name, size)
		}
	}
	return nil
}

// ParseFlags parses "chunk=size" values.
func ParseFlags(items []string) (map[string]int, error) {
	out := make(map[string]int, len(items))
	for _, item := range items {
		name, sizeStr, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q is not chunk=size", ErrInvalidPlan, item)
		}
		size, err := strconv.Atoi(strings.TrimSpace(sizeStr))
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("%w: %q needs a positive size", ErrInvalidPlan, item)
		}
		if !isChunkName(name) {
			return nil, fmt.Errorf("%w: %q does not name a bucket chunk", ErrInvalidPlan, name)
		}
		out[name] = size
	}
	return out, nil
}

// isChunkName reports whether name has the form [prefix_]<bucket>_chunkNNN.
func isChunkName(name string) bool {
	i := strings.LastIndex(name, "_chunk")
	if i <= 0 {
		return false
	}
	seq := name[i+len("_chunk"):]
	if seq == "" || strings.Trim(seq, "0123456789") != "" {
		return false
	}
	stem := name[:i]
	for {
		if _, ok := buckets.ByName(stem); ok {
			return true
		}
		_, rest, found := strings.Cut(stem, "_")
		if !found {
			return false
		}
		stem = rest
	}
}

// Merge returns the plan's overrides with flags applied on top. A nil plan
// contributes nothing.
func (p *Plan) Merge(flags map[string]int) map[string]int {
	out := make(map[string]int)
	if p != nil {
		for k, v := range p.Overrides {
			out[k] = v
		}
	}
	for k, v := range flags {
		out[k] = v
	}
	return out
}
