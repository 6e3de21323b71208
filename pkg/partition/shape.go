package partition

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/eunmann/agesplit/pkg/classify"
	"github.com/eunmann/agesplit/pkg/table"
)

// DefaultAgeColumn is the public name of the retained age column.
const DefaultAgeColumn = "days_since_date"

// ErrColumnConflict is returned when the public age column already exists.
var ErrColumnConflict = errors.New("age column conflicts with an input column")

// Shape controls which derived columns reach the output files. Computed age
// and bucket never appear unless KeepAge is set, and then only the age under
// its public name.
type Shape struct {
	KeepAge   bool
	AgeColumn string
}

func (s Shape) ageColumn() string {
	if s.AgeColumn == "" {
		return DefaultAgeColumn
	}
	return s.AgeColumn
}

// Validate checks the shaped header can be produced from the input header.
func (s Shape) Validate(header []string) error {
	if !s.KeepAge {
		return nil
	}
	if slices.Contains(header, s.ageColumn()) {
		return fmt.Errorf("%w: %q", ErrColumnConflict, s.ageColumn())
	}
	return nil
}

// Header returns the output header for the input header.
func (s Shape) Header(in []string) []string {
	out := slices.Clone(in)
	if s.KeepAge {
		out = append(out, s.ageColumn())
	}
	return out
}

// Row returns the output values for one input row. The age cell is empty
// for rows whose date did not parse.
func (s Shape) Row(row table.Row, c classify.Row) []string {
	if !s.KeepAge {
		return row
	}
	out := make([]string, len(row), len(row)+1)
	copy(out, row)
	age := ""
	if c.Date.Parsed {
		age = strconv.Itoa(c.AgeDays)
	}
	return append(out, age)
}
