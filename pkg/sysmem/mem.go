// Package sysmem reports total physical memory for sizing the input budget.
package sysmem

// DefaultMemoryBytes is reported when the platform cannot be queried.
const DefaultMemoryBytes uint64 = 4 * 1024 * 1024 * 1024

// Result is a memory reading. Reliable is false when TotalBytes is the
// DefaultMemoryBytes fallback.
type Result struct {
	TotalBytes uint64
	Reliable   bool
}

// Total queries the platform for physical memory.
func Total() Result {
	n, ok := totalSystemMemory()
	if !ok || n == 0 {
		return Result{TotalBytes: DefaultMemoryBytes}
	}
	return Result{TotalBytes: n, Reliable: true}
}

// Fraction returns num/den of the detected memory and whether the reading
// was reliable.
func Fraction(num, den uint64) (uint64, bool) {
	r := Total()
	return r.TotalBytes / den * num, r.Reliable
}
