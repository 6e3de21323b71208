// Package memdiag samples Go heap usage between pipeline phases.
//
// A run holds the whole decoded input, the parsed table and the archive in
// memory at once; the samples show how far the heap strays from the input
// budget.
package memdiag

import (
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eunmann/agesplit/pkg/humanfmt"
)

// Stats holds the subset of runtime.MemStats that is logged.
type Stats struct {
	HeapAlloc  uint64
	HeapInuse  uint64
	HeapSys    uint64
	StackInuse uint64
	Sys        uint64
	NumGC      uint32
}

// Read reads current memory statistics.
func Read() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		HeapAlloc:  m.HeapAlloc,
		HeapInuse:  m.HeapInuse,
		HeapSys:    m.HeapSys,
		StackInuse: m.StackInuse,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// Tracker records the peak heap seen across Sample calls. A disabled
// tracker does nothing, so callers need not branch.
type Tracker struct {
	log     zerolog.Logger
	enabled bool
	input   uint64

	mu       sync.Mutex
	peakHeap uint64
}

// NewTracker returns a tracker that logs through log. It is enabled only
// when log emits debug events.
func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		log:     log,
		enabled: log.GetLevel() <= zerolog.DebugLevel && zerolog.GlobalLevel() <= zerolog.DebugLevel,
	}
}

// Enabled reports whether samples are taken.
func (t *Tracker) Enabled() bool {
	return t.enabled
}

// SetInputSize records the decoded input size samples are compared against.
func (t *Tracker) SetInputSize(n int64) {
	if n > 0 {
		t.input = uint64(n)
	}
}

// Sample reads memory stats after phase and logs them at debug level.
func (t *Tracker) Sample(phase string) {
	if !t.enabled {
		return
	}
	stats := Read()

	t.mu.Lock()
	t.peakHeap = max(t.peakHeap, stats.HeapAlloc)
	peak := t.peakHeap
	t.mu.Unlock()

	ev := t.log.Debug().
		Str("phase", phase).
		Str("heap_alloc", humanfmt.Bytes(int64(stats.HeapAlloc))).
		Str("heap_inuse", humanfmt.Bytes(int64(stats.HeapInuse))).
		Str("sys_total", humanfmt.Bytes(int64(stats.Sys))).
		Str("peak_heap", humanfmt.Bytes(int64(peak))).
		Uint32("num_gc", stats.NumGC)
	if t.input > 0 {
		ev = ev.Float64("heap_vs_input", float64(stats.HeapAlloc)/float64(t.input))
	}
	ev.Msg("memory stats")
}

// PeakHeap returns the peak heap allocation seen, zero when disabled.
func (t *Tracker) PeakHeap() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peakHeap
}
