package memdiag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRead(t *testing.T) {
	s := Read()
	if s.HeapAlloc == 0 || s.Sys == 0 {
		t.Errorf("Read() = %+v, want non-zero heap and sys", s)
	}
}

func TestTracker_Disabled(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(zerolog.New(&buf).Level(zerolog.InfoLevel))
	if tr.Enabled() {
		t.Fatal("tracker enabled at info level")
	}
	tr.Sample("load")
	if buf.Len() != 0 {
		t.Errorf("disabled tracker logged: %s", buf.String())
	}
	if tr.PeakHeap() != 0 {
		t.Errorf("PeakHeap() = %d, want 0", tr.PeakHeap())
	}
}

func TestTracker_Sample(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(prev)

	var buf bytes.Buffer
	tr := NewTracker(zerolog.New(&buf).Level(zerolog.DebugLevel))
	if !tr.Enabled() {
		t.Fatal("tracker disabled at debug level")
	}
	tr.SetInputSize(1 << 20)
	tr.Sample("load")
	tr.Sample("archive")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %s", len(lines), buf.String())
	}
	for _, want := range []string{`"phase":"load"`, `"peak_heap"`, `"heap_vs_input"`, `"message":"memory stats"`} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("first line missing %s: %s", want, lines[0])
		}
	}
	if tr.PeakHeap() == 0 {
		t.Error("PeakHeap() = 0 after samples")
	}
}
