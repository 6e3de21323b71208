package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestInit_DoesNotPanic(t *testing.T) {
	for _, debug := range []bool{false, true} {
		for _, human := range []bool{false, true} {
			Init(debug, human)
			L().Info().Msg("init smoke test")
			L().Debug().Msg("init smoke test")
		}
	}
	Init(false, false)
}

func TestNew_Levels(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(prev)

	var buf bytes.Buffer
	l := New(&buf, false, false)
	l.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug line written at info level: %s", buf.String())
	}

	l = New(&buf, true, false)
	l.Debug().Msg("shown")
	if !strings.Contains(buf.String(), `"message":"shown"`) {
		t.Errorf("expected debug line, got: %s", buf.String())
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).With().Str("custom", "field").Logger())
	defer Init(false, false)

	L().Info().Msg("test")

	if !bytes.Contains(buf.Bytes(), []byte(`"custom":"field"`)) {
		t.Errorf("expected custom field in output, got: %s", buf.String())
	}
}

func TestPhaseComplete(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	PhaseComplete(log, "archive", 2*time.Second).
		Count("entries", 3).
		Bytes("archive_bytes", 4096).
		Throughput(4096).
		Str("archive", "agesplit_20240310.zip").
		Log("archive built")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	want := map[string]any{
		"event":          "phase_completed",
		"phase":          "archive",
		"duration_ms":    float64(2000),
		"entries":        float64(3),
		"archive_bytes":  float64(4096),
		"throughput_bps": float64(2048),
		"archive":        "agesplit_20240310.zip",
		"message":        "archive built",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %s = %v, want %v", k, got[k], v)
		}
	}
	if _, ok := got["entries_h"]; ok {
		t.Error("human companion fields should only appear in pretty mode")
	}
}
