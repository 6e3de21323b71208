package logging

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/agesplit/pkg/humanfmt"
)

// CompletionEvent builds a structured "something finished" log line with
// consistent event, phase and duration fields. Fields are emitted in the
// order they were added.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  []func(*zerolog.Event)
}

// NewCompletionEvent creates a completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{log: log, event: event, phase: phase, elapsed: elapsed}
}

// PhaseComplete starts a "phase_completed" event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// FileWritten starts a "file_written" event.
func FileWritten(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "file_written", phase, elapsed)
}

func (ce *CompletionEvent) add(f func(*zerolog.Event)) *CompletionEvent {
	ce.fields = append(ce.fields, f)
	return ce
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	return ce.add(func(e *zerolog.Event) { e.Str(key, val) })
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	return ce.add(func(e *zerolog.Event) { e.Int(key, val) })
}

// Bytes adds a byte count, plus key_h in pretty mode.
func (ce *CompletionEvent) Bytes(key string, n int64) *CompletionEvent {
	return ce.add(func(e *zerolog.Event) {
		e.Int64(key, n)
		if IsPrettyMode() {
			e.Str(key+"_h", humanfmt.Bytes(n))
		}
	})
}

// Count adds a row count, plus key_h in pretty mode.
func (ce *CompletionEvent) Count(key string, n int) *CompletionEvent {
	return ce.add(func(e *zerolog.Event) {
		e.Int(key, n)
		if IsPrettyMode() {
			e.Str(key+"_h", humanfmt.Count(n))
		}
	})
}

// Throughput adds the byte rate over the event's elapsed time.
func (ce *CompletionEvent) Throughput(n int64) *CompletionEvent {
	if ce.elapsed <= 0 {
		return ce
	}
	return ce.add(func(e *zerolog.Event) {
		e.Float64("throughput_bps", float64(n)/ce.elapsed.Seconds())
		if IsPrettyMode() {
			e.Str("throughput_h", humanfmt.Throughput(n, ce.elapsed))
		}
	})
}

// Log emits the event at info level.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	ce.emit(ce.log.Debug(), msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	if e == nil {
		return
	}
	e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())
	if IsPrettyMode() {
		e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}
	for _, f := range ce.fields {
		f(e)
	}
	e.Msg(msg)
}
