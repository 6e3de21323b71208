// Package humanfmt renders sizes, durations and row counts for log fields.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

var byteUnits = []struct {
	size float64
	name string
}{
	{TiB, "TiB"},
	{GiB, "GiB"},
	{MiB, "MiB"},
	{KiB, "KiB"},
}

// scaled picks the largest unit not exceeding v.
func scaled(v float64, suffix string) string {
	for _, u := range byteUnits {
		if v >= u.size {
			return fmt.Sprintf("%.2f %s%s", v/u.size, u.name, suffix)
		}
	}
	return ""
}

// Bytes formats a byte count like "1.23 MiB".
func Bytes(b int64) string {
	if s := scaled(float64(b), ""); s != "" {
		return s
	}
	return fmt.Sprintf("%d B", b)
}

// Throughput formats bytes processed over d like "12.50 MiB/s".
func Throughput(b int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	rate := float64(b) / d.Seconds()
	if s := scaled(rate, "/s"); s != "" {
		return s
	}
	return fmt.Sprintf("%.0f B/s", rate)
}

// Duration formats d compactly: "1.23s", "45.6ms", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return pair(int64(d/time.Hour), "h", int64((d%time.Hour)/time.Minute), "m")
	case d >= time.Minute:
		return pair(int64(d/time.Minute), "m", int64((d%time.Minute)/time.Second), "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

// pair renders "2h15m", dropping a zero minor part.
func pair(major int64, majorUnit string, minor int64, minorUnit string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorUnit)
	}
	return fmt.Sprintf("%d%s%d%s", major, majorUnit, minor, minorUnit)
}

// Count abbreviates a row count: "789", "4.50K", "1.23M".
func Count(n int) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.2fK", float64(n)/1e3)
	default:
		return strconv.Itoa(n)
	}
}
