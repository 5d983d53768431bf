// Package util holds small formatting and id-generation helpers shared
// across the engine.
package util

import (
	"time"

	"github.com/google/uuid"
)

// TimeFormat is the layout used for all persisted timestamps.
const TimeFormat = time.RFC3339

// FormatTime renders t in TimeFormat, or "-" for the zero value.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(TimeFormat)
}

// ParseTime parses a string produced by FormatTime. "-" parses to the
// zero value.
func ParseTime(s string) (time.Time, error) {
	if s == "-" {
		return time.Time{}, nil
	}
	return time.Parse(TimeFormat, s)
}

// NewID returns a new random identifier suitable for workflow/run/task ids.
func NewID() string {
	return uuid.New().String()
}

// TruncString truncates s to at most n runes.
func TruncString(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
