package utils

import (
	"time"
)

// ISO8601Millis is the layout used for error timestamps: UTC with millisecond precision.
const ISO8601Millis = "2006-01-02T15:04:05.000Z07:00"

// NowUTC returns current time in UTC.
func NowUTC() time.Time { return time.Now().UTC() }

// FormatISO8601 formats t in UTC using ISO8601Millis.
func FormatISO8601(t time.Time) string { return t.UTC().Format(ISO8601Millis) }

