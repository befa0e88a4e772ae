package common

import (
	"time"
)

// utcMillisLayout is the wire format for every emitted timestamp:
// RFC 3339, UTC, millisecond precision, "Z" suffix.
const utcMillisLayout = "2006-01-02T15:04:05.000Z"

// FormatUTC renders a timestamp in the canonical wire format.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(utcMillisLayout)
}

// NowUTC returns the current time formatted in the canonical wire format.
func NowUTC() string {
	return FormatUTC(time.Now())
}

// TruncateToSecond drops sub-second precision. Store rows keep whole
// seconds so the keyset cursor and the row agree on resolution.
func TruncateToSecond(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// ParseUTC parses a timestamp in the canonical wire format, falling back
// to RFC 3339 variants the store may emit.
func ParseUTC(value string) (time.Time, error) {
	if t, err := time.Parse(utcMillisLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
