package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUTC(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	assert.Equal(t, "2026-03-14T09:26:53.589Z", FormatUTC(ts))
}

func TestFormatUTCConvertsZone(t *testing.T) {
	zone := time.FixedZone("UTC+10", 10*3600)
	ts := time.Date(2026, 3, 14, 19, 26, 53, 0, zone)
	assert.Equal(t, "2026-03-14T09:26:53.000Z", FormatUTC(ts))
}

func TestTruncateToSecond(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 999_000_000, time.UTC)
	truncated := TruncateToSecond(ts)
	assert.Equal(t, 0, truncated.Nanosecond())
	assert.Equal(t, "2026-03-14T09:26:53.000Z", FormatUTC(truncated))
}

func TestParseUTCRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	parsed, err := ParseUTC(FormatUTC(ts))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func TestParseUTCAcceptsRFC3339(t *testing.T) {
	parsed, err := ParseUTC("2026-03-14T09:26:53Z")
	require.NoError(t, err)
	assert.Equal(t, 2026, parsed.Year())
}

func TestParseUTCRejectsGarbage(t *testing.T) {
	_, err := ParseUTC("not a timestamp")
	assert.Error(t, err)
}
