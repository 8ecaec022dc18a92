package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 4, 0, 5, 0, 0, time.UTC)
	for _, in := range []string{
		"2025-03-04T00:05:00Z",
		"2025-03-04T01:05:00+01:00",
		"2025-03-04T00:05:00",
		"2025-03-04 00:05:00",
		"2025-03-04 00:05",
		"1741046700",
		"1741046700000",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want), "%s -> %s", in, got)
		assert.Equal(t, time.UTC, got.Location(), in)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
	_, err = ParseTimestamp("  ")
	assert.Error(t, err)
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 4, 23, 59, 1, 500_000_000, time.FixedZone("X", 3600))
	got, err := ParseTimestamp(FormatTimestamp(ts))
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
	assert.Equal(t, 22, HourUTC(ts))
}
