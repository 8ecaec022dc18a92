package util

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts RFC3339 (with or without zone), "YYYY-MM-DD hh:mm:ss"
// or unix seconds/milliseconds and returns the instant in UTC. A timestamp
// without a zone is taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return FromEpoch(n), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// FromEpoch treats values past year 2286 in seconds as milliseconds.
func FromEpoch(n int64) time.Time {
	if n > 1e10 || n < -1e10 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// FormatTimestamp renders t as RFC3339 UTC, the checkpoint and journal format.
func FormatTimestamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// HourUTC is the UTC hour-of-day of t.
func HourUTC(t time.Time) int { return t.UTC().Hour() }
