package market

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseTimestamp accepts RFC3339 (with or without fractional seconds) or a
// unix epoch number. Epoch magnitude picks the unit: above 1e15 is
// microseconds, above 1e12 milliseconds, otherwise seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
			return time.Time{}, fmt.Errorf("bad epoch %q", s)
		}
		return EpochTime(n), nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// EpochTime converts a unix epoch in s, ms or µs to UTC.
func EpochTime(n float64) time.Time {
	switch {
	case n > 1e15:
		return time.UnixMicro(int64(n)).UTC()
	case n > 1e12:
		return time.UnixMilli(int64(n)).UTC()
	default:
		sec := int64(n)
		nsec := int64((n - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	}
}
