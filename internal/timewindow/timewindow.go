// Package timewindow resolves the [start, end] window of a track export from
// optional explicit bounds and a relative length such as "90m" or "2w".
package timewindow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultLength is used when neither a start time nor a length is given.
const DefaultLength = "1d"

// ErrInvalid is returned for malformed times, lengths, or inverted windows.
var ErrInvalid = errors.New("invalid time window")

var units = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// Accepted explicit time layouts. Every layout carries a zone.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
}

// ParseLength parses a positive integer followed by one of s, m, h, d, w.
func ParseLength(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: length %q must be a number followed by s, m, h, d or w", ErrInvalid, s)
	}
	unit, ok := units[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit in length %q (use s, m, h, d or w)", ErrInvalid, s)
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: length %q must be a positive integer", ErrInvalid, s)
	}
	return time.Duration(n) * unit, nil
}

// ParseTime parses an explicit bound. Times without a zone are rejected.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q must be RFC 3339 with a zone, e.g. 2019-04-23T08:29:13Z", ErrInvalid, s)
}

// Resolve computes the export window:
//   - end is endStr, or now when empty
//   - start is startStr, or end minus length (DefaultLength when empty)
//
// The result is in UTC. An end before start is rejected.
func Resolve(startStr, endStr, length string, now time.Time) (start, end time.Time, err error) {
	end = now.UTC()
	if strings.TrimSpace(endStr) != "" {
		if end, err = ParseTime(endStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if strings.TrimSpace(startStr) != "" {
		if start, err = ParseTime(startStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		if strings.TrimSpace(length) == "" {
			length = DefaultLength
		}
		d, err := ParseLength(length)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = end.Add(-d)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalid,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return start, end, nil
}
