// Package timeparse resolves flexible timestamp strings into instants.
//
// Supported shapes, tried in order:
//   - full ISO datetime: 2025-03-26T13:30:51
//   - date only:         2025-03-26 (midnight)
//   - hour only:         13 (today at 13:00:00)
//   - hour and minute:   13:30 (today at 13:30:00)
//
// "Today" is taken from the supplied clock at call time.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/mhzan/cctv-archiver/internal/cctv"
)

var (
	datePattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	timePattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{1,2}))?$`)
)

// isoLayouts cover the datetime shapes the original accepts via
// fromisoformat: with and without seconds or a zone offset.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Resolve parses s into a concrete instant, or fails with
// cctv.ErrInvalidTimestamp. now supplies "today" for partial inputs.
func Resolve(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", cctv.ErrInvalidTimestamp)
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}

	if m := datePattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, fmt.Errorf("%w: out-of-range date %q", cctv.ErrInvalidTimestamp, s)
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
		// time.Date normalizes overflow (Feb 30 becomes Mar 2); a changed
		// component means the calendar date never existed.
		if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
			return time.Time{}, fmt.Errorf("%w: nonexistent date %q", cctv.ErrInvalidTimestamp, s)
		}
		return t, nil
	}

	if m := timePattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour > 23 || minute > 59 {
			return time.Time{}, fmt.Errorf("%w: out-of-range time %q", cctv.ErrInvalidTimestamp, s)
		}
		return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), nil
	}

	return time.Time{}, fmt.Errorf("%w: unsupported format %q", cctv.ErrInvalidTimestamp, s)
}
