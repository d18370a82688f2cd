// Package timeparsing reads date and year answers typed by people.
//
// A date answer may be an ISO date (2024-05-01), an offset from today
// (+3d, -1w, 2m, +1y) or an English phrase (tomorrow, next friday).
// A year answer may be a number, a year offset (+1y), or a phrase.
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// offsetRe matches [+-]?N followed by d(ays), w(eeks), m(onths) or y(ears).
var offsetRe = regexp.MustCompile(`^([+-]?)(\d+)([dwmy])$`)

// IsOffset reports whether s is offset syntax.
func IsOffset(s string) bool {
	return offsetRe.MatchString(s)
}

// ParseOffset moves now by an offset such as "+3d" or "-1y". No sign means
// forward.
func ParseOffset(s string, now time.Time) (time.Time, error) {
	m := offsetRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("not an offset: %q", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("offset %q: %w", s, err)
	}
	if m[1] == "-" {
		n = -n
	}
	switch m[3] {
	case "d":
		return now.AddDate(0, 0, n), nil
	case "w":
		return now.AddDate(0, 0, 7*n), nil
	case "m":
		return now.AddDate(0, n, 0), nil
	}
	return now.AddDate(n, 0, 0), nil
}
