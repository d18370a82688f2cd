package timeparsing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// DateLayout is the only absolute date format accepted.
const DateLayout = "2006-01-02"

var nlpParser = newNLPParser()

func newNLPParser() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}

// ParsePhrase reads an English date phrase relative to now.
func ParsePhrase(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date phrase")
	}
	r, err := nlpParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("not a date phrase: %q", s)
	}
	return r.Time, nil
}

// ParseDate reads a date answer. Offsets and phrases are taken relative to
// now; the result is truncated to the day in now's location.
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateLayout, s, now.Location()); err == nil {
		return t, nil
	}
	var (
		t   time.Time
		err error
	)
	if IsOffset(s) {
		t, err = ParseOffset(s, now)
	} else {
		t, err = ParsePhrase(s, now)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a date: %w", s, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), nil
}

// ParseYear reads a year answer. Plain integers are returned as typed; range
// checks belong to the field's validation.
func ParseYear(s string, now time.Time) (int, error) {
	s = strings.TrimSpace(s)
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	switch strings.ToLower(s) {
	case "this year":
		return now.Year(), nil
	case "next year":
		return now.Year() + 1, nil
	case "last year":
		return now.Year() - 1, nil
	}
	t, err := ParseDate(s, now)
	if err != nil {
		return 0, fmt.Errorf("%q is not a year", s)
	}
	return t.Year(), nil
}
