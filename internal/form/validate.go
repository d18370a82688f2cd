package form

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// DateLayout is the only accepted date literal format.
const DateLayout = "2006-01-02"

// ErrNotTextual is returned by ParseText for kinds that are not written as
// plain text.
var ErrNotTextual = errors.New("kind has no plain text form")

// Violation describes one way a value breaks its field's constraints.
type Violation struct {
	FieldID string
	Message string
}

func (v Violation) String() string {
	return v.FieldID + ": " + v.Message
}

// JoinViolations renders a violation list as one message.
func JoinViolations(vs []Violation) string {
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}

type violations struct {
	id  string
	out []Violation
}

func (vs *violations) addf(format string, args ...any) {
	vs.out = append(vs.out, Violation{FieldID: vs.id, Message: fmt.Sprintf(format, args...)})
}

// ValidateValue checks v against f's kind and constraints. A nil value is
// always valid; emptiness is the inspector's concern.
func ValidateValue(f *Field, v Value) []Violation {
	if v == nil {
		return nil
	}
	vs := &violations{id: f.ID}
	if v.Kind() != f.Kind {
		vs.addf("value of kind %s does not match field kind %s", v.Kind(), f.Kind)
		return vs.out
	}

	switch val := v.(type) {
	case StringValue:
		validateString(vs, f.Constraints.(StringConstraints), string(val))
	case NumberValue:
		validateNumber(vs, f.Constraints.(NumberConstraints), float64(val))
	case StringListValue:
		c := f.Constraints.(StringListConstraints)
		validateItems(vs, val, c.MinItems, c.MaxItems, c.UniqueItems)
		for _, item := range val {
			validateListItem(vs, item)
			n := utf8.RuneCountInString(item)
			if c.ItemMinLength != nil && n < *c.ItemMinLength {
				vs.addf("item %q is shorter than %d characters", item, *c.ItemMinLength)
			}
			if c.ItemMaxLength != nil && n > *c.ItemMaxLength {
				vs.addf("item %q is longer than %d characters", item, *c.ItemMaxLength)
			}
		}
	case SingleSelectValue:
		if !f.HasOption(string(val)) {
			vs.addf("unknown option %q", string(val))
		}
	case MultiSelectValue:
		c := f.Constraints.(MultiSelectConstraints)
		seen := map[string]bool{}
		for _, id := range val {
			if !f.HasOption(id) {
				vs.addf("unknown option %q", id)
			}
			if seen[id] {
				vs.addf("option %q selected twice", id)
			}
			seen[id] = true
		}
		if c.MinSelections != nil && len(val) < *c.MinSelections {
			vs.addf("at least %d selections required, got %d", *c.MinSelections, len(val))
		}
		if c.MaxSelections != nil && len(val) > *c.MaxSelections {
			vs.addf("at most %d selections allowed, got %d", *c.MaxSelections, len(val))
		}
	case CheckboxesValue:
		mode := f.CheckboxMode()
		for _, o := range f.Options() {
			if s, ok := val[o.ID]; ok && !mode.Allows(s) {
				vs.addf("state %q is not valid for option %q in %s mode", s, o.ID, mode)
			}
		}
		for _, id := range sortedKeys(val) {
			if !f.HasOption(id) {
				vs.addf("unknown option %q", id)
			}
		}
	case URLValue:
		if err := CheckURL(string(val)); err != nil {
			vs.addf("%v", err)
		}
	case URLListValue:
		c := f.Constraints.(URLListConstraints)
		validateItems(vs, val, c.MinItems, c.MaxItems, c.UniqueItems)
		for _, u := range val {
			if err := CheckURL(u); err != nil {
				vs.addf("%v", err)
			}
		}
	case DateValue:
		c := f.Constraints.(DateConstraints)
		if err := CheckDate(string(val)); err != nil {
			vs.addf("%v", err)
			break
		}
		// Fixed-width ISO dates order lexically.
		if c.Min != "" && string(val) < c.Min {
			vs.addf("date %s is before %s", val, c.Min)
		}
		if c.Max != "" && string(val) > c.Max {
			vs.addf("date %s is after %s", val, c.Max)
		}
	case YearValue:
		c := f.Constraints.(YearConstraints)
		if err := CheckYear(int(val)); err != nil {
			vs.addf("%v", err)
		}
		if c.Min != nil && int(val) < *c.Min {
			vs.addf("year %d is below minimum %d", int(val), *c.Min)
		}
		if c.Max != nil && int(val) > *c.Max {
			vs.addf("year %d is above maximum %d", int(val), *c.Max)
		}
	case TableValue:
		validateTable(vs, f.Constraints.(TableConstraints), val)
	default:
		panic(fmt.Sprintf("form: unhandled value type %T", v))
	}
	return vs.out
}

func validateString(vs *violations, c StringConstraints, s string) {
	n := utf8.RuneCountInString(s)
	if c.MinLength != nil && n < *c.MinLength {
		vs.addf("must be at least %d characters, got %d", *c.MinLength, n)
	}
	if c.MaxLength != nil && n > *c.MaxLength {
		vs.addf("must be at most %d characters, got %d", *c.MaxLength, n)
	}
	if c.Pattern != "" {
		re, err := compilePattern(c.Pattern)
		if err != nil {
			vs.addf("invalid pattern %q: %v", c.Pattern, err)
		} else if !re.MatchString(s) {
			vs.addf("does not match pattern %q", c.Pattern)
		}
	}
}

func validateNumber(vs *violations, c NumberConstraints, n float64) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		vs.addf("must be a finite number")
		return
	}
	if c.Integer && n != math.Trunc(n) {
		vs.addf("must be an integer, got %s", formatNumber(n))
	}
	if c.Min != nil && n < *c.Min {
		vs.addf("must be >= %s, got %s", formatNumber(*c.Min), formatNumber(n))
	}
	if c.Max != nil && n > *c.Max {
		vs.addf("must be <= %s, got %s", formatNumber(*c.Max), formatNumber(n))
	}
}

func validateItems(vs *violations, items []string, minItems, maxItems *int, unique bool) {
	if minItems != nil && len(items) < *minItems {
		vs.addf("at least %d items required, got %d", *minItems, len(items))
	}
	if maxItems != nil && len(items) > *maxItems {
		vs.addf("at most %d items allowed, got %d", *maxItems, len(items))
	}
	if unique {
		seen := map[string]bool{}
		for _, item := range items {
			if seen[item] {
				vs.addf("duplicate item %q", item)
			}
			seen[item] = true
		}
	}
}

func validateListItem(vs *violations, item string) {
	if strings.TrimSpace(item) == "" {
		vs.addf("list items must not be blank")
	}
	if strings.ContainsAny(item, "\r\n") {
		vs.addf("list item %q spans multiple lines", item)
	}
}

func validateTable(vs *violations, c TableConstraints, rows TableValue) {
	if c.MinRows != nil && len(rows) < *c.MinRows {
		vs.addf("at least %d rows required, got %d", *c.MinRows, len(rows))
	}
	if c.MaxRows != nil && len(rows) > *c.MaxRows {
		vs.addf("at most %d rows allowed, got %d", *c.MaxRows, len(rows))
	}
	cols := make(map[string]ColumnType, len(c.Columns))
	for _, col := range c.Columns {
		cols[col.ID] = col.Type
	}
	for i, row := range rows {
		for _, id := range sortedKeys(row) {
			cell := row[id]
			typ, ok := cols[id]
			if !ok {
				vs.addf("row %d: unknown column %q", i+1, id)
				continue
			}
			if strings.ContainsAny(cell, "\r\n") {
				vs.addf("row %d: cell %q spans multiple lines", i+1, id)
				continue
			}
			if cell == "" {
				continue
			}
			if err := checkCell(typ, cell); err != nil {
				vs.addf("row %d: column %q: %v", i+1, id, err)
			}
		}
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func checkCell(typ ColumnType, cell string) error {
	switch typ {
	case ColumnString:
		return nil
	case ColumnNumber:
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return fmt.Errorf("%q is not a number", cell)
		}
	case ColumnURL:
		return CheckURL(cell)
	case ColumnDate:
		return CheckDate(cell)
	case ColumnYear:
		y, err := strconv.Atoi(cell)
		if err != nil {
			return fmt.Errorf("%q is not a year", cell)
		}
		return CheckYear(y)
	}
	return fmt.Errorf("unknown column type %q", typ)
}

// CheckURL accepts absolute http and https URLs.
func CheckURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", s)
	}
	return nil
}

// CheckDate accepts YYYY-MM-DD calendar dates.
func CheckDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("%q is not a YYYY-MM-DD date", s)
	}
	return nil
}

// CheckYear accepts four-digit years.
func CheckYear(y int) error {
	if y < 1000 || y > 9999 {
		return fmt.Errorf("%d is not a four-digit year", y)
	}
	return nil
}

var patternCache sync.Map // pattern -> *regexp.Regexp

func compilePattern(p string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	patternCache.Store(p, re)
	return re, nil
}

// CompilePattern validates a string pattern constraint.
func CompilePattern(p string) error {
	_, err := compilePattern(p)
	return err
}

// Completeness reports what keeps a valid checkboxes value from counting as
// done. minDone, when set, replaces the all-options rule. Other kinds are
// always complete.
func Completeness(f *Field, v Value) []Violation {
	cv, ok := v.(CheckboxesValue)
	if !ok || f.Kind != KindCheckboxes {
		return nil
	}
	c := f.Constraints.(CheckboxesConstraints)
	mode := f.CheckboxMode()
	vs := &violations{id: f.ID}

	if c.MinDone != nil {
		want := StateDone
		if mode == ModeExplicit {
			want = StateYes
		}
		n := 0
		for _, o := range c.Options {
			if cv[o.ID] == want {
				n++
			}
		}
		if n < *c.MinDone {
			vs.addf("at least %d options must be %s, got %d", *c.MinDone, want, n)
		}
		return vs.out
	}
	if !f.Required {
		return nil
	}
	var pending []string
	for _, o := range c.Options {
		s, set := cv[o.ID]
		if !set {
			s = mode.DefaultState()
		}
		if !checkboxResolved(mode, s) {
			pending = append(pending, o.ID)
		}
	}
	if len(pending) > 0 {
		vs.addf("options not resolved: %s", strings.Join(pending, ", "))
	}
	return vs.out
}

func checkboxResolved(mode CheckboxMode, s CheckboxState) bool {
	switch mode {
	case ModeSimple:
		return s == StateDone
	case ModeMulti:
		return s == StateDone || s == StateNA
	case ModeExplicit:
		return s == StateYes || s == StateNo
	}
	panic(fmt.Sprintf("form: unhandled checkbox mode %q", mode))
}

// Normalize trims whitespace from scalar text, list items and table cells,
// drops blank list items, blank cells and blank rows, and returns nil when nothing is
// left. An all-default checkboxes value is empty.
func Normalize(f *Field, v Value) Value {
	switch val := v.(type) {
	case nil:
		return nil
	case StringValue:
		return nonEmpty(StringValue(strings.TrimSpace(string(val))))
	case NumberValue, YearValue:
		return val
	case StringListValue:
		return nonEmptyList(trimItems(val), func(s []string) Value { return StringListValue(s) })
	case SingleSelectValue:
		return nonEmpty(SingleSelectValue(strings.TrimSpace(string(val))))
	case MultiSelectValue:
		return nonEmptyList(trimItems(val), func(s []string) Value { return MultiSelectValue(s) })
	case CheckboxesValue:
		mode := f.CheckboxMode()
		for _, s := range val {
			if s != mode.DefaultState() {
				return val
			}
		}
		return nil
	case URLValue:
		return nonEmpty(URLValue(strings.TrimSpace(string(val))))
	case URLListValue:
		return nonEmptyList(trimItems(val), func(s []string) Value { return URLListValue(s) })
	case DateValue:
		return nonEmpty(DateValue(strings.TrimSpace(string(val))))
	case TableValue:
		var rows TableValue
		for _, row := range val {
			r := make(TableRow, len(row))
			for k, cell := range row {
				if cell = strings.TrimSpace(cell); cell != "" {
					r[k] = cell
				}
			}
			if len(r) > 0 {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			return nil
		}
		return rows
	}
	panic(fmt.Sprintf("form: unhandled value type %T", v))
}

func nonEmpty[T ~string](v T) Value {
	if v == "" {
		return nil
	}
	return any(v).(Value)
}

func trimItems(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nonEmptyList(items []string, wrap func([]string) Value) Value {
	if len(items) == 0 {
		return nil
	}
	return wrap(items)
}

// ParseText converts the plain text form of a scalar or list value. List
// kinds take one item per line.
func ParseText(kind FieldKind, text string) (Value, error) {
	switch kind {
	case KindString:
		return StringValue(text), nil
	case KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", strings.TrimSpace(text))
		}
		return NumberValue(n), nil
	case KindStringList:
		return StringListValue(splitLines(text)), nil
	case KindURL:
		return URLValue(strings.TrimSpace(text)), nil
	case KindURLList:
		return URLListValue(splitLines(text)), nil
	case KindDate:
		return DateValue(strings.TrimSpace(text)), nil
	case KindYear:
		y, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("%q is not a year", strings.TrimSpace(text))
		}
		return YearValue(y), nil
	case KindSingleSelect, KindMultiSelect, KindCheckboxes, KindTable:
		return nil, fmt.Errorf("%s: %w", kind, ErrNotTextual)
	}
	panic(fmt.Sprintf("form: unhandled field kind %q", kind))
}

// FormatText is the inverse of ParseText.
func FormatText(v Value) (string, error) {
	switch val := v.(type) {
	case StringValue:
		return string(val), nil
	case NumberValue:
		return formatNumber(float64(val)), nil
	case StringListValue:
		return strings.Join(val, "\n"), nil
	case URLValue:
		return string(val), nil
	case URLListValue:
		return strings.Join(val, "\n"), nil
	case DateValue:
		return string(val), nil
	case YearValue:
		return strconv.Itoa(int(val)), nil
	case SingleSelectValue, MultiSelectValue, CheckboxesValue, TableValue:
		return "", fmt.Errorf("%s: %w", v.Kind(), ErrNotTextual)
	}
	panic(fmt.Sprintf("form: unhandled value type %T", v))
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// IsEmptyValue reports whether v carries no answer for f.
func IsEmptyValue(f *Field, v Value) bool {
	return Normalize(f, CloneValue(v)) == nil
}
