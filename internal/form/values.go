package form

import (
	"fmt"
	"sort"
	"strings"
)

// Value is a kind-tagged answer value. The concrete types below are the only
// implementations.
type Value interface {
	Kind() FieldKind
	value()
}

type (
	StringValue       string
	NumberValue       float64
	StringListValue   []string
	SingleSelectValue string
	MultiSelectValue  []string
	// CheckboxesValue maps option id to state.
	CheckboxesValue map[string]CheckboxState
	URLValue        string
	URLListValue    []string
	DateValue       string // YYYY-MM-DD
	YearValue       int
	TableValue      []TableRow
)

// TableRow maps column id to cell text.
type TableRow map[string]string

func (StringValue) Kind() FieldKind       { return KindString }
func (NumberValue) Kind() FieldKind       { return KindNumber }
func (StringListValue) Kind() FieldKind   { return KindStringList }
func (SingleSelectValue) Kind() FieldKind { return KindSingleSelect }
func (MultiSelectValue) Kind() FieldKind  { return KindMultiSelect }
func (CheckboxesValue) Kind() FieldKind   { return KindCheckboxes }
func (URLValue) Kind() FieldKind          { return KindURL }
func (URLListValue) Kind() FieldKind      { return KindURLList }
func (DateValue) Kind() FieldKind         { return KindDate }
func (YearValue) Kind() FieldKind         { return KindYear }
func (TableValue) Kind() FieldKind        { return KindTable }

func (StringValue) value()       {}
func (NumberValue) value()       {}
func (StringListValue) value()   {}
func (SingleSelectValue) value() {}
func (MultiSelectValue) value()  {}
func (CheckboxesValue) value()   {}
func (URLValue) value()          {}
func (URLListValue) value()      {}
func (DateValue) value()         {}
func (YearValue) value()         {}
func (TableValue) value()        {}

// CloneValue returns a deep copy of v.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case nil:
		return nil
	case StringValue, NumberValue, SingleSelectValue, URLValue, DateValue, YearValue:
		return val
	case StringListValue:
		return StringListValue(append([]string(nil), val...))
	case MultiSelectValue:
		return MultiSelectValue(append([]string(nil), val...))
	case URLListValue:
		return URLListValue(append([]string(nil), val...))
	case CheckboxesValue:
		out := make(CheckboxesValue, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case TableValue:
		out := make(TableValue, len(val))
		for i, row := range val {
			r := make(TableRow, len(row))
			for k, c := range row {
				r[k] = c
			}
			out[i] = r
		}
		return out
	}
	panic(fmt.Sprintf("form: unhandled value type %T", v))
}

// ValuesEqual compares two values structurally.
func ValuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case StringValue, NumberValue, SingleSelectValue, URLValue, DateValue, YearValue:
		return a == b
	case StringListValue:
		return stringsEqual(av, b.(StringListValue))
	case MultiSelectValue:
		return stringsEqual(av, b.(MultiSelectValue))
	case URLListValue:
		return stringsEqual(av, b.(URLListValue))
	case CheckboxesValue:
		bv := b.(CheckboxesValue)
		if len(av) != len(bv) {
			return false
		}
		for k, s := range av {
			if bs, ok := bv[k]; !ok || bs != s {
				return false
			}
		}
		return true
	case TableValue:
		bv := b.(TableValue)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if len(av[i]) != len(bv[i]) {
				return false
			}
			for k, c := range av[i] {
				if bc, ok := bv[i][k]; !ok || bc != c {
					return false
				}
			}
		}
		return true
	}
	panic(fmt.Sprintf("form: unhandled value type %T", a))
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FormatValue renders v as a short single-line string for messages and prompts.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return "(empty)"
	case StringValue:
		return string(val)
	case NumberValue:
		return formatNumber(float64(val))
	case StringListValue:
		return strings.Join(val, ", ")
	case SingleSelectValue:
		return string(val)
	case MultiSelectValue:
		return strings.Join(val, ", ")
	case CheckboxesValue:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + string(val[k])
		}
		return strings.Join(parts, ", ")
	case URLValue:
		return string(val)
	case URLListValue:
		return strings.Join(val, ", ")
	case DateValue:
		return string(val)
	case YearValue:
		return fmt.Sprintf("%d", int(val))
	case TableValue:
		return fmt.Sprintf("%d row(s)", len(val))
	}
	panic(fmt.Sprintf("form: unhandled value type %T", v))
}
