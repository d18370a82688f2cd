package form

import "fmt"

// Constraints is the kind-specific constraint set of a field. The concrete
// types below are the only implementations.
type Constraints interface {
	Kind() FieldKind
	constraints()
}

// Option is one choice of a select or checkboxes field.
type Option struct {
	ID    string
	Label string
}

// ColumnType is the cell type of a table column.
type ColumnType string

// Column types
const (
	ColumnString ColumnType = "string"
	ColumnNumber ColumnType = "number"
	ColumnURL    ColumnType = "url"
	ColumnDate   ColumnType = "date"
	ColumnYear   ColumnType = "year"
)

// IsValid checks if the column type is known
func (t ColumnType) IsValid() bool {
	switch t {
	case ColumnString, ColumnNumber, ColumnURL, ColumnDate, ColumnYear:
		return true
	}
	return false
}

// Column describes one table column.
type Column struct {
	ID    string
	Label string
	Type  ColumnType
}

type StringConstraints struct {
	MinLength *int
	MaxLength *int
	Pattern   string // RE2 syntax, anchored by the author if needed
}

type NumberConstraints struct {
	Min     *float64
	Max     *float64
	Integer bool
}

type StringListConstraints struct {
	MinItems      *int
	MaxItems      *int
	ItemMinLength *int
	ItemMaxLength *int
	UniqueItems   bool
}

type SingleSelectConstraints struct {
	Options []Option
}

type MultiSelectConstraints struct {
	Options       []Option
	MinSelections *int
	MaxSelections *int
}

type CheckboxesConstraints struct {
	Options []Option
	Mode    CheckboxMode
	MinDone *int
}

type URLConstraints struct{}

type URLListConstraints struct {
	MinItems    *int
	MaxItems    *int
	UniqueItems bool
}

// DateConstraints bounds are inclusive YYYY-MM-DD strings.
type DateConstraints struct {
	Min string
	Max string
}

type YearConstraints struct {
	Min *int
	Max *int
}

type TableConstraints struct {
	Columns []Column
	MinRows *int
	MaxRows *int
}

func (StringConstraints) Kind() FieldKind       { return KindString }
func (NumberConstraints) Kind() FieldKind       { return KindNumber }
func (StringListConstraints) Kind() FieldKind   { return KindStringList }
func (SingleSelectConstraints) Kind() FieldKind { return KindSingleSelect }
func (MultiSelectConstraints) Kind() FieldKind  { return KindMultiSelect }
func (CheckboxesConstraints) Kind() FieldKind   { return KindCheckboxes }
func (URLConstraints) Kind() FieldKind          { return KindURL }
func (URLListConstraints) Kind() FieldKind      { return KindURLList }
func (DateConstraints) Kind() FieldKind         { return KindDate }
func (YearConstraints) Kind() FieldKind         { return KindYear }
func (TableConstraints) Kind() FieldKind        { return KindTable }

func (StringConstraints) constraints()       {}
func (NumberConstraints) constraints()       {}
func (StringListConstraints) constraints()   {}
func (SingleSelectConstraints) constraints() {}
func (MultiSelectConstraints) constraints()  {}
func (CheckboxesConstraints) constraints()   {}
func (URLConstraints) constraints()          {}
func (URLListConstraints) constraints()      {}
func (DateConstraints) constraints()         {}
func (YearConstraints) constraints()         {}
func (TableConstraints) constraints()        {}

// DefaultConstraints returns the unconstrained set for kind.
func DefaultConstraints(kind FieldKind) Constraints {
	switch kind {
	case KindString:
		return StringConstraints{}
	case KindNumber:
		return NumberConstraints{}
	case KindStringList:
		return StringListConstraints{}
	case KindSingleSelect:
		return SingleSelectConstraints{}
	case KindMultiSelect:
		return MultiSelectConstraints{}
	case KindCheckboxes:
		return CheckboxesConstraints{Mode: ModeSimple}
	case KindURL:
		return URLConstraints{}
	case KindURLList:
		return URLListConstraints{}
	case KindDate:
		return DateConstraints{}
	case KindYear:
		return YearConstraints{}
	case KindTable:
		return TableConstraints{}
	}
	panic(fmt.Sprintf("form: unhandled field kind %q", kind))
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
