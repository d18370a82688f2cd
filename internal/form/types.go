// Package form defines the schema and answer model for markform documents.
//
// A document is an ordered list of groups, each holding typed fields. Every
// field has exactly one Answer. The schema is immutable once parsed; answers
// and notes are mutated in place by the patch engine.
package form

// FieldKind identifies the value shape and constraint set of a field.
type FieldKind string

// Field kinds
const (
	KindString       FieldKind = "string"
	KindNumber       FieldKind = "number"
	KindStringList   FieldKind = "string_list"
	KindSingleSelect FieldKind = "single_select"
	KindMultiSelect  FieldKind = "multi_select"
	KindCheckboxes   FieldKind = "checkboxes"
	KindURL          FieldKind = "url"
	KindURLList      FieldKind = "url_list"
	KindDate         FieldKind = "date"
	KindYear         FieldKind = "year"
	KindTable        FieldKind = "table"
)

// AllFieldKinds returns every field kind in canonical order.
func AllFieldKinds() []FieldKind {
	return []FieldKind{
		KindString, KindNumber, KindStringList, KindSingleSelect, KindMultiSelect,
		KindCheckboxes, KindURL, KindURLList, KindDate, KindYear, KindTable,
	}
}

// IsValid checks if the kind is one of the known field kinds
func (k FieldKind) IsValid() bool {
	switch k {
	case KindString, KindNumber, KindStringList, KindSingleSelect, KindMultiSelect,
		KindCheckboxes, KindURL, KindURLList, KindDate, KindYear, KindTable:
		return true
	}
	return false
}

// CheckboxMode selects the state vocabulary of a checkboxes field.
type CheckboxMode string

// Checkbox modes
const (
	ModeSimple   CheckboxMode = "simple"
	ModeMulti    CheckboxMode = "multi"
	ModeExplicit CheckboxMode = "explicit"
)

// IsValid checks if the mode is known
func (m CheckboxMode) IsValid() bool {
	switch m {
	case ModeSimple, ModeMulti, ModeExplicit:
		return true
	}
	return false
}

// CheckboxState is the state of one option of a checkboxes field.
type CheckboxState string

// Checkbox states across all modes
const (
	StateTodo       CheckboxState = "todo"
	StateDone       CheckboxState = "done"
	StateActive     CheckboxState = "active"
	StateIncomplete CheckboxState = "incomplete"
	StateNA         CheckboxState = "na"
	StateUnfilled   CheckboxState = "unfilled"
	StateYes        CheckboxState = "yes"
	StateNo         CheckboxState = "no"
)

// States returns the closed state vocabulary of the mode.
func (m CheckboxMode) States() []CheckboxState {
	switch m {
	case ModeSimple:
		return []CheckboxState{StateTodo, StateDone}
	case ModeMulti:
		return []CheckboxState{StateTodo, StateActive, StateDone, StateIncomplete, StateNA}
	case ModeExplicit:
		return []CheckboxState{StateUnfilled, StateYes, StateNo}
	}
	return nil
}

// DefaultState is the state an option has before anyone touches it.
func (m CheckboxMode) DefaultState() CheckboxState {
	if m == ModeExplicit {
		return StateUnfilled
	}
	return StateTodo
}

// Allows reports whether s belongs to the mode's vocabulary.
func (m CheckboxMode) Allows(s CheckboxState) bool {
	for _, allowed := range m.States() {
		if allowed == s {
			return true
		}
	}
	return false
}

// IsValid checks if the state exists in any mode
func (s CheckboxState) IsValid() bool {
	switch s {
	case StateTodo, StateDone, StateActive, StateIncomplete, StateNA, StateUnfilled, StateYes, StateNo:
		return true
	}
	return false
}

// Role names who is expected to supply a field's value.
type Role string

// Conventional roles. RoleAny matches every role in a RoleSet.
const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAny   Role = "*"
)

// DefaultRole is assigned to fields that do not declare one.
const DefaultRole = RoleAgent

// RoleSet is a filter over roles. An empty set places no restriction.
type RoleSet []Role

// Contains reports whether the set admits role.
func (rs RoleSet) Contains(role Role) bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if r == RoleAny || r == role {
			return true
		}
	}
	return false
}

// IsAll reports whether the set admits every role.
func (rs RoleSet) IsAll() bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if r == RoleAny {
			return true
		}
	}
	return false
}

// Syntax is the marker style a document is written in.
type Syntax string

// Marker syntaxes
const (
	SyntaxTags     Syntax = "tags"     // {% field ... %}
	SyntaxComments Syntax = "comments" // <!-- field ... -->
)

// IsValid checks if the syntax is known
func (s Syntax) IsValid() bool {
	return s == SyntaxTags || s == SyntaxComments
}

// AnswerStatus is the lifecycle position of a field's answer.
type AnswerStatus string

// Answer statuses
const (
	StatusUnanswered AnswerStatus = "unanswered"
	StatusAnswered   AnswerStatus = "answered"
	StatusSkipped    AnswerStatus = "skipped"
	StatusAborted    AnswerStatus = "aborted"
)

// IsTerminal reports whether the status counts as resolved.
func (s AnswerStatus) IsTerminal() bool {
	return s == StatusAnswered || s == StatusSkipped || s == StatusAborted
}

// Answer is the per-field answer record.
type Answer struct {
	Status AnswerStatus
	Value  Value  // set only when Status is answered
	Reason string // skip/abort reason
	By     Role   // who skipped
}

// Unanswered returns the empty answer.
func Unanswered() Answer { return Answer{Status: StatusUnanswered} }

// Answered wraps a value.
func Answered(v Value) Answer { return Answer{Status: StatusAnswered, Value: v} }

// Skipped records a deliberate skip.
func Skipped(reason string, by Role) Answer {
	return Answer{Status: StatusSkipped, Reason: reason, By: by}
}

// Aborted records that the field could not be filled.
func Aborted(reason string) Answer { return Answer{Status: StatusAborted, Reason: reason} }

// Note is a free-form annotation attached to a field, group or the form.
type Note struct {
	ID   string
	Ref  string
	Role Role
	Text string
}
