package form

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrDuplicateID is returned when two schema nodes share an id.
var ErrDuplicateID = errors.New("duplicate id")

// Field is one typed, labeled unit of data in the schema.
type Field struct {
	ID          string
	Kind        FieldKind
	Label       string
	Required    bool
	Role        Role
	Constraints Constraints
}

// Options returns the option list of a select or checkboxes field.
func (f *Field) Options() []Option {
	switch c := f.Constraints.(type) {
	case SingleSelectConstraints:
		return c.Options
	case MultiSelectConstraints:
		return c.Options
	case CheckboxesConstraints:
		return c.Options
	}
	return nil
}

// HasOption reports whether id names one of the field's options.
func (f *Field) HasOption(id string) bool {
	for _, o := range f.Options() {
		if o.ID == id {
			return true
		}
	}
	return false
}

// CheckboxMode returns the field's checkbox mode, or "" for other kinds.
func (f *Field) CheckboxMode() CheckboxMode {
	if c, ok := f.Constraints.(CheckboxesConstraints); ok {
		if c.Mode == "" {
			return ModeSimple
		}
		return c.Mode
	}
	return ""
}

// Columns returns the column list of a table field.
func (f *Field) Columns() []Column {
	if c, ok := f.Constraints.(TableConstraints); ok {
		return c.Columns
	}
	return nil
}

// Group is an ordered section of fields.
type Group struct {
	ID          string
	Title       string
	Description string
	MinFilled   *int
	Fields      []*Field
}

// Metadata is the front matter block of a document.
type Metadata struct {
	Spec        string         `yaml:"spec,omitempty"`
	Title       string         `yaml:"title,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Roles       []Role         `yaml:"roles,omitempty"`
	Extra       map[string]any `yaml:",inline"`
}

// IsZero reports whether no metadata was set.
func (m Metadata) IsZero() bool {
	return m.Spec == "" && m.Title == "" && m.Description == "" && len(m.Roles) == 0 && len(m.Extra) == 0
}

// FormInfo carries the attributes of the root form marker.
type FormInfo struct {
	ID          string
	Title       string
	Description string
}

// Document is the root entity: schema plus answer state.
type Document struct {
	Metadata   Metadata
	Form       FormInfo
	Groups     []*Group
	Answers    map[string]Answer
	Notes      []Note
	OrderIndex []string
	Syntax     Syntax

	fields  map[string]*Field
	groupOf map[string]int
}

// NewDocument builds a document over the given schema with every field
// unanswered. Field, group and form ids share one namespace.
func NewDocument(info FormInfo, groups []*Group) (*Document, error) {
	d := &Document{
		Form:    info,
		Groups:  groups,
		Answers: make(map[string]Answer),
		Syntax:  SyntaxTags,
	}
	if err := d.index(); err != nil {
		return nil, err
	}
	for _, id := range d.OrderIndex {
		d.Answers[id] = Unanswered()
	}
	return d, nil
}

func (d *Document) index() error {
	d.fields = make(map[string]*Field)
	d.groupOf = make(map[string]int)
	d.OrderIndex = d.OrderIndex[:0]
	seen := map[string]bool{}
	if d.Form.ID != "" {
		seen[d.Form.ID] = true
	}
	for gi, g := range d.Groups {
		if seen[g.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, g.ID)
		}
		seen[g.ID] = true
		for _, f := range g.Fields {
			if seen[f.ID] {
				return fmt.Errorf("%w: %q", ErrDuplicateID, f.ID)
			}
			seen[f.ID] = true
			d.fields[f.ID] = f
			d.groupOf[f.ID] = gi
			d.OrderIndex = append(d.OrderIndex, f.ID)
		}
	}
	return nil
}

// Field looks up a field by id.
func (d *Document) Field(id string) (*Field, bool) {
	f, ok := d.fields[id]
	return f, ok
}

// Group looks up a group by id.
func (d *Document) Group(id string) (*Group, bool) {
	for _, g := range d.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// GroupIndex returns the position of the group holding field id.
func (d *Document) GroupIndex(fieldID string) (int, bool) {
	gi, ok := d.groupOf[fieldID]
	return gi, ok
}

// HasRef reports whether ref names the form, a group, or a field.
func (d *Document) HasRef(ref string) bool {
	if ref == "" {
		return false
	}
	if ref == d.Form.ID {
		return true
	}
	if _, ok := d.fields[ref]; ok {
		return true
	}
	_, ok := d.Group(ref)
	return ok
}

// Fields returns all fields in document order.
func (d *Document) Fields() []*Field {
	out := make([]*Field, 0, len(d.OrderIndex))
	for _, id := range d.OrderIndex {
		out = append(out, d.fields[id])
	}
	return out
}

// Answer returns the answer for field id. A schema field without an answer
// entry means the document was corrupted by a caller.
func (d *Document) Answer(id string) Answer {
	a, ok := d.Answers[id]
	if !ok {
		if _, known := d.fields[id]; known {
			panic(fmt.Sprintf("form: field %q has no answer entry", id))
		}
	}
	return a
}

// SetAnswer replaces the answer for field id. It panics on unknown ids.
func (d *Document) SetAnswer(id string, a Answer) {
	if _, ok := d.fields[id]; !ok {
		panic(fmt.Sprintf("form: SetAnswer on unknown field %q", id))
	}
	d.Answers[id] = a
}

// NextNoteID allocates the next free note id (n1, n2, ...).
func (d *Document) NextNoteID() string {
	max := 0
	for _, n := range d.Notes {
		if num, ok := strings.CutPrefix(n.ID, "n"); ok {
			if v, err := strconv.Atoi(num); err == nil && v > max {
				max = v
			}
		}
	}
	return "n" + strconv.Itoa(max+1)
}

// NoteIndex returns the position of note id in Notes, or -1.
func (d *Document) NoteIndex(id string) int {
	for i, n := range d.Notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Clone deep-copies answers and notes. The schema is shared.
func (d *Document) Clone() *Document {
	c := *d
	c.Answers = make(map[string]Answer, len(d.Answers))
	for id, a := range d.Answers {
		a.Value = CloneValue(a.Value)
		c.Answers[id] = a
	}
	c.Notes = append([]Note(nil), d.Notes...)
	c.OrderIndex = append([]string(nil), d.OrderIndex...)
	return &c
}

// Equal compares semantic content. Marker syntax is ignored.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	if !reflect.DeepEqual(normalizeMeta(d.Metadata), normalizeMeta(o.Metadata)) || d.Form != o.Form {
		return false
	}
	if len(d.Groups) != len(o.Groups) || !stringsEqual(d.OrderIndex, o.OrderIndex) {
		return false
	}
	for i := range d.Groups {
		if !groupsEqual(d.Groups[i], o.Groups[i]) {
			return false
		}
	}
	if len(d.Answers) != len(o.Answers) {
		return false
	}
	for id, a := range d.Answers {
		b, ok := o.Answers[id]
		if !ok || a.Status != b.Status || a.Reason != b.Reason || a.By != b.By || !ValuesEqual(a.Value, b.Value) {
			return false
		}
	}
	if len(d.Notes) != len(o.Notes) {
		return false
	}
	for i := range d.Notes {
		if d.Notes[i] != o.Notes[i] {
			return false
		}
	}
	return true
}

func normalizeMeta(m Metadata) Metadata {
	if len(m.Extra) == 0 {
		m.Extra = nil
	}
	if len(m.Roles) == 0 {
		m.Roles = nil
	}
	return m
}

func groupsEqual(a, b *Group) bool {
	if a.ID != b.ID || a.Title != b.Title || a.Description != b.Description {
		return false
	}
	if (a.MinFilled == nil) != (b.MinFilled == nil) || (a.MinFilled != nil && *a.MinFilled != *b.MinFilled) {
		return false
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		fa, fb := a.Fields[i], b.Fields[i]
		if fa.ID != fb.ID || fa.Kind != fb.Kind || fa.Label != fb.Label || fa.Required != fb.Required || fa.Role != fb.Role {
			return false
		}
		if !reflect.DeepEqual(fa.Constraints, fb.Constraints) {
			return false
		}
	}
	return true
}
