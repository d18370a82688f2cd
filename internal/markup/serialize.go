package markup

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/markform/internal/form"
)

// markerWriter renders markers in one syntax.
type markerWriter interface {
	open(name string, attrs []attr) string
	close(name string) string
	option(id string) string
}

func writerFor(style form.Syntax) markerWriter {
	if style == form.SyntaxComments {
		return commentWriter{}
	}
	return tagWriter{}
}

func formatAttrs(attrs []attr, escape func(string) string) string {
	var b strings.Builder
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.name)
		b.WriteByte('=')
		switch v := a.val.(type) {
		case string:
			b.WriteString(`"` + escape(v) + `"`)
		case bool:
			b.WriteString(strconv.FormatBool(v))
		case float64:
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		case int:
			b.WriteString(strconv.Itoa(v))
		case []string:
			b.WriteByte('[')
			for i, s := range v {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(`"` + escape(s) + `"`)
			}
			b.WriteByte(']')
		default:
			panic(fmt.Sprintf("markup: unhandled attribute type %T", a.val))
		}
	}
	return b.String()
}

// Serialize renders doc in its own marker syntax.
func Serialize(doc *form.Document) string {
	return SerializeAs(doc, doc.Syntax)
}

// SerializeAs renders doc in the given marker syntax. The output is
// canonical: serializing a parsed serialization reproduces it byte for byte.
func SerializeAs(doc *form.Document, style form.Syntax) string {
	s := &serializer{w: writerFor(style), doc: doc}
	s.document()
	return s.b.String()
}

type serializer struct {
	w   markerWriter
	doc *form.Document
	b   strings.Builder
}

func (s *serializer) line(parts ...string) {
	for _, p := range parts {
		s.b.WriteString(p)
	}
	s.b.WriteByte('\n')
}

func (s *serializer) document() {
	d := s.doc
	if !d.Metadata.IsZero() {
		s.frontMatter()
	}
	s.line(s.w.open("form", attrsOf(
		"id", d.Form.ID,
		"title", d.Form.Title,
	)))
	s.line()
	if d.Form.Description != "" {
		s.line(d.Form.Description)
		s.line()
	}
	for _, g := range d.Groups {
		s.group(g)
	}
	for _, n := range d.Notes {
		s.line(s.w.open("note", attrsOf("id", n.ID, "ref", n.Ref, "role", string(n.Role))))
		if n.Text != "" {
			s.line(n.Text)
		}
		s.line(s.w.close("note"))
		s.line()
	}
	s.line(s.w.close("form"))
}

func (s *serializer) frontMatter() {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(frontMatter{Markform: s.doc.Metadata}); err != nil {
		panic(fmt.Sprintf("markup: encoding front matter: %v", err))
	}
	_ = enc.Close()
	s.line("---")
	s.b.Write(buf.Bytes())
	s.line("---")
	s.line()
}

func (s *serializer) group(g *form.Group) {
	attrs := attrsOf("id", g.ID, "title", g.Title)
	if g.MinFilled != nil {
		attrs = append(attrs, attr{name: "minFilled", val: *g.MinFilled})
	}
	s.line(s.w.open("group", attrs))
	s.line()
	if g.Description != "" {
		s.line(g.Description)
		s.line()
	}
	for _, f := range g.Fields {
		s.field(f, s.doc.Answer(f.ID))
		s.line()
	}
	s.line(s.w.close("group"))
	s.line()
}

func (s *serializer) field(f *form.Field, a form.Answer) {
	open := s.w.open("field", fieldAttrs(f, a))
	closeTag := s.w.close("field")
	var value form.Value
	if a.Status == form.StatusAnswered {
		value = a.Value
	}

	switch f.Kind {
	case form.KindString, form.KindNumber, form.KindStringList, form.KindURL, form.KindURLList,
		form.KindDate, form.KindYear:
		if value == nil {
			s.line(open, closeTag)
			return
		}
		text, err := form.FormatText(value)
		if err != nil {
			panic(fmt.Sprintf("markup: field %q: %v", f.ID, err))
		}
		fence := fenceFor(text)
		s.line(open)
		s.line(fence, "value")
		s.line(text)
		s.line(fence)
		s.line(closeTag)
	case form.KindSingleSelect, form.KindMultiSelect, form.KindCheckboxes:
		s.line(open)
		for _, o := range f.Options() {
			s.line("- [", string(optionMarker(f, value, o.ID)), "] ", o.Label, " ", s.w.option(o.ID))
		}
		s.line(closeTag)
	case form.KindTable:
		s.line(open)
		s.table(f, value)
		s.line(closeTag)
	default:
		panic(fmt.Sprintf("markup: unhandled field kind %q", f.Kind))
	}
}

func optionMarker(f *form.Field, v form.Value, id string) byte {
	switch val := v.(type) {
	case nil:
		if f.Kind == form.KindCheckboxes {
			return markerForState(f.CheckboxMode().DefaultState())
		}
		return ' '
	case form.SingleSelectValue:
		if string(val) == id {
			return 'x'
		}
	case form.MultiSelectValue:
		for _, picked := range val {
			if picked == id {
				return 'x'
			}
		}
	case form.CheckboxesValue:
		st, ok := val[id]
		if !ok {
			st = f.CheckboxMode().DefaultState()
		}
		return markerForState(st)
	}
	return ' '
}

func (s *serializer) table(f *form.Field, v form.Value) {
	cols := f.Columns()
	header := make([]string, len(cols))
	sep := make([]string, len(cols))
	for i, c := range cols {
		header[i] = escapeCell(c.Label)
		sep[i] = "---"
	}
	s.line("| ", strings.Join(header, " | "), " |")
	s.line("| ", strings.Join(sep, " | "), " |")
	rows, _ := v.(form.TableValue)
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = escapeCell(row[c.ID])
		}
		s.line("| ", strings.Join(cells, " | "), " |")
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// attrsOf builds string attributes from name/value pairs, dropping empties.
func attrsOf(pairs ...string) []attr {
	var out []attr
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			out = append(out, attr{name: pairs[i], val: pairs[i+1]})
		}
	}
	return out
}

func fieldAttrs(f *form.Field, a form.Answer) []attr {
	attrs := attrsOf("kind", string(f.Kind), "id", f.ID, "label", f.Label)
	if f.Required {
		attrs = append(attrs, attr{name: "required", val: true})
	}
	if f.Role != "" && f.Role != form.DefaultRole {
		attrs = append(attrs, attr{name: "role", val: string(f.Role)})
	}
	attrs = append(attrs, constraintAttrs(f.Constraints)...)
	switch a.Status {
	case form.StatusSkipped, form.StatusAborted:
		attrs = append(attrs, attrsOf("state", string(a.Status), "reason", a.Reason, "by", string(a.By))...)
	}
	return attrs
}

func intAttr(out []attr, name string, v *int) []attr {
	if v != nil {
		out = append(out, attr{name: name, val: *v})
	}
	return out
}

func boolAttr(out []attr, name string, v bool) []attr {
	if v {
		out = append(out, attr{name: name, val: true})
	}
	return out
}

func constraintAttrs(c form.Constraints) []attr {
	var out []attr
	switch c := c.(type) {
	case form.StringConstraints:
		out = intAttr(out, "minLength", c.MinLength)
		out = intAttr(out, "maxLength", c.MaxLength)
		out = append(out, attrsOf("pattern", c.Pattern)...)
	case form.NumberConstraints:
		if c.Min != nil {
			out = append(out, attr{name: "min", val: *c.Min})
		}
		if c.Max != nil {
			out = append(out, attr{name: "max", val: *c.Max})
		}
		out = boolAttr(out, "integer", c.Integer)
	case form.StringListConstraints:
		out = intAttr(out, "minItems", c.MinItems)
		out = intAttr(out, "maxItems", c.MaxItems)
		out = intAttr(out, "itemMinLength", c.ItemMinLength)
		out = intAttr(out, "itemMaxLength", c.ItemMaxLength)
		out = boolAttr(out, "uniqueItems", c.UniqueItems)
	case form.SingleSelectConstraints:
	case form.MultiSelectConstraints:
		out = intAttr(out, "minSelections", c.MinSelections)
		out = intAttr(out, "maxSelections", c.MaxSelections)
	case form.CheckboxesConstraints:
		if c.Mode != "" && c.Mode != form.ModeSimple {
			out = append(out, attr{name: "checkboxMode", val: string(c.Mode)})
		}
		out = intAttr(out, "minDone", c.MinDone)
	case form.URLConstraints:
	case form.URLListConstraints:
		out = intAttr(out, "minItems", c.MinItems)
		out = intAttr(out, "maxItems", c.MaxItems)
		out = boolAttr(out, "uniqueItems", c.UniqueItems)
	case form.DateConstraints:
		out = append(out, attrsOf("min", c.Min, "max", c.Max)...)
	case form.YearConstraints:
		out = intAttr(out, "min", c.Min)
		out = intAttr(out, "max", c.Max)
	case form.TableConstraints:
		ids := make([]string, len(c.Columns))
		labels := make([]string, len(c.Columns))
		types := make([]string, len(c.Columns))
		customLabels, customTypes := false, false
		for i, col := range c.Columns {
			ids[i], labels[i], types[i] = col.ID, col.Label, string(form.ColumnString)
			if col.Type != "" {
				types[i] = string(col.Type)
			}
			customLabels = customLabels || col.Label != col.ID
			customTypes = customTypes || types[i] != string(form.ColumnString)
		}
		out = append(out, attr{name: "columnIds", val: ids})
		if customLabels {
			out = append(out, attr{name: "columnLabels", val: labels})
		}
		if customTypes {
			out = append(out, attr{name: "columnTypes", val: types})
		}
		out = intAttr(out, "minRows", c.MinRows)
		out = intAttr(out, "maxRows", c.MaxRows)
	default:
		panic(fmt.Sprintf("markup: unhandled constraints %T", c))
	}
	return out
}
