package markup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/markform/internal/form"
)

type builderState int

const (
	stateBefore builderState = iota
	stateForm
	stateGroup
	stateField
	stateNote
	stateAfter
)

// openField collects a field's marker and content until its close marker.
type openField struct {
	line    int
	attrs   *attrSet
	kind    form.FieldKind
	id      string
	options []token
	value   *fence
	table   []token
}

// builder constructs a Document from the token stream of either tokenizer.
type builder struct {
	state     builderState
	info      form.FormInfo
	formLine  int
	formDesc  []string
	groups    []*form.Group
	group     *form.Group
	groupLn   int
	desc      []string
	field     *openField
	answers   map[string]form.Answer
	notes     []form.Note
	note      *form.Note
	noteLn    int
	noteBody  []string
	noteLines []int
	ids       map[string]int
}

func newBuilder() *builder {
	return &builder{answers: map[string]form.Answer{}, ids: map[string]int{}}
}

func (b *builder) build(toks []token) (*form.Document, error) {
	for _, t := range toks {
		if err := b.consume(t); err != nil {
			return nil, err
		}
	}
	switch b.state {
	case stateBefore:
		return nil, errorf(0, "no form marker found")
	case stateForm:
		return nil, errorf(b.formLine, "form marker is never closed")
	case stateGroup:
		return nil, errorf(b.groupLn, "group %q is never closed", b.group.ID)
	case stateField:
		return nil, errorf(b.field.line, "field %q is never closed", b.field.id)
	case stateNote:
		return nil, errorf(b.noteLn, "note %q is never closed", b.note.ID)
	}

	b.info.Description = joinProse(b.formDesc)
	doc, err := form.NewDocument(b.info, b.groups)
	if err != nil {
		return nil, errorf(0, "%v", err)
	}
	for id, a := range b.answers {
		doc.SetAnswer(id, a)
	}
	for i, n := range b.notes {
		if !doc.HasRef(n.Ref) {
			return nil, errorf(b.noteLines[i], "note %q references unknown id %q", n.ID, n.Ref)
		}
	}
	doc.Notes = b.notes
	return doc, nil
}

func (b *builder) claim(id string, line int) error {
	if prev, ok := b.ids[id]; ok {
		return errorf(line, "duplicate id %q (first used at line %d)", id, prev)
	}
	b.ids[id] = line
	return nil
}

func (b *builder) consume(t token) error {
	switch b.state {
	case stateBefore, stateAfter:
		return b.consumeOutside(t)
	case stateForm, stateGroup:
		return b.consumeContainer(t)
	case stateField:
		return b.consumeField(t)
	case stateNote:
		return b.consumeNote(t)
	}
	panic(fmt.Sprintf("markup: unhandled builder state %d", b.state))
}

func (b *builder) consumeOutside(t token) error {
	if isBlank(t) {
		return nil
	}
	if b.state == stateBefore && t.kind == tokOpen && t.name == "form" {
		a := newAttrSet(t.line, t.attrs)
		id, err := a.requiredStr("id", "form")
		if err != nil {
			return err
		}
		title, err := a.str("title")
		if err != nil {
			return err
		}
		if err := a.unknown("form"); err != nil {
			return err
		}
		if err := b.claim(id, t.line); err != nil {
			return err
		}
		b.info = form.FormInfo{ID: id, Title: title}
		b.formLine = t.line
		b.state = stateForm
		return nil
	}
	if b.state == stateAfter {
		return errorf(t.line, "content after the closing form marker")
	}
	return errorf(t.line, "content before the form marker")
}

func (b *builder) consumeContainer(t token) error {
	switch t.kind {
	case tokText, tokFence:
		if b.state == stateGroup {
			b.desc = append(b.desc, t.text)
		} else {
			b.formDesc = append(b.formDesc, t.text)
		}
		return nil
	case tokOption:
		return errorf(t.line, "option line outside a field")
	case tokClose:
		return b.closeContainer(t)
	}

	switch t.name {
	case "group":
		if b.state == stateGroup {
			return errorf(t.line, "group inside group %q", b.group.ID)
		}
		return b.openGroup(t)
	case "field":
		if b.state != stateGroup {
			return errorf(t.line, "field outside a group")
		}
		return b.openField(t)
	case "note":
		return b.openNote(t)
	case "form":
		return errorf(t.line, "nested form marker")
	}
	return errorf(t.line, "unexpected marker %q", t.name)
}

func (b *builder) closeContainer(t token) error {
	switch {
	case t.name == "group" && b.state == stateGroup:
		b.group.Description = joinProse(b.desc)
		b.groups = append(b.groups, b.group)
		b.group, b.desc = nil, nil
		b.state = stateForm
		return nil
	case t.name == "form" && b.state == stateForm:
		b.state = stateAfter
		return nil
	case t.name == "form":
		return errorf(t.line, "form closed while group %q is open", b.group.ID)
	}
	return errorf(t.line, "unexpected closing %s marker", t.name)
}

func (b *builder) openGroup(t token) error {
	a := newAttrSet(t.line, t.attrs)
	id, err := a.requiredStr("id", "group")
	if err != nil {
		return err
	}
	title, err := a.str("title")
	if err != nil {
		return err
	}
	minFilled, err := a.integer("minFilled")
	if err != nil {
		return err
	}
	if minFilled != nil && *minFilled < 0 {
		return errorf(t.line, "minFilled must not be negative")
	}
	if err := a.unknown("group"); err != nil {
		return err
	}
	if err := b.claim(id, t.line); err != nil {
		return err
	}
	b.group = &form.Group{ID: id, Title: title, MinFilled: minFilled}
	b.groupLn = t.line
	b.state = stateGroup
	return nil
}

func (b *builder) openNote(t token) error {
	a := newAttrSet(t.line, t.attrs)
	id, err := a.requiredStr("id", "note")
	if err != nil {
		return err
	}
	ref, err := a.requiredStr("ref", "note")
	if err != nil {
		return err
	}
	role, err := a.str("role")
	if err != nil {
		return err
	}
	if err := a.unknown("note"); err != nil {
		return err
	}
	for _, n := range b.notes {
		if n.ID == id {
			return errorf(t.line, "duplicate note id %q", id)
		}
	}
	b.note = &form.Note{ID: id, Ref: ref, Role: form.Role(role)}
	b.noteLn = t.line
	b.noteBody = nil
	b.state = stateNote
	return nil
}

func (b *builder) consumeNote(t token) error {
	switch t.kind {
	case tokText, tokFence:
		b.noteBody = append(b.noteBody, t.text)
		return nil
	case tokClose:
		if t.name != "note" {
			return errorf(t.line, "unexpected closing %s marker inside note %q", t.name, b.note.ID)
		}
		b.note.Text = joinProse(b.noteBody)
		b.notes = append(b.notes, *b.note)
		b.noteLines = append(b.noteLines, b.noteLn)
		b.note = nil
		if b.group != nil {
			b.state = stateGroup
		} else {
			b.state = stateForm
		}
		return nil
	}
	return errorf(t.line, "markers are not allowed inside note %q", b.note.ID)
}

func (b *builder) openField(t token) error {
	a := newAttrSet(t.line, t.attrs)
	kind, err := a.requiredStr("kind", "field")
	if err != nil {
		return err
	}
	if !form.FieldKind(kind).IsValid() {
		return errorf(t.line, "unknown field kind %q", kind)
	}
	id, err := a.requiredStr("id", "field")
	if err != nil {
		return err
	}
	if err := b.claim(id, t.line); err != nil {
		return err
	}
	b.field = &openField{line: t.line, attrs: a, kind: form.FieldKind(kind), id: id}
	b.state = stateField
	return nil
}

func (b *builder) consumeField(t token) error {
	f := b.field
	switch t.kind {
	case tokText:
		switch {
		case strings.TrimSpace(t.text) == "":
			return nil
		case strings.HasPrefix(strings.TrimSpace(t.text), "|") && f.kind == form.KindTable:
			f.table = append(f.table, t)
			return nil
		}
		return errorf(t.line, "unexpected content in field %q", f.id)
	case tokFence:
		if strings.TrimSpace(t.fence.info) != "value" {
			return errorf(t.line, "field %q: only a value fence is allowed, got %q", f.id, t.fence.info)
		}
		if f.value != nil {
			return errorf(t.line, "field %q has more than one value fence", f.id)
		}
		f.value = t.fence
		return nil
	case tokOption:
		f.options = append(f.options, t)
		return nil
	case tokClose:
		if t.name != "field" {
			return errorf(t.line, "unexpected closing %s marker inside field %q", t.name, f.id)
		}
		return b.closeField()
	}
	return errorf(t.line, "marker %q inside field %q", t.name, f.id)
}

func (b *builder) closeField() error {
	of := b.field
	a := of.attrs
	label, err := a.str("label")
	if err != nil {
		return err
	}
	required, err := a.boolean("required")
	if err != nil {
		return err
	}
	role, err := a.str("role")
	if err != nil {
		return err
	}
	if role == "" {
		role = string(form.DefaultRole)
	}
	c, err := b.constraints(of)
	if err != nil {
		return err
	}
	answer, err := b.stateAttrs(a)
	if err != nil {
		return err
	}
	if err := a.unknown(string(of.kind) + " field " + of.id); err != nil {
		return err
	}

	f := &form.Field{ID: of.id, Kind: of.kind, Label: label, Required: required, Role: form.Role(role), Constraints: c}
	value, err := b.value(f, of)
	if err != nil {
		return err
	}
	if value != nil {
		if answer.Status.IsTerminal() {
			return errorf(of.line, "field %q is %s but carries a value", f.ID, answer.Status)
		}
		answer = form.Answered(value)
	}
	if !answer.Status.IsTerminal() {
		answer = form.Unanswered()
	}

	b.group.Fields = append(b.group.Fields, f)
	b.answers[f.ID] = answer
	b.field = nil
	b.state = stateGroup
	return nil
}

// stateAttrs reads the skipped/aborted annotation of a field.
func (b *builder) stateAttrs(a *attrSet) (form.Answer, error) {
	state, err := a.str("state")
	if err != nil {
		return form.Answer{}, err
	}
	reason, err := a.str("reason")
	if err != nil {
		return form.Answer{}, err
	}
	by, err := a.str("by")
	if err != nil {
		return form.Answer{}, err
	}
	switch form.AnswerStatus(state) {
	case "":
		if reason != "" || by != "" {
			return form.Answer{}, errorf(a.line, "reason and by require a state attribute")
		}
		return form.Unanswered(), nil
	case form.StatusSkipped:
		return form.Skipped(reason, form.Role(by)), nil
	case form.StatusAborted:
		if by != "" {
			return form.Answer{}, errorf(a.line, "by is only valid on skipped fields")
		}
		return form.Aborted(reason), nil
	}
	return form.Answer{}, errorf(a.line, "unknown field state %q", state)
}

func (b *builder) constraints(of *openField) (form.Constraints, error) {
	a := of.attrs
	var err error
	ints := func(names ...string) []*int {
		out := make([]*int, len(names))
		for i, n := range names {
			if err != nil {
				return out
			}
			out[i], err = a.integer(n)
			if err == nil && out[i] != nil && *out[i] < 0 {
				err = errorf(a.line, "%s must not be negative", n)
			}
		}
		return out
	}
	flag := func(name string) bool {
		if err != nil {
			return false
		}
		var v bool
		v, err = a.boolean(name)
		return v
	}
	if of.kind != form.KindSingleSelect && of.kind != form.KindMultiSelect && of.kind != form.KindCheckboxes && len(of.options) > 0 {
		return nil, errorf(of.options[0].line, "%s field %q cannot have options", of.kind, of.id)
	}
	if of.kind != form.KindTable && len(of.table) > 0 {
		return nil, errorf(of.table[0].line, "unexpected table in %s field %q", of.kind, of.id)
	}

	var c form.Constraints
	switch of.kind {
	case form.KindString:
		bounds := ints("minLength", "maxLength")
		var pattern string
		if err == nil {
			pattern, err = a.str("pattern")
		}
		if err == nil && pattern != "" {
			if perr := form.CompilePattern(pattern); perr != nil {
				err = errorf(a.line, "invalid pattern: %v", perr)
			}
		}
		c = form.StringConstraints{MinLength: bounds[0], MaxLength: bounds[1], Pattern: pattern}
	case form.KindNumber:
		nc := form.NumberConstraints{}
		if nc.Min, err = a.number("min"); err == nil {
			if nc.Max, err = a.number("max"); err == nil {
				nc.Integer = flag("integer")
			}
		}
		c = nc
	case form.KindStringList:
		bounds := ints("minItems", "maxItems", "itemMinLength", "itemMaxLength")
		c = form.StringListConstraints{MinItems: bounds[0], MaxItems: bounds[1], ItemMinLength: bounds[2],
			ItemMaxLength: bounds[3], UniqueItems: flag("uniqueItems")}
	case form.KindSingleSelect:
		opts, oerr := optionList(of)
		err = oerr
		c = form.SingleSelectConstraints{Options: opts}
	case form.KindMultiSelect:
		opts, oerr := optionList(of)
		err = oerr
		bounds := ints("minSelections", "maxSelections")
		c = form.MultiSelectConstraints{Options: opts, MinSelections: bounds[0], MaxSelections: bounds[1]}
	case form.KindCheckboxes:
		opts, oerr := optionList(of)
		err = oerr
		var mode string
		if err == nil {
			mode, err = a.str("checkboxMode")
		}
		if mode == "" {
			mode = string(form.ModeSimple)
		}
		if err == nil && !form.CheckboxMode(mode).IsValid() {
			err = errorf(a.line, "unknown checkboxMode %q", mode)
		}
		minDone := ints("minDone")
		c = form.CheckboxesConstraints{Options: opts, Mode: form.CheckboxMode(mode), MinDone: minDone[0]}
	case form.KindURL:
		c = form.URLConstraints{}
	case form.KindURLList:
		bounds := ints("minItems", "maxItems")
		c = form.URLListConstraints{MinItems: bounds[0], MaxItems: bounds[1], UniqueItems: flag("uniqueItems")}
	case form.KindDate:
		dc := form.DateConstraints{}
		if dc.Min, err = a.str("min"); err == nil {
			dc.Max, err = a.str("max")
		}
		for _, bound := range []string{dc.Min, dc.Max} {
			if err == nil && bound != "" {
				if derr := form.CheckDate(bound); derr != nil {
					err = errorf(a.line, "date bound: %v", derr)
				}
			}
		}
		c = dc
	case form.KindYear:
		bounds := ints("min", "max")
		c = form.YearConstraints{Min: bounds[0], Max: bounds[1]}
	case form.KindTable:
		var tc form.TableConstraints
		tc, err = tableConstraints(a)
		if err == nil {
			bounds := ints("minRows", "maxRows")
			tc.MinRows, tc.MaxRows = bounds[0], bounds[1]
		}
		c = tc
	default:
		panic(fmt.Sprintf("markup: unhandled field kind %q", of.kind))
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func optionList(of *openField) ([]form.Option, error) {
	if len(of.options) == 0 {
		return nil, errorf(of.line, "%s field %q has no options", of.kind, of.id)
	}
	seen := map[string]bool{}
	opts := make([]form.Option, 0, len(of.options))
	for _, t := range of.options {
		if seen[t.id] {
			return nil, errorf(t.line, "duplicate option id %q in field %q", t.id, of.id)
		}
		seen[t.id] = true
		opts = append(opts, form.Option{ID: t.id, Label: t.label})
	}
	return opts, nil
}

func tableConstraints(a *attrSet) (form.TableConstraints, error) {
	ids, err := a.list("columnIds")
	if err != nil {
		return form.TableConstraints{}, err
	}
	if len(ids) == 0 {
		return form.TableConstraints{}, errorf(a.line, "table field requires columnIds")
	}
	labels, err := a.list("columnLabels")
	if err != nil {
		return form.TableConstraints{}, err
	}
	types, err := a.list("columnTypes")
	if err != nil {
		return form.TableConstraints{}, err
	}
	if labels != nil && len(labels) != len(ids) {
		return form.TableConstraints{}, errorf(a.line, "columnLabels has %d entries, want %d", len(labels), len(ids))
	}
	if types != nil && len(types) != len(ids) {
		return form.TableConstraints{}, errorf(a.line, "columnTypes has %d entries, want %d", len(types), len(ids))
	}
	seen := map[string]bool{}
	cols := make([]form.Column, len(ids))
	for i, id := range ids {
		if id == "" || seen[id] {
			return form.TableConstraints{}, errorf(a.line, "column id %q is empty or repeated", id)
		}
		seen[id] = true
		col := form.Column{ID: id, Label: id, Type: form.ColumnString}
		if labels != nil {
			col.Label = labels[i]
		}
		if types != nil {
			col.Type = form.ColumnType(types[i])
			if !col.Type.IsValid() {
				return form.TableConstraints{}, errorf(a.line, "unknown column type %q", types[i])
			}
		}
		cols[i] = col
	}
	return form.TableConstraints{Columns: cols}, nil
}

// value decodes the field's content into a normalised value, or nil.
func (b *builder) value(f *form.Field, of *openField) (form.Value, error) {
	if of.value != nil {
		switch f.Kind {
		case form.KindSingleSelect, form.KindMultiSelect, form.KindCheckboxes, form.KindTable:
			return nil, errorf(of.line, "%s field %q cannot have a value fence", f.Kind, f.ID)
		}
	}

	var v form.Value
	switch f.Kind {
	case form.KindString, form.KindNumber, form.KindStringList, form.KindURL, form.KindURLList,
		form.KindDate, form.KindYear:
		if of.value == nil {
			return nil, nil
		}
		if strings.TrimSpace(of.value.body) == "" {
			return nil, nil
		}
		parsed, err := form.ParseText(f.Kind, of.value.body)
		if err != nil {
			return nil, errorf(of.line, "field %q: value cannot be read as %s: %v", f.ID, f.Kind, err)
		}
		v = parsed
	case form.KindSingleSelect:
		var picked []string
		for _, o := range of.options {
			switch o.mark {
			case ' ':
			case 'x', 'X':
				picked = append(picked, o.id)
			default:
				return nil, errorf(o.line, "marker [%c] is not valid in single_select field %q", o.mark, f.ID)
			}
		}
		if len(picked) > 1 {
			return nil, errorf(of.line, "single_select field %q has %d selected options", f.ID, len(picked))
		}
		if len(picked) == 1 {
			v = form.SingleSelectValue(picked[0])
		}
	case form.KindMultiSelect:
		var picked form.MultiSelectValue
		for _, o := range of.options {
			switch o.mark {
			case ' ':
			case 'x', 'X':
				picked = append(picked, o.id)
			default:
				return nil, errorf(o.line, "marker [%c] is not valid in multi_select field %q", o.mark, f.ID)
			}
		}
		if len(picked) > 0 {
			v = picked
		}
	case form.KindCheckboxes:
		mode := f.CheckboxMode()
		states := make(form.CheckboxesValue, len(of.options))
		for _, o := range of.options {
			s, ok := stateForMarker(mode, o.mark)
			if !ok {
				return nil, errorf(o.line, "marker [%c] is not valid in %s mode (field %q)", o.mark, mode, f.ID)
			}
			states[o.id] = s
		}
		v = states
	case form.KindTable:
		rows, err := parseTable(f, of.table)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			v = rows
		}
	default:
		panic(fmt.Sprintf("markup: unhandled field kind %q", f.Kind))
	}
	return form.Normalize(f, v), nil
}

var checkboxMarkers = map[byte]form.CheckboxState{
	'x': form.StateDone,
	'X': form.StateDone,
	'*': form.StateActive,
	'/': form.StateIncomplete,
	'-': form.StateNA,
	'y': form.StateYes,
	'n': form.StateNo,
}

func stateForMarker(mode form.CheckboxMode, mark byte) (form.CheckboxState, bool) {
	if mark == ' ' {
		return mode.DefaultState(), true
	}
	s, ok := checkboxMarkers[mark]
	if !ok || !mode.Allows(s) {
		return "", false
	}
	return s, true
}

func markerForState(s form.CheckboxState) byte {
	switch s {
	case form.StateTodo, form.StateUnfilled:
		return ' '
	case form.StateDone:
		return 'x'
	case form.StateActive:
		return '*'
	case form.StateIncomplete:
		return '/'
	case form.StateNA:
		return '-'
	case form.StateYes:
		return 'y'
	case form.StateNo:
		return 'n'
	}
	panic(fmt.Sprintf("markup: unhandled checkbox state %q", s))
}

var tableSepRe = regexp.MustCompile(`^\|?(\s*:?-{3,}:?\s*\|)*\s*:?-{3,}:?\s*\|?$`)

func parseTable(f *form.Field, lines []token) (form.TableValue, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	cols := f.Columns()
	header := splitRow(lines[0].text)
	if len(header) != len(cols) {
		return nil, errorf(lines[0].line, "table %q header has %d columns, want %d", f.ID, len(header), len(cols))
	}
	for i, h := range header {
		if h != cols[i].Label {
			return nil, errorf(lines[0].line, "table %q column %d is %q, want %q", f.ID, i+1, h, cols[i].Label)
		}
	}
	if len(lines) < 2 || !tableSepRe.MatchString(strings.TrimSpace(lines[1].text)) {
		return nil, errorf(lines[0].line, "table %q is missing its separator row", f.ID)
	}
	var rows form.TableValue
	for _, t := range lines[2:] {
		cells := splitRow(t.text)
		if len(cells) != len(cols) {
			return nil, errorf(t.line, "table %q row has %d cells, want %d", f.ID, len(cells), len(cols))
		}
		row := make(form.TableRow, len(cols))
		for i, cell := range cells {
			row[cols[i].ID] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// splitRow splits a pipe table row on unescaped pipes.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	if strings.HasSuffix(line, "|") && !strings.HasSuffix(line, `\|`) {
		line = line[:len(line)-1]
	}
	var cells []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == '|':
			cur.WriteByte('|')
			i++
		case line[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func isBlank(t token) bool {
	return t.kind == tokText && strings.TrimSpace(t.text) == ""
}

// joinProse joins collected description lines, dropping blank edges.
func joinProse(lines []string) string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
