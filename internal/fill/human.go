package fill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/patch"
	"github.com/steveyegge/markform/internal/timeparsing"
)

// blankReason is recorded when a person leaves an optional field empty.
const blankReason = "left blank"

// HumanFiller prompts a person in the terminal for the fields of one role.
// Issues for fields of other roles are ignored. Leaving an optional field
// blank skips it; a required field left blank is simply not patched.
type HumanFiller struct {
	role form.Role
	now  func() time.Time
	run  func(ctx context.Context, f *huh.Form) error
}

// NewHumanFiller returns a filler for fields owned by role, or form.RoleUser
// when role is empty.
func NewHumanFiller(role form.Role) *HumanFiller {
	if role == "" {
		role = form.RoleUser
	}
	return &HumanFiller{
		role: role,
		now:  time.Now,
		run: func(ctx context.Context, f *huh.Form) error {
			return f.RunWithContext(ctx)
		},
	}
}

// GeneratePatches implements Filler.
func (h *HumanFiller) GeneratePatches(ctx context.Context, req Request) (Response, error) {
	entries := h.entries(req)
	if len(entries) == 0 {
		return Response{}, nil
	}

	groups := make([]*huh.Group, len(entries))
	for i, e := range entries {
		groups[i] = huh.NewGroup(e.input()).
			Title(fmt.Sprintf("%s (%d/%d)", req.Document.Form.Title, i+1, len(entries)))
	}
	f := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if err := h.run(ctx, f); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return Response{}, ErrAborted
		}
		return Response{}, fmt.Errorf("fill: form error: %w", err)
	}

	var out []patch.Patch
	for _, e := range entries {
		if req.MaxPatches > 0 && len(out) >= req.MaxPatches {
			break
		}
		p, ok, err := e.patch()
		if err != nil {
			return Response{}, fmt.Errorf("fill: %s: %w", e.field.ID, err)
		}
		if ok {
			out = append(out, p)
		}
	}
	return Response{Patches: out, Stats: Stats{Attempts: 1}}, nil
}

func (h *HumanFiller) entries(req Request) []*entry {
	if req.Document == nil {
		return nil
	}
	byRef := make(map[string]inspect.Issue, len(req.Issues))
	for _, is := range req.Issues {
		if _, ok := byRef[is.Ref]; !ok {
			byRef[is.Ref] = is
		}
	}
	var out []*entry
	for _, id := range issueFields(req.Issues) {
		f, ok := req.Document.Field(id)
		if !ok || f.Role != h.role {
			continue
		}
		out = append(out, newEntry(f, byRef[id], req.Document.Answer(id), h.now()))
	}
	return out
}

// entry binds one field to the value its prompt edits.
type entry struct {
	field   *form.Field
	issue   inspect.Issue
	now     time.Time
	text    string
	choice  string
	choices []string
}

func newEntry(f *form.Field, is inspect.Issue, a form.Answer, now time.Time) *entry {
	e := &entry{field: f, issue: is, now: now}
	cur := a.Value
	if a.Status != form.StatusAnswered {
		cur = nil
	}
	switch v := cur.(type) {
	case form.SingleSelectValue:
		e.choice = string(v)
	case form.MultiSelectValue:
		e.choices = append([]string(nil), v...)
	case form.TableValue:
		e.text = formatTableText(f, v)
	case form.CheckboxesValue, nil:
	default:
		e.text, _ = form.FormatText(v)
	}
	if f.Kind == form.KindCheckboxes {
		checks, _ := cur.(form.CheckboxesValue)
		e.text = formatCheckboxText(f, checks)
	}
	return e
}

func (e *entry) title() string {
	label := e.field.Label
	if label == "" {
		label = e.field.ID
	}
	if e.field.Required {
		label += " *"
	}
	return label
}

func (e *entry) input() huh.Field {
	f := e.field
	desc := e.issue.Message
	switch f.Kind {
	case form.KindSingleSelect:
		opts := selectOptions(f)
		if !f.Required {
			opts = append(opts, huh.NewOption("(skip)", ""))
		}
		return huh.NewSelect[string]().Title(e.title()).Description(desc).Options(opts...).Value(&e.choice)
	case form.KindMultiSelect:
		return huh.NewMultiSelect[string]().Title(e.title()).Description(desc).Options(selectOptions(f)...).Value(&e.choices)
	case form.KindString, form.KindStringList, form.KindURLList, form.KindTable, form.KindCheckboxes:
		hint := desc
		switch f.Kind {
		case form.KindCheckboxes:
			hint += "\nOne line per option, \"id: state\". States: " + statesList(f.CheckboxMode())
		case form.KindStringList, form.KindURLList:
			hint += "\nOne item per line."
		case form.KindTable:
			hint += "\nOne row per line, cells separated by |: " + columnList(f)
		}
		return huh.NewText().Title(e.title()).Description(hint).Value(&e.text).Validate(e.validate)
	case form.KindDate:
		desc += "\nYYYY-MM-DD, an offset like \"+2w\", or a phrase like \"next friday\"."
	case form.KindYear:
		desc += "\nA four-digit year, \"+1y\", or \"next year\"."
	}
	return huh.NewInput().Title(e.title()).Description(desc).Value(&e.text).Validate(e.validate)
}

func (e *entry) validate(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v, err := parseInput(e.field, s, e.now)
	if err != nil {
		return err
	}
	return violationsError(form.ValidateValue(e.field, v))
}

// patch converts the collected input. ok is false when nothing should be
// sent for the field.
func (e *entry) patch() (patch.Patch, bool, error) {
	f := e.field
	var v form.Value
	switch f.Kind {
	case form.KindSingleSelect:
		if e.choice != "" {
			v = form.SingleSelectValue(e.choice)
		}
	case form.KindMultiSelect:
		if len(e.choices) > 0 {
			v = form.MultiSelectValue(e.choices)
		}
	case form.KindCheckboxes:
		checks, err := parseCheckboxText(f, e.text)
		if err != nil {
			return nil, false, err
		}
		v = form.Normalize(f, checks)
	default:
		if strings.TrimSpace(e.text) != "" {
			parsed, err := parseInput(f, e.text, e.now)
			if err != nil {
				return nil, false, err
			}
			v = parsed
		}
	}

	if v == nil {
		if f.Required {
			return nil, false, nil
		}
		return patch.SkipField{FieldID: f.ID, Role: f.Role, Reason: blankReason}, true, nil
	}
	return patch.SetValue{FieldID: f.ID, Value: v}, true, nil
}

func violationsError(vs []form.Violation) error {
	if len(vs) == 0 {
		return nil
	}
	return errors.New(form.JoinViolations(vs))
}

// parseInput converts free text typed for f into a value. Dates and years
// also accept natural language relative to now.
func parseInput(f *form.Field, text string, now time.Time) (form.Value, error) {
	text = strings.TrimSpace(text)
	switch f.Kind {
	case form.KindDate:
		t, err := timeparsing.ParseDate(text, now)
		if err != nil {
			return nil, err
		}
		return form.DateValue(t.Format(form.DateLayout)), nil
	case form.KindYear:
		y, err := timeparsing.ParseYear(text, now)
		if err != nil {
			return nil, err
		}
		return form.YearValue(y), nil
	case form.KindTable:
		return parseTableText(f, text)
	case form.KindCheckboxes:
		return parseCheckboxText(f, text)
	}
	return form.ParseText(f.Kind, text)
}

func parseTableText(f *form.Field, text string) (form.TableValue, error) {
	cols := f.Columns()
	var rows form.TableValue
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
		cells := strings.Split(line, "|")
		if len(cells) > len(cols) {
			return nil, fmt.Errorf("row %d has %d cells, the table has %d columns", n+1, len(cells), len(cols))
		}
		row := make(form.TableRow, len(cells))
		for i, c := range cells {
			if c = strings.TrimSpace(c); c != "" {
				row[cols[i].ID] = c
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatTableText(f *form.Field, rows form.TableValue) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(f.Columns()))
		for j, c := range f.Columns() {
			cells[j] = r[c.ID]
		}
		lines[i] = strings.Join(cells, " | ")
	}
	return strings.Join(lines, "\n")
}

func formatCheckboxText(f *form.Field, checks form.CheckboxesValue) string {
	mode := f.CheckboxMode()
	lines := make([]string, 0, len(f.Options()))
	for _, o := range f.Options() {
		st, ok := checks[o.ID]
		if !ok {
			st = mode.DefaultState()
		}
		lines = append(lines, o.ID+": "+string(st))
	}
	return strings.Join(lines, "\n")
}

func parseCheckboxText(f *form.Field, text string) (form.CheckboxesValue, error) {
	mode := f.CheckboxMode()
	out := form.CheckboxesValue{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, state, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%q: want \"option: state\"", line)
		}
		id, state = strings.TrimSpace(id), strings.TrimSpace(state)
		if !f.HasOption(id) {
			return nil, fmt.Errorf("unknown option %q", id)
		}
		s := form.CheckboxState(state)
		if !mode.Allows(s) {
			return nil, fmt.Errorf("state %q is not allowed in %s mode", state, mode)
		}
		out[id] = s
	}
	return out, nil
}

func selectOptions(f *form.Field) []huh.Option[string] {
	var opts []huh.Option[string]
	for _, o := range f.Options() {
		opts = append(opts, huh.NewOption(o.Label, o.ID))
	}
	return opts
}

func statesList(mode form.CheckboxMode) string {
	var parts []string
	for _, s := range mode.States() {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ", ")
}

func columnList(f *form.Field) string {
	var parts []string
	for _, c := range f.Columns() {
		parts = append(parts, c.ID)
	}
	return strings.Join(parts, " | ")
}
