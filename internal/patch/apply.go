package patch

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/markup"
)

// Apply validates and applies patches to doc in order, mutating it in place
// for accepted patches only. currentIssues are the issues the patches were
// produced against; in continue mode a resolved field may still be corrected
// while it has an outstanding issue.
func Apply(doc *form.Document, patches []Patch, currentIssues []inspect.Issue, opts Options) Result {
	if opts.FillMode == "" {
		opts.FillMode = FillContinue
	}
	open := make(map[string]bool, len(currentIssues))
	for _, is := range currentIssues {
		open[is.Ref] = true
	}
	e := &engine{doc: doc, opts: opts, open: open}

	var res Result
	for i, p := range patches {
		if reason, msg := e.apply(p); reason != "" {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Patch: p, Reason: reason, Message: msg})
			continue
		}
		res.Accepted = append(res.Accepted, p)
	}
	return res
}

type engine struct {
	doc  *form.Document
	opts Options
	open map[string]bool
}

func (e *engine) apply(p Patch) (RejectReason, string) {
	switch p := p.(type) {
	case SetValue:
		return e.setValue(p)
	case ClearField:
		f, reason, msg := e.target(p.FieldID, false)
		if reason != "" {
			return reason, msg
		}
		e.doc.SetAnswer(f.ID, form.Unanswered())
		return "", ""
	case SkipField:
		f, reason, msg := e.target(p.FieldID, true)
		if reason != "" {
			return reason, msg
		}
		if f.Required {
			return RejectConstraintViolation, fmt.Sprintf("field %q is required and cannot be skipped; use abort_field", f.ID)
		}
		e.doc.SetAnswer(f.ID, form.Skipped(strings.TrimSpace(p.Reason), p.Role))
		return "", ""
	case AbortField:
		f, reason, msg := e.target(p.FieldID, true)
		if reason != "" {
			return reason, msg
		}
		e.doc.SetAnswer(f.ID, form.Aborted(strings.TrimSpace(p.Reason)))
		return "", ""
	case AddNote:
		return e.addNote(p)
	case RemoveNote:
		i := e.doc.NoteIndex(p.NoteID)
		if i < 0 {
			return RejectUnknownNote, fmt.Sprintf("no note with id %q", p.NoteID)
		}
		e.doc.Notes = append(e.doc.Notes[:i:i], e.doc.Notes[i+1:]...)
		return "", ""
	case Malformed:
		return p.Reason, p.Err.Error()
	}
	panic(fmt.Sprintf("patch: unhandled patch type %T", p))
}

// target resolves a field and runs the role and fill-mode checks. correctable
// lets a resolved field with an outstanding issue through in continue mode.
func (e *engine) target(id string, correctable bool) (*form.Field, RejectReason, string) {
	f, ok := e.doc.Field(id)
	if !ok {
		return nil, RejectUnknownField, fmt.Sprintf("no field with id %q", id)
	}
	if !e.opts.TargetRoles.Contains(f.Role) {
		return nil, RejectRoleMismatch, fmt.Sprintf("field %q belongs to role %q, not %v", id, f.Role, e.opts.TargetRoles)
	}
	if e.opts.FillMode == FillContinue {
		a := e.doc.Answer(id)
		if a.Status.IsTerminal() && !(correctable && e.open[id]) {
			return nil, RejectAlreadyResolved, fmt.Sprintf("field %q is already %s", id, a.Status)
		}
	}
	return f, "", ""
}

func (e *engine) setValue(p SetValue) (RejectReason, string) {
	f, ok := e.doc.Field(p.FieldID)
	if !ok {
		return RejectUnknownField, fmt.Sprintf("no field with id %q", p.FieldID)
	}
	correctable := p.Value != nil && !form.IsEmptyValue(f, p.Value)
	if _, reason, msg := e.target(p.FieldID, correctable); reason != "" {
		return reason, msg
	}
	if p.Value == nil {
		return RejectConstraintViolation, fmt.Sprintf("set on field %q carries no value", f.ID)
	}
	if p.Value.Kind() != f.Kind {
		return RejectKindMismatch, fmt.Sprintf("%s cannot target %s field %q; use %s", p.Op(), f.Kind, f.ID, SetOp(f.Kind))
	}

	v := form.CloneValue(p.Value)
	if cv, ok := v.(form.CheckboxesValue); ok {
		v = e.mergeCheckboxes(f, cv)
	}
	if vs := form.ValidateValue(f, v); len(vs) > 0 {
		return RejectConstraintViolation, form.JoinViolations(vs)
	}
	v = form.Normalize(f, v)
	if v == nil {
		e.doc.SetAnswer(f.ID, form.Unanswered())
		return "", ""
	}
	if vs := form.ValidateValue(f, v); len(vs) > 0 {
		return RejectConstraintViolation, form.JoinViolations(vs)
	}
	if rows, ok := v.(form.TableValue); ok {
		if msg := checkCells(rows); msg != "" {
			return RejectConstraintViolation, msg
		}
	}
	e.doc.SetAnswer(f.ID, form.Answered(v))
	return "", ""
}

// checkCells rejects table cells that would read back as markers, since
// cells are written unfenced on a single line.
func checkCells(rows form.TableValue) string {
	for i, row := range rows {
		for _, col := range slices.Sorted(maps.Keys(row)) {
			if err := markup.CheckInline(row[col]); err != nil {
				return fmt.Sprintf("row %d: column %q: %v", i+1, col, err)
			}
		}
	}
	return ""
}

// mergeCheckboxes overlays a partial state map on the field's current states,
// with every option present in the result.
func (e *engine) mergeCheckboxes(f *form.Field, patch form.CheckboxesValue) form.CheckboxesValue {
	merged := make(form.CheckboxesValue, len(f.Options()))
	def := f.CheckboxMode().DefaultState()
	current, _ := e.doc.Answer(f.ID).Value.(form.CheckboxesValue)
	for _, o := range f.Options() {
		merged[o.ID] = def
		if s, ok := current[o.ID]; ok {
			merged[o.ID] = s
		}
	}
	for id, s := range patch {
		merged[id] = s
	}
	return merged
}

func (e *engine) addNote(p AddNote) (RejectReason, string) {
	if !e.doc.HasRef(p.Ref) {
		return RejectUnknownField, fmt.Sprintf("note ref %q names no form, group or field", p.Ref)
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return RejectConstraintViolation, "note text is empty"
	}
	if err := markup.CheckProse(text); err != nil {
		return RejectConstraintViolation, fmt.Sprintf("note text rejected: %v", err)
	}
	e.doc.Notes = append(e.doc.Notes, form.Note{
		ID:   e.doc.NextNoteID(),
		Ref:  p.Ref,
		Role: p.Role,
		Text: text,
	})
	return "", ""
}
