package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/inspect"
)

// maxMessageWidth caps issue messages in the terminal report.
const maxMessageWidth = 100

// RenderFormState renders a form state with its semantic color.
func RenderFormState(s inspect.FormState) string {
	switch s {
	case inspect.StateComplete:
		return RenderPass(string(s))
	case inspect.StateInvalid:
		return RenderFail(string(s))
	case inspect.StateEmpty:
		return RenderMuted(string(s))
	}
	return RenderWarn(string(s))
}

func severityIcon(is inspect.Issue) string {
	switch {
	case is.ReasonCode == inspect.ReasonInvalidValue:
		return RenderFailIcon()
	case is.Severity == inspect.SeverityRequired:
		return RenderWarnIcon()
	}
	return RenderInfoIcon()
}

// RenderIssues renders one line per issue, grouped under priority headers.
func RenderIssues(issues []inspect.Issue) string {
	if len(issues) == 0 {
		return RenderPassIcon() + " No issues\n"
	}
	var b strings.Builder
	prio := 0
	for _, is := range issues {
		if is.Priority != prio {
			prio = is.Priority
			fmt.Fprintf(&b, "%s\n", RenderCategory(fmt.Sprintf("P%d", prio)))
		}
		msg := FirstLine(is.Message, maxMessageWidth)
		fmt.Fprintf(&b, "%s%s %s %s\n", TreeIndent, severityIcon(is), RenderAccent(is.Ref), msg)
		fmt.Fprintf(&b, "%s%s%s\n", TreeIndent, TreeIndent+TreeLast, RenderMuted(string(is.ReasonCode)+", "+string(is.Severity)))
	}
	return b.String()
}

// RenderProgress renders the progress summary as a short block.
func RenderProgress(p inspect.ProgressSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", RenderCategory("Progress"))
	fmt.Fprintf(&b, "%sfields:   %d total, %d required\n", TreeIndent, p.TotalFields, p.RequiredFields)
	fmt.Fprintf(&b, "%sanswered: %d (%d valid, %d invalid)\n", TreeIndent, p.AnsweredFields, p.ValidFields, p.InvalidFields)
	fmt.Fprintf(&b, "%sskipped:  %d, aborted: %d\n", TreeIndent, p.SkippedFields, p.AbortedFields)
	fmt.Fprintf(&b, "%sempty:    %d (%d required)\n", TreeIndent, p.EmptyFields, p.EmptyRequiredFields)
	if p.TotalNotes > 0 {
		fmt.Fprintf(&b, "%snotes:    %d\n", TreeIndent, p.TotalNotes)
	}
	return b.String()
}

// RenderInspection renders a full inspect result for people.
func RenderInspection(res inspect.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Form state: %s\n\n", RenderFormState(res.FormState))
	b.WriteString(RenderIssues(res.Issues))
	b.WriteString("\n")
	b.WriteString(RenderProgress(res.Progress))
	return b.String()
}

// FormMarkdown renders a plain markdown view of doc: headings for the form
// and groups, one bullet per field with its answer, then notes.
func FormMarkdown(doc *form.Document) string {
	var b strings.Builder
	title := doc.Form.Title
	if title == "" {
		title = doc.Form.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if doc.Form.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", doc.Form.Description)
	}
	for _, g := range doc.Groups {
		heading := g.Title
		if heading == "" {
			heading = g.ID
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)
		if g.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", g.Description)
		}
		for _, f := range g.Fields {
			b.WriteString(fieldMarkdown(f, doc.Answer(f.ID)))
		}
		b.WriteString("\n")
	}
	if len(doc.Notes) > 0 {
		b.WriteString("## Notes\n\n")
		for _, n := range doc.Notes {
			fmt.Fprintf(&b, "- **%s** (%s, on `%s`): %s\n", n.ID, n.Role, n.Ref, Indent(n.Text, "  "))
		}
	}
	return b.String()
}

func fieldMarkdown(f *form.Field, a form.Answer) string {
	label := f.Label
	if label == "" {
		label = f.ID
	}
	if f.Required {
		label += " *"
	}
	switch a.Status {
	case form.StatusUnanswered:
		return fmt.Sprintf("- **%s**: _empty_\n", label)
	case form.StatusSkipped:
		return fmt.Sprintf("- **%s**: _skipped_ %s\n", label, a.Reason)
	case form.StatusAborted:
		return fmt.Sprintf("- **%s**: _aborted_ %s\n", label, a.Reason)
	}

	switch v := a.Value.(type) {
	case form.CheckboxesValue:
		var b strings.Builder
		fmt.Fprintf(&b, "- **%s**:\n", label)
		for _, o := range f.Options() {
			state, ok := v[o.ID]
			if !ok {
				state = f.CheckboxMode().DefaultState()
			}
			fmt.Fprintf(&b, "  - %s: %s\n", o.Label, state)
		}
		return b.String()
	case form.TableValue:
		return fmt.Sprintf("- **%s**:\n\n%s\n", label, tableMarkdown(f, v))
	case form.SingleSelectValue:
		return fmt.Sprintf("- **%s**: %s\n", label, optionLabel(f, string(v)))
	case form.MultiSelectValue:
		labels := make([]string, len(v))
		for i, id := range v {
			labels[i] = optionLabel(f, id)
		}
		return fmt.Sprintf("- **%s**: %s\n", label, strings.Join(labels, ", "))
	}
	return fmt.Sprintf("- **%s**: %s\n", label, Indent(form.FormatValue(a.Value), "  "))
}

func optionLabel(f *form.Field, id string) string {
	for _, o := range f.Options() {
		if o.ID == id {
			return o.Label
		}
	}
	return id
}

func tableMarkdown(f *form.Field, rows form.TableValue) string {
	cols := f.Columns()
	if len(cols) == 0 {
		seen := map[string]bool{}
		for _, r := range rows {
			for k := range r {
				seen[k] = true
			}
		}
		for k := range seen {
			cols = append(cols, form.Column{ID: k, Label: k})
		}
		sort.Slice(cols, func(i, j int) bool { return cols[i].ID < cols[j].ID })
	}
	var b strings.Builder
	b.WriteString("|")
	for _, c := range cols {
		label := c.Label
		if label == "" {
			label = c.ID
		}
		b.WriteString(" " + label + " |")
	}
	b.WriteString("\n|")
	for range cols {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString("|")
		for _, c := range cols {
			b.WriteString(" " + strings.ReplaceAll(r[c.ID], "|", `\|`) + " |")
		}
		b.WriteString("\n")
	}
	return b.String()
}
