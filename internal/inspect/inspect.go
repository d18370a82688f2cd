// Package inspect computes what is left to do in a form document.
//
// Inspect is a pure function of the document and a role filter: the same
// document state always yields the same ordered issue list.
package inspect

import (
	"fmt"

	"github.com/steveyegge/markform/internal/form"
)

// Scope says what an issue's ref points at.
type Scope string

// Issue scopes
const (
	ScopeField Scope = "field"
	ScopeGroup Scope = "group"
	ScopeForm  Scope = "form"
)

// Severity separates blocking issues from suggestions.
type Severity string

// Severities
const (
	SeverityRequired    Severity = "required"
	SeverityRecommended Severity = "recommended"
)

// ReasonCode classifies an issue.
type ReasonCode string

// Reason codes, listed by priority
const (
	ReasonInvalidValue       ReasonCode = "invalid_value"       // P1
	ReasonRequiredMissing    ReasonCode = "required_missing"    // P2
	ReasonCheckboxIncomplete ReasonCode = "checkbox_incomplete" // P2
	ReasonGroupIncomplete    ReasonCode = "group_incomplete"    // P3
	ReasonOptionalEmpty      ReasonCode = "optional_empty"      // P4
	ReasonOverwritePending   ReasonCode = "overwrite_pending"   // P5, raised by the harness
)

// Priority returns the fixed priority of a reason code (1 is most urgent).
func (r ReasonCode) Priority() int {
	switch r {
	case ReasonInvalidValue:
		return 1
	case ReasonRequiredMissing, ReasonCheckboxIncomplete:
		return 2
	case ReasonGroupIncomplete:
		return 3
	case ReasonOptionalEmpty:
		return 4
	case ReasonOverwritePending:
		return 5
	}
	panic(fmt.Sprintf("inspect: unhandled reason code %q", r))
}

// Issue is one unresolved or invalid field or group.
type Issue struct {
	Ref        string     `json:"ref" yaml:"ref"`
	Scope      Scope      `json:"scope" yaml:"scope"`
	Group      string     `json:"group,omitempty" yaml:"group,omitempty"`
	ReasonCode ReasonCode `json:"reason" yaml:"reason"`
	Message    string     `json:"message" yaml:"message"`
	Priority   int        `json:"priority" yaml:"priority"`
	Severity   Severity   `json:"severity" yaml:"severity"`
}

// FormState summarises the document as a whole.
type FormState string

// Form states
const (
	StateComplete   FormState = "complete"
	StateIncomplete FormState = "incomplete"
	StateEmpty      FormState = "empty"
	StateInvalid    FormState = "invalid"
)

// ProgressSummary counts field states across the whole document.
type ProgressSummary struct {
	TotalFields         int `json:"totalFields" yaml:"totalFields"`
	RequiredFields      int `json:"requiredFields" yaml:"requiredFields"`
	UnansweredFields    int `json:"unansweredFields" yaml:"unansweredFields"`
	AnsweredFields      int `json:"answeredFields" yaml:"answeredFields"`
	SkippedFields       int `json:"skippedFields" yaml:"skippedFields"`
	AbortedFields       int `json:"abortedFields" yaml:"abortedFields"`
	ValidFields         int `json:"validFields" yaml:"validFields"`
	InvalidFields       int `json:"invalidFields" yaml:"invalidFields"`
	FilledFields        int `json:"filledFields" yaml:"filledFields"`
	EmptyFields         int `json:"emptyFields" yaml:"emptyFields"`
	EmptyRequiredFields int `json:"emptyRequiredFields" yaml:"emptyRequiredFields"`
	TotalNotes          int `json:"totalNotes" yaml:"totalNotes"`
}

// ResolvedFields is the number of fields in a terminal state.
func (p ProgressSummary) ResolvedFields() int {
	return p.AnsweredFields + p.SkippedFields + p.AbortedFields
}

// Options filters which fields are inspected.
type Options struct {
	TargetRoles form.RoleSet
}

// Result is the outcome of one inspection.
type Result struct {
	Issues    []Issue         `json:"issues" yaml:"issues"`
	Progress  ProgressSummary `json:"progress" yaml:"progress"`
	FormState FormState       `json:"formState" yaml:"formState"`
}

// RequiredCount returns the number of blocking issues.
func (r Result) RequiredCount() int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == SeverityRequired {
			n++
		}
	}
	return n
}

// Inspect classifies every targeted field and group of doc.
func Inspect(doc *form.Document, opts Options) Result {
	var (
		found   []keyedIssue
		invalid bool
	)
	for gi, g := range doc.Groups {
		targeted, filled := 0, 0
		for _, f := range g.Fields {
			if !opts.TargetRoles.Contains(f.Role) {
				continue
			}
			targeted++
			a := doc.Answer(f.ID)
			if a.Status == form.StatusAnswered {
				filled++
			}
			is, ok := classify(f, a)
			if !ok {
				continue
			}
			is.Group = g.ID
			if is.ReasonCode == ReasonInvalidValue {
				invalid = true
			}
			found = append(found, keyedIssue{Issue: is, group: gi, order: fieldOrder(doc, f.ID)})
		}
		if g.MinFilled != nil && targeted > 0 && filled < *g.MinFilled {
			found = append(found, keyedIssue{
				Issue: Issue{
					Ref:        g.ID,
					Scope:      ScopeGroup,
					Group:      g.ID,
					ReasonCode: ReasonGroupIncomplete,
					Message:    fmt.Sprintf("Group %q needs at least %d filled fields, has %d", groupName(g), *g.MinFilled, filled),
					Priority:   ReasonGroupIncomplete.Priority(),
					Severity:   SeverityRequired,
				},
				group: gi,
				order: -1,
			})
		}
	}

	sortKeyed(found)
	issues := make([]Issue, len(found))
	for i, k := range found {
		issues[i] = k.Issue
	}

	res := Result{Issues: issues, Progress: Progress(doc)}
	res.FormState = formState(res, invalid)
	return res
}

func classify(f *form.Field, a form.Answer) (Issue, bool) {
	is := Issue{Ref: f.ID, Scope: ScopeField}
	switch a.Status {
	case form.StatusSkipped, form.StatusAborted:
		return is, false
	case form.StatusUnanswered:
		if f.Required {
			is.ReasonCode = ReasonRequiredMissing
			is.Severity = SeverityRequired
			is.Message = fmt.Sprintf("Required %s field %q is empty", f.Kind, fieldName(f))
		} else {
			is.ReasonCode = ReasonOptionalEmpty
			is.Severity = SeverityRecommended
			is.Message = fmt.Sprintf("Optional %s field %q is empty", f.Kind, fieldName(f))
		}
	case form.StatusAnswered:
		if vs := form.ValidateValue(f, a.Value); len(vs) > 0 {
			is.ReasonCode = ReasonInvalidValue
			is.Severity = SeverityRequired
			is.Message = fmt.Sprintf("Field %q is invalid: %s", fieldName(f), form.JoinViolations(vs))
			break
		}
		vs := form.Completeness(f, a.Value)
		if len(vs) == 0 {
			return is, false
		}
		is.ReasonCode = ReasonCheckboxIncomplete
		is.Severity = SeverityRequired
		is.Message = fmt.Sprintf("Checkboxes %q are incomplete: %s", fieldName(f), form.JoinViolations(vs))
	default:
		panic(fmt.Sprintf("inspect: unhandled answer status %q", a.Status))
	}
	is.Priority = is.ReasonCode.Priority()
	return is, true
}

func formState(res Result, invalid bool) FormState {
	switch {
	case invalid:
		return StateInvalid
	case res.RequiredCount() == 0:
		return StateComplete
	case res.Progress.ResolvedFields() == 0:
		return StateEmpty
	}
	return StateIncomplete
}

// Progress aggregates answer states over every field of doc.
func Progress(doc *form.Document) ProgressSummary {
	var p ProgressSummary
	for _, f := range doc.Fields() {
		a := doc.Answer(f.ID)
		p.TotalFields++
		if f.Required {
			p.RequiredFields++
		}
		switch a.Status {
		case form.StatusUnanswered:
			p.UnansweredFields++
			p.EmptyFields++
			if f.Required {
				p.EmptyRequiredFields++
			}
		case form.StatusAnswered:
			p.AnsweredFields++
			p.FilledFields++
			if len(form.ValidateValue(f, a.Value)) == 0 {
				p.ValidFields++
			} else {
				p.InvalidFields++
			}
		case form.StatusSkipped:
			p.SkippedFields++
		case form.StatusAborted:
			p.AbortedFields++
		default:
			panic(fmt.Sprintf("inspect: unhandled answer status %q", a.Status))
		}
	}
	p.TotalNotes = len(doc.Notes)
	return p
}

func fieldName(f *form.Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

func groupName(g *form.Group) string {
	if g.Title != "" {
		return g.Title
	}
	return g.ID
}
