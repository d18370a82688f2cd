package fill

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/patch"
)

// errNoPatches is returned when a model reply holds no JSON payload.
var errNoPatches = errors.New("no patch JSON in reply")

type promptField struct {
	ID       string
	Kind     form.FieldKind
	Op       string
	Label    string
	Required bool
	Role     form.Role
	Status   form.AnswerStatus
	Current  string
	Options  []form.Option
	States   []form.CheckboxState
	Columns  []form.Column
	Limits   string
}

type promptIssue struct {
	Ref      string
	Reason   string
	Priority int
	Severity string
	Message  string
}

type promptRejection struct {
	Op      string
	Target  string
	Reason  string
	Message string
}

type promptData struct {
	Title       string
	Description string
	Turn        int
	MaxPatches  int
	Issues      []promptIssue
	Fields      []promptField
	Rejections  []promptRejection
}

func newPromptTemplate() (*template.Template, error) {
	return template.New("fill").Funcs(template.FuncMap{
		"join": func(states []form.CheckboxState) string {
			parts := make([]string, len(states))
			for i, s := range states {
				parts[i] = string(s)
			}
			return strings.Join(parts, ", ")
		},
	}).Parse(fillPromptTemplate)
}

func buildPromptData(req Request) promptData {
	d := promptData{Turn: req.Turn, MaxPatches: req.MaxPatches}
	if req.Document != nil {
		d.Title = req.Document.Form.Title
		d.Description = req.Document.Form.Description
	}
	for _, is := range req.Issues {
		d.Issues = append(d.Issues, promptIssue{
			Ref:      is.Ref,
			Reason:   string(is.ReasonCode),
			Priority: is.Priority,
			Severity: string(is.Severity),
			Message:  is.Message,
		})
	}
	if req.Document != nil {
		for _, id := range issueFields(req.Issues) {
			f, ok := req.Document.Field(id)
			if !ok {
				continue
			}
			d.Fields = append(d.Fields, describeField(f, req.Document.Answer(id)))
		}
	}
	for _, r := range req.PreviousRejections {
		d.Rejections = append(d.Rejections, promptRejection{
			Op:      r.Patch.Op(),
			Target:  r.Patch.Target(),
			Reason:  string(r.Reason),
			Message: r.Message,
		})
	}
	return d
}

func describeField(f *form.Field, a form.Answer) promptField {
	pf := promptField{
		ID:       f.ID,
		Kind:     f.Kind,
		Op:       patch.SetOp(f.Kind),
		Label:    f.Label,
		Required: f.Required,
		Role:     f.Role,
		Status:   a.Status,
		Options:  f.Options(),
		Columns:  f.Columns(),
	}
	if a.Status == form.StatusAnswered {
		pf.Current = form.FormatValue(a.Value)
	}
	if mode := f.CheckboxMode(); mode != "" {
		pf.States = mode.States()
	}
	pf.Limits = describeLimits(f.Constraints)
	return pf
}

func describeLimits(c form.Constraints) string {
	var parts []string
	add := func(name string, v any) { parts = append(parts, fmt.Sprintf("%s=%v", name, v)) }
	switch c := c.(type) {
	case form.StringConstraints:
		if c.MinLength != nil {
			add("minLength", *c.MinLength)
		}
		if c.MaxLength != nil {
			add("maxLength", *c.MaxLength)
		}
		if c.Pattern != "" {
			add("pattern", c.Pattern)
		}
	case form.NumberConstraints:
		if c.Min != nil {
			add("min", *c.Min)
		}
		if c.Max != nil {
			add("max", *c.Max)
		}
		if c.Integer {
			add("integer", true)
		}
	case form.StringListConstraints:
		if c.MinItems != nil {
			add("minItems", *c.MinItems)
		}
		if c.MaxItems != nil {
			add("maxItems", *c.MaxItems)
		}
	case form.MultiSelectConstraints:
		if c.MinSelections != nil {
			add("minSelections", *c.MinSelections)
		}
		if c.MaxSelections != nil {
			add("maxSelections", *c.MaxSelections)
		}
	case form.CheckboxesConstraints:
		if c.MinDone != nil {
			add("minDone", *c.MinDone)
		}
	case form.URLListConstraints:
		if c.MinItems != nil {
			add("minItems", *c.MinItems)
		}
		if c.MaxItems != nil {
			add("maxItems", *c.MaxItems)
		}
	case form.DateConstraints:
		if c.Min != "" {
			add("min", c.Min)
		}
		if c.Max != "" {
			add("max", c.Max)
		}
	case form.YearConstraints:
		if c.Min != nil {
			add("min", *c.Min)
		}
		if c.Max != nil {
			add("max", *c.Max)
		}
	case form.TableConstraints:
		if c.MinRows != nil {
			add("minRows", *c.MinRows)
		}
		if c.MaxRows != nil {
			add("maxRows", *c.MaxRows)
		}
	}
	return strings.Join(parts, " ")
}

func renderPrompt(tmpl *template.Template, req Request) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, buildPromptData(req)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractPatchJSON pulls the JSON payload out of a model reply: the first
// fenced json block if any, else the outermost array or object.
func extractPatchJSON(reply string) ([]byte, error) {
	if i := strings.Index(reply, "```"); i >= 0 {
		rest := reply[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
			if j := strings.Index(rest, "```"); j >= 0 {
				body := strings.TrimSpace(rest[:j])
				if json.Valid([]byte(body)) {
					return []byte(body), nil
				}
			}
		}
	}
	for _, pair := range [][2]string{{"[", "]"}, {"{", "}"}} {
		start := strings.Index(reply, pair[0])
		end := strings.LastIndex(reply, pair[1])
		if start >= 0 && end > start {
			body := reply[start : end+1]
			if json.Valid([]byte(body)) {
				return []byte(body), nil
			}
		}
	}
	return nil, errNoPatches
}

const fillPromptTemplate = `You are filling in a structured form document. Answer the open issues below by returning patches.

**Form:** {{.Title}}
{{if .Description}}
{{.Description}}
{{end}}
**Turn:** {{.Turn}}

## Open issues (most urgent first)
{{range .Issues}}
- ` + "`{{.Ref}}`" + ` [P{{.Priority}} {{.Severity}} {{.Reason}}] {{.Message}}{{end}}

## Fields
{{range .Fields}}
### ` + "`{{.ID}}`" + ` ({{.Kind}}{{if .Required}}, required{{end}})
Label: {{.Label}}
Status: {{.Status}}{{if .Current}}
Current value: {{.Current}}{{end}}{{if .Limits}}
Constraints: {{.Limits}}{{end}}{{if .Options}}
Options:{{range .Options}}
  - ` + "`{{.ID}}`" + `: {{.Label}}{{end}}{{end}}{{if .States}}
Allowed states: {{join .States}}{{end}}{{if .Columns}}
Columns:{{range .Columns}}
  - ` + "`{{.ID}}`" + ` ({{.Type}}): {{.Label}}{{end}}{{end}}
Set it with op "{{.Op}}".
{{end}}
{{if .Rejections}}## Rejected last turn
{{range .Rejections}}
- {{.Op}} on ` + "`{{.Target}}`" + `: {{.Reason}}: {{.Message}}{{end}}

Do not repeat these mistakes.
{{end}}
## Patch format

Reply with a single JSON array in a ` + "```json" + ` fenced block{{if .MaxPatches}}, at most {{.MaxPatches}} patches{{end}}. Each patch is an object:

- {"op": "set_<kind>", "fieldId": "...", "value": ...}
  string, url, date (YYYY-MM-DD), single_select (option id): a string;
  number, year: a number; string_list, url_list, multi_select: an array of strings;
  checkboxes: an object of option id to state; table: an array of row objects keyed by column id.
- {"op": "skip_field", "fieldId": "...", "reason": "..."} for optional fields you cannot answer.
- {"op": "abort_field", "fieldId": "...", "reason": "..."} when a field cannot be filled at all.
- {"op": "add_note", "ref": "...", "text": "..."} to record an assumption.

Never invent option ids or column ids. Do not include any text outside the JSON block.`
