package patch

import (
	"errors"
	"testing"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/markup"
)

const testForm = `{% form id="f" title="Test" %}

{% group id="g" %}

{% field kind="string" id="title" label="Title" required=true %}{% /field %}

{% field kind="number" id="age" label="Age" max=120 %}
` + "```value\n200\n```" + `
{% /field %}

{% field kind="string_list" id="tags" label="Tags" %}{% /field %}

{% field kind="checkboxes" id="tasks" label="Tasks" %}
- [ ] A {% #a %}
- [ ] B {% #b %}
{% /field %}

{% field kind="checkboxes" id="confirm" label="Confirm" checkboxMode="explicit" %}
- [ ] Tested {% #tested %}
{% /field %}

{% field kind="string" id="email" label="Email" role="user" %}{% /field %}

{% field kind="string" id="done" label="Done" %}
` + "```value\nyes\n```" + `
{% /field %}

{% /group %}

{% /form %}
`

var agentOnly = Options{FillMode: FillContinue, TargetRoles: form.RoleSet{form.RoleAgent}}

func parse(t *testing.T) *form.Document {
	t.Helper()
	doc, err := markup.Parse(testForm)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func rejectedFor(t *testing.T, res Result, want RejectReason) {
	t.Helper()
	if len(res.Accepted) != 0 || len(res.Rejected) != 1 {
		t.Fatalf("Result = %+v, want one rejection", res)
	}
	if got := res.Rejected[0].Reason; got != want {
		t.Fatalf("Reason = %q, want %q (%s)", got, want, res.Rejected[0].Message)
	}
}

func TestApply_TitleScenario(t *testing.T) {
	doc := parse(t)
	res := Apply(doc, []Patch{SetValue{FieldID: "title", Value: form.StringValue("Report")}}, nil, agentOnly)
	if len(res.Accepted) != 1 || len(res.Rejected) != 0 {
		t.Fatalf("Result = %+v, want one accepted", res)
	}
	a := doc.Answer("title")
	if a.Status != form.StatusAnswered || a.Value != form.StringValue("Report") {
		t.Fatalf("Answer(title) = %+v", a)
	}
	for _, is := range inspect.Inspect(doc, inspect.Options{TargetRoles: agentOnly.TargetRoles}).Issues {
		if is.Ref == "title" {
			t.Fatalf("title still has issue %+v", is)
		}
	}
}

func TestApply_CheckboxFilledFields(t *testing.T) {
	doc := parse(t)
	before := inspect.Progress(doc).FilledFields

	res := Apply(doc, []Patch{SetValue{FieldID: "tasks", Value: form.CheckboxesValue{"a": form.StateDone}}}, nil, agentOnly)
	if len(res.Rejected) != 0 {
		t.Fatalf("Rejected = %+v", res.Rejected)
	}
	got, ok := doc.Answer("tasks").Value.(form.CheckboxesValue)
	if !ok {
		t.Fatalf("Answer(tasks).Value = %T", doc.Answer("tasks").Value)
	}
	if got["a"] != form.StateDone || got["b"] != form.StateTodo {
		t.Fatalf("tasks = %v, want a=done b=todo", got)
	}
	if after := inspect.Progress(doc).FilledFields; after != before+1 {
		t.Fatalf("FilledFields = %d, want %d", after, before+1)
	}
}

func TestApply_CheckboxMergeKeepsEarlierStates(t *testing.T) {
	doc := parse(t)
	opts := Options{FillMode: FillOverwrite, TargetRoles: form.RoleSet{form.RoleAgent}}
	Apply(doc, []Patch{SetValue{FieldID: "tasks", Value: form.CheckboxesValue{"a": form.StateDone}}}, nil, opts)
	Apply(doc, []Patch{SetValue{FieldID: "tasks", Value: form.CheckboxesValue{"b": form.StateDone}}}, nil, opts)

	got := doc.Answer("tasks").Value.(form.CheckboxesValue)
	if got["a"] != form.StateDone || got["b"] != form.StateDone {
		t.Fatalf("tasks = %v, want both done", got)
	}
}

func TestApply_KindMismatchLeavesDocument(t *testing.T) {
	doc := parse(t)
	before := doc.Clone()
	res := Apply(doc, []Patch{SetValue{FieldID: "tags", Value: form.NumberValue(3)}}, nil, agentOnly)
	rejectedFor(t, res, RejectKindMismatch)
	if !doc.Equal(before) {
		t.Fatal("document changed after a rejected patch")
	}
}

func TestApply_ExplicitCheckboxRejectsDone(t *testing.T) {
	doc := parse(t)
	before := doc.Clone()
	res := Apply(doc, []Patch{SetValue{FieldID: "confirm", Value: form.CheckboxesValue{"tested": form.StateDone}}}, nil, agentOnly)
	rejectedFor(t, res, RejectConstraintViolation)
	if !doc.Equal(before) {
		t.Fatal("document changed after a rejected patch")
	}

	res = Apply(doc, []Patch{SetValue{FieldID: "confirm", Value: form.CheckboxesValue{"tested": form.StateYes}}}, nil, agentOnly)
	if len(res.Rejected) != 0 {
		t.Fatalf("yes rejected: %+v", res.Rejected)
	}
}

func TestApply_FillModes(t *testing.T) {
	tests := []struct {
		name   string
		patch  Patch
		mode   FillMode
		issues []inspect.Issue
		want   RejectReason
	}{
		{"continue set on answered", SetValue{FieldID: "done", Value: form.StringValue("no")}, FillContinue, nil, RejectAlreadyResolved},
		{"continue clear on answered", ClearField{FieldID: "done"}, FillContinue, nil, RejectAlreadyResolved},
		{"continue empty set on answered", SetValue{FieldID: "done", Value: form.StringValue(" ")}, FillContinue, nil, RejectAlreadyResolved},
		{"continue clear with open issue", ClearField{FieldID: "age"}, FillContinue, []inspect.Issue{{Ref: "age"}}, RejectAlreadyResolved},
		{"continue correction with open issue", SetValue{FieldID: "age", Value: form.NumberValue(42)}, FillContinue, []inspect.Issue{{Ref: "age"}}, ""},
		{"continue correction out of range", SetValue{FieldID: "age", Value: form.NumberValue(500)}, FillContinue, []inspect.Issue{{Ref: "age"}}, RejectConstraintViolation},
		{"overwrite set on answered", SetValue{FieldID: "done", Value: form.StringValue("no")}, FillOverwrite, nil, ""},
		{"overwrite clear", ClearField{FieldID: "done"}, FillOverwrite, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t)
			res := Apply(doc, []Patch{tt.patch}, tt.issues, Options{FillMode: tt.mode, TargetRoles: form.RoleSet{form.RoleAgent}})
			if tt.want == "" {
				if len(res.Rejected) != 0 {
					t.Fatalf("Rejected = %+v, want none", res.Rejected)
				}
				return
			}
			rejectedFor(t, res, tt.want)
		})
	}
}

func TestApply_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		want  RejectReason
	}{
		{"unknown field", SetValue{FieldID: "nope", Value: form.StringValue("x")}, RejectUnknownField},
		{"unknown clear", ClearField{FieldID: "nope"}, RejectUnknownField},
		{"unknown note", RemoveNote{NoteID: "n9"}, RejectUnknownNote},
		{"note on unknown ref", AddNote{Ref: "nope", Text: "hi"}, RejectUnknownField},
		{"role mismatch", SetValue{FieldID: "email", Value: form.StringValue("a@b.c")}, RejectRoleMismatch},
		{"skip required", SkipField{FieldID: "title", Reason: "n/a"}, RejectConstraintViolation},
		{"empty note", AddNote{Ref: "title", Text: "  "}, RejectConstraintViolation},
		{"note with markers", AddNote{Ref: "title", Text: "see {% field %}"}, RejectConstraintViolation},
		{"note with fence", AddNote{Ref: "title", Text: "```go\nx\n```"}, RejectConstraintViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t)
			before := doc.Clone()
			rejectedFor(t, Apply(doc, []Patch{tt.patch}, nil, agentOnly), tt.want)
			if !doc.Equal(before) {
				t.Fatal("document changed after a rejected patch")
			}
		})
	}
}

func TestApply_ConstraintViolationOnTag(t *testing.T) {
	doc := parse(t)
	res := Apply(doc, []Patch{SetValue{FieldID: "tags", Value: form.StringListValue{"a\nb"}}}, nil, agentOnly)
	rejectedFor(t, res, RejectConstraintViolation)
}

func TestApply_TableCellsStayParseable(t *testing.T) {
	const tableForm = `{% form id="f" %}
{% group id="g" %}
{% field kind="table" id="t" label="T" columnIds=["a"] %}{% /field %}
{% /group %}
{% /form %}
`
	tests := []struct {
		name string
		cell string
		want RejectReason
	}{
		{"open tag", "use {% raw", RejectConstraintViolation},
		{"option tag", "pick {% #x %}", RejectConstraintViolation},
		{"option comment", "x <!-- #y -->", RejectConstraintViolation},
		{"closing comment", "<!-- /field -->", RejectConstraintViolation},
		{"pipe and prose comment", "a | b <!-- note to self -->", ""},
	}
	for _, style := range []form.Syntax{form.SyntaxTags, form.SyntaxComments} {
		for _, tt := range tests {
			t.Run(string(style)+"/"+tt.name, func(t *testing.T) {
				doc, err := markup.Parse(markup.SerializeAs(mustParseText(t, tableForm), style))
				if err != nil {
					t.Fatalf("Parse failed: %v", err)
				}
				res := Apply(doc, []Patch{SetValue{FieldID: "t", Value: form.TableValue{{"a": tt.cell}}}}, nil, agentOnly)
				if tt.want != "" {
					rejectedFor(t, res, tt.want)
					return
				}
				if len(res.Rejected) != 0 {
					t.Fatalf("Rejected = %+v", res.Rejected)
				}
				out := markup.Serialize(doc)
				back, err := markup.Parse(out)
				if err != nil {
					t.Fatalf("accepted cell did not parse back: %v\n%s", err, out)
				}
				if !back.Equal(doc) {
					t.Fatalf("table did not round trip\n%s", out)
				}
			})
		}
	}
}

func mustParseText(t *testing.T, text string) *form.Document {
	t.Helper()
	doc, err := markup.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestApply_SkipAndAbort(t *testing.T) {
	doc := parse(t)
	res := Apply(doc, []Patch{
		SkipField{FieldID: "tags", Role: form.RoleAgent, Reason: " not relevant "},
		AbortField{FieldID: "title", Reason: "unknown"},
	}, nil, agentOnly)
	if len(res.Accepted) != 2 {
		t.Fatalf("Result = %+v, want both accepted", res)
	}
	if a := doc.Answer("tags"); a.Status != form.StatusSkipped || a.Reason != "not relevant" || a.By != form.RoleAgent {
		t.Fatalf("Answer(tags) = %+v", a)
	}
	if a := doc.Answer("title"); a.Status != form.StatusAborted {
		t.Fatalf("Answer(title) = %+v", a)
	}
}

func TestApply_Notes(t *testing.T) {
	doc := parse(t)
	res := Apply(doc, []Patch{
		AddNote{Ref: "title", Role: form.RoleAgent, Text: "first"},
		AddNote{Ref: "g", Role: form.RoleAgent, Text: "second"},
		RemoveNote{NoteID: "n1"},
	}, nil, agentOnly)
	if len(res.Rejected) != 0 {
		t.Fatalf("Rejected = %+v", res.Rejected)
	}
	if len(doc.Notes) != 1 || doc.Notes[0].ID != "n2" || doc.Notes[0].Ref != "g" {
		t.Fatalf("Notes = %+v, want only n2 on g", doc.Notes)
	}
}

func TestApply_OrderWithinBatch(t *testing.T) {
	doc := parse(t)
	res := Apply(doc, []Patch{
		SetValue{FieldID: "title", Value: form.StringValue("A")},
		SetValue{FieldID: "title", Value: form.StringValue("B")},
	}, nil, agentOnly)
	if len(res.Accepted) != 1 || len(res.Rejected) != 1 || res.Rejected[0].Index != 1 {
		t.Fatalf("Result = %+v, want second patch rejected", res)
	}
	if got := doc.Answer("title").Value; got != form.StringValue("A") {
		t.Fatalf("title = %v, want A", got)
	}
}

func TestApply_EmptySetClears(t *testing.T) {
	doc := parse(t)
	opts := Options{FillMode: FillOverwrite, TargetRoles: form.RoleSet{form.RoleAgent}}
	Apply(doc, []Patch{SetValue{FieldID: "done", Value: form.StringValue("")}}, nil, opts)
	if a := doc.Answer("done"); a.Status != form.StatusUnanswered {
		t.Fatalf("Answer(done) = %+v, want unanswered", a)
	}
}

func TestRejectAll(t *testing.T) {
	res := RejectAll([]Patch{ClearField{FieldID: "a"}, ClearField{FieldID: "b"}}, RejectTooManyPatches, "too many")
	if len(res.Accepted) != 0 || len(res.Rejected) != 2 || res.Rejected[1].Index != 1 {
		t.Fatalf("RejectAll = %+v", res)
	}
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"json array", `[{"op":"set_string","fieldId":"title","value":"Report"},{"op":"set_year","fieldId":"fy","value":2024}]`},
		{"json envelope", `{"patches":[{"op":"set_string","fieldId":"title","value":"Report"},{"op":"set_year","fieldId":"fy","value":2024.0}]}`},
		{"yaml", "- op: set_string\n  fieldId: title\n  value: Report\n- op: set_year\n  fieldId: fy\n  value: 2024\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeList([]byte(tt.in))
			if err != nil {
				t.Fatalf("DecodeList failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("len = %d, want 2", len(got))
			}
			if p, ok := got[0].(SetValue); !ok || p.FieldID != "title" || p.Value != form.StringValue("Report") {
				t.Fatalf("patch 0 = %#v", got[0])
			}
			if p, ok := got[1].(SetValue); !ok || p.Value != form.YearValue(2024) {
				t.Fatalf("patch 1 = %#v", got[1])
			}
		})
	}
}

func TestDecode_Values(t *testing.T) {
	ps, err := DecodeList([]byte(`[` +
		`{"op":"set_checkboxes","fieldId":"tasks","value":{"a":"done"}},` +
		`{"op":"set_table","fieldId":"t","value":[{"name":"x","n":2}]},` +
		`{"op":"set_multi_select","fieldId":"m","value":["a","b"]},` +
		`{"op":"skip_field","fieldId":"tags"},` +
		`{"op":"add_note","ref":"title","text":"hi"}]`))
	if err != nil {
		t.Fatalf("DecodeList failed: %v", err)
	}
	cb := ps[0].(SetValue).Value.(form.CheckboxesValue)
	if cb["a"] != form.StateDone {
		t.Errorf("checkboxes = %v", cb)
	}
	tbl := ps[1].(SetValue).Value.(form.TableValue)
	if len(tbl) != 1 || tbl[0]["name"] != "x" || tbl[0]["n"] != "2" {
		t.Errorf("table = %v", tbl)
	}
	if ms := ps[2].(SetValue).Value.(form.MultiSelectValue); len(ms) != 2 {
		t.Errorf("multi_select = %v", ms)
	}
	if sk := ps[3].(SkipField); sk.Role != form.DefaultRole {
		t.Errorf("skip role = %q, want default", sk.Role)
	}
	if n := ps[4].(AddNote); n.Ref != "title" || n.Text != "hi" {
		t.Errorf("note = %+v", n)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []string{
		`[{"op":"set_colour","fieldId":"x","value":"red"}]`,
		`[{"op":"set_string","value":"x"}]`,
		`[{"op":"set_number","fieldId":"x","value":"many"}]`,
		`[{"op":"set_year","fieldId":"x","value":2024.5}]`,
		`[{"op":"set_string_list","fieldId":"x","value":[1,2]}]`,
		`[{"op":"remove_note"}]`,
		`"just a string"`,
	}
	for _, in := range tests {
		if _, err := DecodeList([]byte(in)); !errors.Is(err, ErrInvalidPatch) {
			t.Errorf("DecodeList(%s) error = %v, want ErrInvalidPatch", in, err)
		}
	}
}

func TestDecodeBatch_KeepsGoodPatches(t *testing.T) {
	in := `[
		{"op":"set_string","fieldId":"title","value":"Report"},
		{"op":"set_number","fieldId":"age","value":"many"},
		"not an object",
		{"op":"set_colour","fieldId":"tags","value":"red"},
		{"op":"set_string_list","fieldId":"tags","value":["a"]}
	]`
	ps, err := DecodeBatch([]byte(in))
	if err != nil {
		t.Fatalf("DecodeBatch failed: %v", err)
	}
	if len(ps) != 5 {
		t.Fatalf("len = %d, want 5", len(ps))
	}
	wantReasons := map[int]RejectReason{1: RejectKindMismatch, 2: RejectConstraintViolation, 3: RejectConstraintViolation}
	for i, want := range wantReasons {
		m, ok := ps[i].(Malformed)
		if !ok {
			t.Fatalf("patch %d = %#v, want Malformed", i, ps[i])
		}
		if m.Reason != want || !errors.Is(m.Err, ErrInvalidPatch) {
			t.Errorf("patch %d = %+v, want reason %q", i, m, want)
		}
	}
	if got := ps[1].Target(); got != "age" {
		t.Errorf("Target = %q, want age", got)
	}

	doc := parse(t)
	res := Apply(doc, ps, nil, agentOnly)
	if len(res.Accepted) != 2 || len(res.Rejected) != 3 {
		t.Fatalf("Result = %+v, want 2 accepted and 3 rejected", res)
	}
	for i, r := range res.Rejected {
		if want := i + 1; r.Index != want || r.Reason != wantReasons[want] {
			t.Errorf("rejection %d = %+v", i, r)
		}
	}
	if got := doc.Answer("title").Value; got != form.StringValue("Report") {
		t.Errorf("title = %v, want Report", got)
	}
	if w := Encode(ps[1]); w.Op != "set_number" || w.FieldID != "age" {
		t.Errorf("Encode(malformed) = %+v", w)
	}

	if _, err := DecodeBatch([]byte(`"just a string"`)); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("DecodeBatch(string) error = %v, want ErrInvalidPatch", err)
	}
	if _, err := DecodeList([]byte(in)); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("DecodeList error = %v, want ErrInvalidPatch", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	in := []Patch{
		SetValue{FieldID: "title", Value: form.StringValue("Report")},
		SetValue{FieldID: "tags", Value: form.StringListValue{"a", "b"}},
		ClearField{FieldID: "age"},
		AbortField{FieldID: "x", Reason: "why"},
		RemoveNote{NoteID: "n1"},
	}
	for i, w := range EncodeList(in) {
		got, err := Decode(w)
		if err != nil {
			t.Fatalf("Decode(%+v) failed: %v", w, err)
		}
		if got.Op() != in[i].Op() || got.Target() != in[i].Target() {
			t.Errorf("patch %d = %#v, want %#v", i, got, in[i])
		}
	}
}
