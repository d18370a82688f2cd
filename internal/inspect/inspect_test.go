package inspect

import (
	"reflect"
	"testing"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/markup"
)

const sampleForm = `{% form id="f" title="Sample" %}

{% group id="one" title="One" %}

{% field kind="string" id="title" label="Title" required=true %}{% /field %}

{% field kind="number" id="age" label="Age" max=120 %}
` + "```value\n200\n```" + `
{% /field %}

{% field kind="string" id="nick" label="Nickname" %}{% /field %}

{% field kind="string" id="email" label="Email" role="user" required=true %}{% /field %}

{% /group %}

{% group id="two" minFilled=2 %}

{% field kind="checkboxes" id="tasks" label="Tasks" required=true %}
- [x] A {% #a %}
- [ ] B {% #b %}
{% /field %}

{% field kind="url" id="site" label="Site" state="skipped" reason="none" %}{% /field %}

{% /group %}

{% /form %}
`

func parse(t *testing.T, text string) *form.Document {
	t.Helper()
	doc, err := markup.Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestInspect_ClassifiesAndOrders(t *testing.T) {
	doc := parse(t, sampleForm)
	res := Inspect(doc, Options{TargetRoles: form.RoleSet{form.RoleAgent}})

	type want struct {
		ref      string
		reason   ReasonCode
		priority int
		severity Severity
	}
	wants := []want{
		{"age", ReasonInvalidValue, 1, SeverityRequired},
		{"title", ReasonRequiredMissing, 2, SeverityRequired},
		{"tasks", ReasonCheckboxIncomplete, 2, SeverityRequired},
		{"two", ReasonGroupIncomplete, 3, SeverityRequired},
		{"nick", ReasonOptionalEmpty, 4, SeverityRecommended},
	}
	if len(res.Issues) != len(wants) {
		t.Fatalf("len(Issues) = %d, want %d: %+v", len(res.Issues), len(wants), res.Issues)
	}
	for i, w := range wants {
		got := res.Issues[i]
		if got.Ref != w.ref || got.ReasonCode != w.reason || got.Priority != w.priority || got.Severity != w.severity {
			t.Errorf("Issues[%d] = %+v, want %+v", i, got, w)
		}
	}
	if res.Issues[3].Scope != ScopeGroup {
		t.Errorf("group issue scope = %q", res.Issues[3].Scope)
	}
	if res.FormState != StateInvalid {
		t.Errorf("FormState = %q, want invalid", res.FormState)
	}
}

func TestInspect_RoleFilter(t *testing.T) {
	doc := parse(t, sampleForm)
	res := Inspect(doc, Options{TargetRoles: form.RoleSet{form.RoleUser}})
	if len(res.Issues) != 1 || res.Issues[0].Ref != "email" {
		t.Fatalf("Issues = %+v, want only email", res.Issues)
	}
	all := Inspect(doc, Options{TargetRoles: form.RoleSet{form.RoleAny}})
	if len(all.Issues) != 6 {
		t.Fatalf("wildcard roles: len(Issues) = %d, want 6", len(all.Issues))
	}
}

func TestInspect_Deterministic(t *testing.T) {
	doc := parse(t, sampleForm)
	opts := Options{TargetRoles: form.RoleSet{form.RoleAny}}
	first := Inspect(doc, opts)
	for i := 0; i < 5; i++ {
		if again := Inspect(doc, opts); !reflect.DeepEqual(first, again) {
			t.Fatalf("inspection %d differs:\n%+v\n%+v", i, first, again)
		}
	}
}

func TestProgress(t *testing.T) {
	doc := parse(t, sampleForm)
	p := Progress(doc)
	want := ProgressSummary{
		TotalFields:         6,
		RequiredFields:      3,
		UnansweredFields:    3,
		AnsweredFields:      2,
		SkippedFields:       1,
		ValidFields:         1,
		InvalidFields:       1,
		FilledFields:        2,
		EmptyFields:         3,
		EmptyRequiredFields: 2,
	}
	if p != want {
		t.Fatalf("Progress = %+v\nwant %+v", p, want)
	}
}

func TestFormState(t *testing.T) {
	const text = `{% form id="f" %}
{% group id="g" %}
{% field kind="string" id="title" required=true %}{% /field %}
{% field kind="string" id="other" %}{% /field %}
{% /group %}
{% /form %}
`
	opts := Options{TargetRoles: form.RoleSet{form.RoleAgent}}
	doc := parse(t, text)
	if got := Inspect(doc, opts).FormState; got != StateEmpty {
		t.Fatalf("FormState = %q, want empty", got)
	}

	doc.SetAnswer("other", form.Answered(form.StringValue("x")))
	if got := Inspect(doc, opts).FormState; got != StateIncomplete {
		t.Fatalf("FormState = %q, want incomplete", got)
	}

	doc.SetAnswer("title", form.Answered(form.StringValue("Report")))
	res := Inspect(doc, opts)
	if res.FormState != StateComplete || len(res.Issues) != 0 {
		t.Fatalf("FormState = %q with %d issues, want complete with none", res.FormState, len(res.Issues))
	}
}

func TestInspect_TitleScenario(t *testing.T) {
	doc := parse(t, `{% form id="f" %}
{% group id="g" %}
{% field kind="string" id="title" label="Title" required=true %}{% /field %}
{% /group %}
{% /form %}
`)
	res := Inspect(doc, Options{TargetRoles: form.RoleSet{form.RoleAny}})
	if len(res.Issues) != 1 || res.Issues[0].Ref != "title" || res.Issues[0].Severity != SeverityRequired {
		t.Fatalf("Issues = %+v, want one required issue for title", res.Issues)
	}
}

func TestSorted(t *testing.T) {
	doc := parse(t, sampleForm)
	in := []Issue{
		{Ref: "nick", Priority: 4},
		{Ref: "two", Priority: 3},
		{Ref: "title", Priority: 2},
		{Ref: "tasks", Priority: 2},
	}
	got := Sorted(doc, in)
	order := []string{got[0].Ref, got[1].Ref, got[2].Ref, got[3].Ref}
	if !reflect.DeepEqual(order, []string{"title", "tasks", "two", "nick"}) {
		t.Fatalf("Sorted order = %v", order)
	}
}
