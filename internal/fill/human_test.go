package fill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/patch"
)

const profileForm = `{% form id="profile" title="Profile" %}
{% group id="g" %}
{% field kind="string" id="name" label="Name" role="user" required=true %}{% /field %}
{% field kind="date" id="start" label="Start" role="user" %}{% /field %}
{% field kind="year" id="grad" label="Graduation" role="user" %}{% /field %}
{% field kind="table" id="jobs" label="Jobs" role="user" columnIds=["org", "year"] columnTypes=["string", "year"] %}{% /field %}
{% field kind="checkboxes" id="consent" label="Consent" role="user" checkboxMode="explicit" %}
- [ ] Email {% #email %}
- [ ] Phone {% #phone %}
{% /field %}
{% field kind="string" id="bio" label="Bio" %}{% /field %}
{% /group %}
{% /form %}
`

var fixedNow = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func field(t *testing.T, doc *form.Document, id string) *form.Field {
	t.Helper()
	f, ok := doc.Field(id)
	require.True(t, ok, "field %q", id)
	return f
}

func TestParseInput(t *testing.T) {
	doc := parse(t, profileForm)
	tests := []struct {
		name    string
		field   string
		text    string
		want    form.Value
		wantErr bool
	}{
		{"iso date", "start", "2024-05-01", form.DateValue("2024-05-01"), false},
		{"compact date", "start", "+2d", form.DateValue("2024-03-06"), false},
		{"natural date", "start", "tomorrow", form.DateValue("2024-03-05"), false},
		{"bad date", "start", "whenever", nil, true},
		{"year", "grad", " 2019 ", form.YearValue(2019), false},
		{"relative year", "grad", "+1y", form.YearValue(2025), false},
		{"bad year", "grad", "soon-ish", nil, true},
		{"table", "jobs", "Acme | 2020\n| Initech | 2022 |", form.TableValue{
			{"org": "Acme", "year": "2020"},
			{"org": "Initech", "year": "2022"},
		}, false},
		{"table too wide", "jobs", "a | b | c", nil, true},
		{"checkboxes", "consent", "email: yes\nphone: no", form.CheckboxesValue{"email": form.StateYes, "phone": form.StateNo}, false},
		{"checkbox bad state", "consent", "email: done", nil, true},
		{"checkbox bad option", "consent", "fax: yes", nil, true},
		{"string", "name", "Ada", form.StringValue("Ada"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInput(field(t, doc, tt.field), tt.text, fixedNow)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseInput(%q) = %v, want error", tt.text, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseInput(%q): %v", tt.text, err)
			}
			if !form.ValuesEqual(got, tt.want) {
				t.Fatalf("parseInput(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestEntry_Patch(t *testing.T) {
	doc := parse(t, profileForm)
	answer := doc.Answer

	name := newEntry(field(t, doc, "name"), inspect.Issue{}, answer("name"), fixedNow)
	p, ok, err := name.patch()
	require.NoError(t, err)
	assert.False(t, ok, "blank required field should send nothing")

	name.text = "Ada"
	p, ok, err = name.patch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, patch.SetValue{FieldID: "name", Value: form.StringValue("Ada")}, p)

	start := newEntry(field(t, doc, "start"), inspect.Issue{}, answer("start"), fixedNow)
	p, ok, err = start.patch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, patch.SkipField{FieldID: "start", Role: form.RoleUser, Reason: blankReason}, p)

	consent := newEntry(field(t, doc, "consent"), inspect.Issue{}, answer("consent"), fixedNow)
	assert.Equal(t, "email: unfilled\nphone: unfilled", consent.text)
	p, ok, err = consent.patch()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, patch.OpSkipField, p.Op(), "untouched checkboxes are blank")

	consent.text = "email: yes\nphone: unfilled"
	p, _, err = consent.patch()
	require.NoError(t, err)
	assert.Equal(t, patch.SetValue{FieldID: "consent", Value: form.CheckboxesValue{"email": form.StateYes, "phone": form.StateUnfilled}}, p)
}

func TestNewEntry_SeedsCurrentValue(t *testing.T) {
	doc := parse(t, profileForm)
	doc.SetAnswer("grad", form.Answered(form.YearValue(2019)))
	doc.SetAnswer("jobs", form.Answered(form.TableValue{{"org": "Acme", "year": "2020"}}))

	assert.Equal(t, "2019", newEntry(field(t, doc, "grad"), inspect.Issue{}, doc.Answer("grad"), fixedNow).text)
	assert.Equal(t, "Acme | 2020", newEntry(field(t, doc, "jobs"), inspect.Issue{}, doc.Answer("jobs"), fixedNow).text)
}

func TestEntry_Validate(t *testing.T) {
	doc := parse(t, profileForm)
	grad := newEntry(field(t, doc, "grad"), inspect.Issue{}, doc.Answer("grad"), fixedNow)

	assert.NoError(t, grad.validate(""))
	assert.NoError(t, grad.validate("2020"))
	assert.Error(t, grad.validate("20"), "two-digit year")
	assert.Error(t, grad.validate("nonsense"))
}

func issuesFor(ids ...string) []inspect.Issue {
	out := make([]inspect.Issue, len(ids))
	for i, id := range ids {
		out[i] = inspect.Issue{Ref: id, Scope: inspect.ScopeField, Message: id + " is empty"}
	}
	return out
}

func TestHumanFiller_OnlyPromptsOwnRole(t *testing.T) {
	h := NewHumanFiller("")
	var prompted bool
	h.run = func(context.Context, *huh.Form) error {
		prompted = true
		return nil
	}

	resp, err := h.GeneratePatches(context.Background(), Request{Document: parse(t, profileForm), Issues: issuesFor("bio")})
	require.NoError(t, err)
	assert.False(t, prompted)
	assert.Empty(t, resp.Patches)
}

func TestHumanFiller_GeneratePatches(t *testing.T) {
	h := NewHumanFiller(form.RoleUser)
	h.now = func() time.Time { return fixedNow }
	h.run = func(context.Context, *huh.Form) error { return nil }

	resp, err := h.GeneratePatches(context.Background(), Request{
		Document: parse(t, profileForm),
		Issues:   issuesFor("name", "start", "bio"),
	})
	require.NoError(t, err)
	// name is required and untouched; start is optional and blank.
	assert.Equal(t, []patch.Patch{
		patch.SkipField{FieldID: "start", Role: form.RoleUser, Reason: blankReason},
	}, resp.Patches)
}

func TestHumanFiller_Aborted(t *testing.T) {
	h := NewHumanFiller(form.RoleUser)
	h.run = func(context.Context, *huh.Form) error { return huh.ErrUserAborted }

	_, err := h.GeneratePatches(context.Background(), Request{Document: parse(t, profileForm), Issues: issuesFor("name")})
	assert.True(t, errors.Is(err, ErrAborted), "err = %v", err)
}
