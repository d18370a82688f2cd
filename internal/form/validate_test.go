package form

import (
	"strings"
	"testing"
)

func field(id string, kind FieldKind, c Constraints) *Field {
	if c == nil {
		c = DefaultConstraints(kind)
	}
	return &Field{ID: id, Kind: kind, Label: id, Role: DefaultRole, Constraints: c}
}

func TestValidateValue(t *testing.T) {
	opts := []Option{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}}
	tests := []struct {
		name    string
		field   *Field
		value   Value
		wantErr string // substring of the joined message, "" means valid
	}{
		{"string ok", field("s", KindString, StringConstraints{MaxLength: IntPtr(5)}), StringValue("hello"), ""},
		{"string too long", field("s", KindString, StringConstraints{MaxLength: IntPtr(3)}), StringValue("hello"), "at most 3"},
		{"string too short", field("s", KindString, StringConstraints{MinLength: IntPtr(10)}), StringValue("hello"), "at least 10"},
		{"string counts runes", field("s", KindString, StringConstraints{MaxLength: IntPtr(2)}), StringValue("éé"), ""},
		{"string pattern", field("s", KindString, StringConstraints{Pattern: `^[A-Z]+$`}), StringValue("abc"), "does not match"},
		{"number range", field("n", KindNumber, NumberConstraints{Min: FloatPtr(0), Max: FloatPtr(10)}), NumberValue(11), "<= 10"},
		{"number integer", field("n", KindNumber, NumberConstraints{Integer: true}), NumberValue(1.5), "integer"},
		{"number ok", field("n", KindNumber, NumberConstraints{Integer: true, Min: FloatPtr(1)}), NumberValue(3), ""},
		{"list unique", field("l", KindStringList, StringListConstraints{UniqueItems: true}), StringListValue{"x", "x"}, "duplicate"},
		{"list multiline item", field("l", KindStringList, nil), StringListValue{"a\nb"}, "multiple lines"},
		{"list max items", field("l", KindStringList, StringListConstraints{MaxItems: IntPtr(1)}), StringListValue{"a", "b"}, "at most 1"},
		{"list item length", field("l", KindStringList, StringListConstraints{ItemMaxLength: IntPtr(2)}), StringListValue{"abc"}, "longer than 2"},
		{"single select unknown", field("ss", KindSingleSelect, SingleSelectConstraints{Options: opts}), SingleSelectValue("z"), "unknown option"},
		{"single select ok", field("ss", KindSingleSelect, SingleSelectConstraints{Options: opts}), SingleSelectValue("a"), ""},
		{"multi select bounds", field("ms", KindMultiSelect, MultiSelectConstraints{Options: opts, MinSelections: IntPtr(2)}), MultiSelectValue{"a"}, "at least 2"},
		{"checkbox explicit rejects done", field("c", KindCheckboxes, CheckboxesConstraints{Options: opts, Mode: ModeExplicit}), CheckboxesValue{"a": StateDone}, "not valid"},
		{"checkbox multi allows na", field("c", KindCheckboxes, CheckboxesConstraints{Options: opts, Mode: ModeMulti}), CheckboxesValue{"a": StateNA}, ""},
		{"checkbox unknown option", field("c", KindCheckboxes, CheckboxesConstraints{Options: opts, Mode: ModeSimple}), CheckboxesValue{"z": StateDone}, "unknown option"},
		{"url ok", field("u", KindURL, nil), URLValue("https://example.com/x"), ""},
		{"url relative", field("u", KindURL, nil), URLValue("/x"), "absolute"},
		{"url list", field("ul", KindURLList, nil), URLListValue{"https://a.example", "ftp://b"}, "absolute"},
		{"date malformed", field("d", KindDate, nil), DateValue("2024-13-01"), "YYYY-MM-DD"},
		{"date bounds", field("d", KindDate, DateConstraints{Min: "2024-01-01"}), DateValue("2023-12-31"), "before"},
		{"year bounds", field("y", KindYear, YearConstraints{Max: IntPtr(2000)}), YearValue(2001), "above maximum"},
		{"year digits", field("y", KindYear, nil), YearValue(99), "four-digit"},
		{"kind mismatch", field("s", KindString, nil), NumberValue(1), "does not match field kind"},
		{"nil is valid", field("s", KindString, nil), nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JoinViolations(ValidateValue(tt.field, tt.value))
			if tt.wantErr == "" {
				if got != "" {
					t.Fatalf("ValidateValue() = %q, want valid", got)
				}
				return
			}
			if !strings.Contains(got, tt.wantErr) {
				t.Fatalf("ValidateValue() = %q, want substring %q", got, tt.wantErr)
			}
		})
	}
}

func TestValidateTable(t *testing.T) {
	f := field("t", KindTable, TableConstraints{
		Columns: []Column{{ID: "name", Label: "Name", Type: ColumnString}, {ID: "year", Label: "Year", Type: ColumnYear}},
		MaxRows: IntPtr(2),
	})
	if vs := ValidateValue(f, TableValue{{"name": "Ada", "year": "1843"}}); len(vs) != 0 {
		t.Fatalf("valid table rejected: %v", vs)
	}
	vs := ValidateValue(f, TableValue{{"name": "Ada", "year": "soon"}, {"bogus": "x"}, {"name": "c"}})
	msg := JoinViolations(vs)
	for _, want := range []string{"at most 2 rows", `column "year"`, `unknown column "bogus"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("violations %q missing %q", msg, want)
		}
	}
}

func TestCompleteness(t *testing.T) {
	opts := []Option{{ID: "a"}, {ID: "b"}}
	tests := []struct {
		name     string
		mode     CheckboxMode
		required bool
		minDone  *int
		value    CheckboxesValue
		complete bool
	}{
		{"simple all done", ModeSimple, true, nil, CheckboxesValue{"a": StateDone, "b": StateDone}, true},
		{"simple one todo", ModeSimple, true, nil, CheckboxesValue{"a": StateDone, "b": StateTodo}, false},
		{"simple optional", ModeSimple, false, nil, CheckboxesValue{"a": StateDone}, true},
		{"multi na counts", ModeMulti, true, nil, CheckboxesValue{"a": StateDone, "b": StateNA}, true},
		{"multi active pending", ModeMulti, true, nil, CheckboxesValue{"a": StateDone, "b": StateActive}, false},
		{"explicit no counts", ModeExplicit, true, nil, CheckboxesValue{"a": StateYes, "b": StateNo}, true},
		{"explicit missing", ModeExplicit, true, nil, CheckboxesValue{"a": StateYes}, false},
		{"min done met", ModeSimple, true, IntPtr(1), CheckboxesValue{"a": StateDone, "b": StateTodo}, true},
		{"min done unmet", ModeExplicit, false, IntPtr(2), CheckboxesValue{"a": StateYes, "b": StateNo}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := field("c", KindCheckboxes, CheckboxesConstraints{Options: opts, Mode: tt.mode, MinDone: tt.minDone})
			f.Required = tt.required
			got := len(Completeness(f, tt.value)) == 0
			if got != tt.complete {
				t.Fatalf("complete = %v, want %v", got, tt.complete)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	cb := field("c", KindCheckboxes, CheckboxesConstraints{Options: []Option{{ID: "a"}}, Mode: ModeExplicit})
	if got := Normalize(cb, CheckboxesValue{"a": StateUnfilled}); got != nil {
		t.Errorf("all-default checkboxes = %v, want nil", got)
	}
	if got := Normalize(cb, CheckboxesValue{"a": StateYes}); got == nil {
		t.Error("set checkbox normalised away")
	}
	if got := Normalize(field("s", KindString, nil), StringValue("  \n")); got != nil {
		t.Errorf("blank string = %v, want nil", got)
	}
	got := Normalize(field("l", KindStringList, nil), StringListValue{" a ", "", "b"})
	if !ValuesEqual(got, StringListValue{"a", "b"}) {
		t.Errorf("list = %v, want [a b]", got)
	}
	tf := field("t", KindTable, nil)
	if got := Normalize(tf, TableValue{{"x": " "}}); got != nil {
		t.Errorf("blank table = %v, want nil", got)
	}
}

func TestParseText(t *testing.T) {
	v, err := ParseText(KindNumber, " 42.5 ")
	if err != nil || !ValuesEqual(v, NumberValue(42.5)) {
		t.Fatalf("ParseText(number) = %v, %v", v, err)
	}
	if _, err := ParseText(KindYear, "next year"); err == nil {
		t.Error("ParseText(year) accepted a non-integer")
	}
	v, err = ParseText(KindURLList, "https://a.example\n\nhttps://b.example\n")
	if err != nil || !ValuesEqual(v, URLListValue{"https://a.example", "https://b.example"}) {
		t.Fatalf("ParseText(url_list) = %v, %v", v, err)
	}
	if _, err := ParseText(KindTable, "x"); err == nil {
		t.Error("ParseText(table) should fail")
	}
	text, err := FormatText(NumberValue(3))
	if err != nil || text != "3" {
		t.Errorf("FormatText(3) = %q, %v", text, err)
	}
}
