package patch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/markform/internal/form"
)

// ErrInvalidPatch is returned when a wire patch cannot be decoded.
var ErrInvalidPatch = errors.New("invalid patch")

// Wire is the JSON/YAML form of a patch: {op, fieldId, value, ...}.
type Wire struct {
	Op      string `json:"op" yaml:"op"`
	FieldID string `json:"fieldId,omitempty" yaml:"fieldId,omitempty"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	Ref     string `json:"ref,omitempty" yaml:"ref,omitempty"`
	NoteID  string `json:"noteId,omitempty" yaml:"noteId,omitempty"`
	Role    string `json:"role,omitempty" yaml:"role,omitempty"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Text    string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Encode converts a patch to its wire form.
func Encode(p Patch) Wire {
	switch p := p.(type) {
	case SetValue:
		return Wire{Op: p.Op(), FieldID: p.FieldID, Value: encodeValue(p.Value)}
	case ClearField:
		return Wire{Op: OpClearField, FieldID: p.FieldID}
	case SkipField:
		return Wire{Op: OpSkipField, FieldID: p.FieldID, Role: string(p.Role), Reason: p.Reason}
	case AbortField:
		return Wire{Op: OpAbortField, FieldID: p.FieldID, Reason: p.Reason}
	case AddNote:
		return Wire{Op: OpAddNote, Ref: p.Ref, Role: string(p.Role), Text: p.Text}
	case RemoveNote:
		return Wire{Op: OpRemoveNote, NoteID: p.NoteID}
	case Malformed:
		return p.Wire
	}
	panic(fmt.Sprintf("patch: unhandled patch type %T", p))
}

// EncodeList converts a batch to wire form.
func EncodeList(patches []Patch) []Wire {
	out := make([]Wire, len(patches))
	for i, p := range patches {
		out[i] = Encode(p)
	}
	return out
}

func encodeValue(v form.Value) any {
	switch v := v.(type) {
	case nil:
		return nil
	case form.StringValue:
		return string(v)
	case form.NumberValue:
		return float64(v)
	case form.StringListValue:
		return []string(v)
	case form.SingleSelectValue:
		return string(v)
	case form.MultiSelectValue:
		return []string(v)
	case form.CheckboxesValue:
		out := make(map[string]string, len(v))
		for id, s := range v {
			out[id] = string(s)
		}
		return out
	case form.URLValue:
		return string(v)
	case form.URLListValue:
		return []string(v)
	case form.DateValue:
		return string(v)
	case form.YearValue:
		return int(v)
	case form.TableValue:
		rows := make([]map[string]string, len(v))
		for i, r := range v {
			rows[i] = map[string]string(r)
		}
		return rows
	}
	panic(fmt.Sprintf("patch: unhandled value type %T", v))
}

// Decode converts a wire patch into a typed one. Values may come from
// encoding/json or yaml.v3, so numbers arrive as float64 or int.
func Decode(w Wire) (Patch, error) {
	switch w.Op {
	case OpClearField:
		if w.FieldID == "" {
			return nil, fmt.Errorf("%w: %s without fieldId", ErrInvalidPatch, w.Op)
		}
		return ClearField{FieldID: w.FieldID}, nil
	case OpSkipField:
		if w.FieldID == "" {
			return nil, fmt.Errorf("%w: %s without fieldId", ErrInvalidPatch, w.Op)
		}
		return SkipField{FieldID: w.FieldID, Role: roleOrDefault(w.Role), Reason: w.Reason}, nil
	case OpAbortField:
		if w.FieldID == "" {
			return nil, fmt.Errorf("%w: %s without fieldId", ErrInvalidPatch, w.Op)
		}
		return AbortField{FieldID: w.FieldID, Reason: w.Reason}, nil
	case OpAddNote:
		if w.Ref == "" {
			return nil, fmt.Errorf("%w: %s without ref", ErrInvalidPatch, w.Op)
		}
		return AddNote{Ref: w.Ref, Role: roleOrDefault(w.Role), Text: w.Text}, nil
	case OpRemoveNote:
		if w.NoteID == "" {
			return nil, fmt.Errorf("%w: %s without noteId", ErrInvalidPatch, w.Op)
		}
		return RemoveNote{NoteID: w.NoteID}, nil
	}

	kind, ok := strings.CutPrefix(w.Op, "set_")
	if !ok || !form.FieldKind(kind).IsValid() {
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidPatch, w.Op)
	}
	if w.FieldID == "" {
		return nil, fmt.Errorf("%w: %s without fieldId", ErrInvalidPatch, w.Op)
	}
	v, err := decodeValue(form.FieldKind(kind), w.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %q: %v", ErrInvalidPatch, w.Op, w.FieldID, err)
	}
	return SetValue{FieldID: w.FieldID, Value: v}, nil
}

func roleOrDefault(r string) form.Role {
	if r == "" {
		return form.DefaultRole
	}
	return form.Role(r)
}

func decodeValue(kind form.FieldKind, raw any) (form.Value, error) {
	switch kind {
	case form.KindString:
		s, err := asString(raw)
		return form.StringValue(s), err
	case form.KindNumber:
		n, err := asNumber(raw)
		return form.NumberValue(n), err
	case form.KindStringList:
		items, err := asStrings(raw)
		return form.StringListValue(items), err
	case form.KindSingleSelect:
		s, err := asString(raw)
		return form.SingleSelectValue(s), err
	case form.KindMultiSelect:
		items, err := asStrings(raw)
		return form.MultiSelectValue(items), err
	case form.KindCheckboxes:
		m, err := asStringMap(raw)
		if err != nil {
			return nil, err
		}
		out := make(form.CheckboxesValue, len(m))
		for id, s := range m {
			out[id] = form.CheckboxState(s)
		}
		return out, nil
	case form.KindURL:
		s, err := asString(raw)
		return form.URLValue(s), err
	case form.KindURLList:
		items, err := asStrings(raw)
		return form.URLListValue(items), err
	case form.KindDate:
		s, err := asString(raw)
		return form.DateValue(s), err
	case form.KindYear:
		n, err := asNumber(raw)
		if err != nil {
			return nil, err
		}
		if n != math.Trunc(n) {
			return nil, fmt.Errorf("year %v is not a whole number", n)
		}
		return form.YearValue(int(n)), nil
	case form.KindTable:
		return asTable(raw)
	}
	panic(fmt.Sprintf("patch: unhandled field kind %q", kind))
}

func asString(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	}
	return "", fmt.Errorf("want a string, got %T", raw)
}

func asNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("want a number, got %T", raw)
}

func asStrings(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d: want a string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("want a list of strings, got %T", raw)
}

func asStringMap(raw any) (map[string]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("key %q: want a string, got %T", k, item)
			}
			out[k] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("want an object of strings, got %T", raw)
}

func asTable(raw any) (form.Value, error) {
	var rows []any
	switch v := raw.(type) {
	case nil:
		return form.TableValue(nil), nil
	case []map[string]string:
		out := make(form.TableValue, len(v))
		for i, r := range v {
			out[i] = form.TableRow(r)
		}
		return out, nil
	case []any:
		rows = v
	default:
		return nil, fmt.Errorf("want a list of rows, got %T", raw)
	}
	out := make(form.TableValue, 0, len(rows))
	for i, r := range rows {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d: want an object, got %T", i, r)
		}
		row := make(form.TableRow, len(m))
		for k, v := range m {
			switch cell := v.(type) {
			case nil:
			case string:
				row[k] = cell
			case float64:
				row[k] = strconv.FormatFloat(cell, 'f', -1, 64)
			case int:
				row[k] = strconv.Itoa(cell)
			default:
				return nil, fmt.Errorf("row %d column %q: want text, got %T", i, k, cell)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// DecodeList parses a batch of patches from JSON or YAML. The input is either
// a list of patches or an object with a "patches" list. Any patch that fails
// to decode fails the whole batch.
func DecodeList(data []byte) ([]Patch, error) {
	out, err := DecodeBatch(data)
	if err != nil {
		return nil, err
	}
	for i, p := range out {
		if m, ok := p.(Malformed); ok {
			return nil, fmt.Errorf("patch %d: %w", i, m.Err)
		}
	}
	return out, nil
}

// DecodeBatch is DecodeList for untrusted producers: a patch that fails to
// decode becomes a Malformed entry at its position instead of an error. Only
// input that is not a patch list at all is an error.
func DecodeBatch(data []byte) ([]Patch, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if node.Kind == 0 {
		return nil, nil
	}
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	switch root.Kind {
	case yaml.SequenceNode:
	case yaml.MappingNode:
		var env struct {
			Patches yaml.Node `yaml:"patches"`
		}
		if err := root.Decode(&env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		root = &env.Patches
		if root.Kind == 0 {
			return nil, nil
		}
		if root.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%w: patches is not a list", ErrInvalidPatch)
		}
	default:
		return nil, fmt.Errorf("%w: want a list of patches", ErrInvalidPatch)
	}

	out := make([]Patch, 0, len(root.Content))
	for _, item := range root.Content {
		var w Wire
		if err := item.Decode(&w); err != nil {
			out = append(out, Malformed{Reason: RejectConstraintViolation, Err: fmt.Errorf("%w: not a patch object: %v", ErrInvalidPatch, err)})
			continue
		}
		p, err := Decode(w)
		if err != nil {
			out = append(out, Malformed{Wire: w, Reason: malformedReason(w), Err: err})
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// malformedReason classifies a decode failure: a value of the wrong shape for
// a known set op is a kind mismatch, anything else breaks the patch format.
func malformedReason(w Wire) RejectReason {
	kind, ok := strings.CutPrefix(w.Op, "set_")
	if ok && form.FieldKind(kind).IsValid() && w.FieldID != "" {
		return RejectKindMismatch
	}
	return RejectConstraintViolation
}
