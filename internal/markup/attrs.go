package markup

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// attr is one name=value pair from a marker. val is a string, float64, bool
// or []string.
type attr struct {
	name string
	val  any
}

// unescapeFunc decodes the body of a quoted attribute value. Each marker
// syntax supplies its own.
type unescapeFunc func(raw string) (string, error)

// unescapeCommon handles the escapes shared by both syntaxes; extra is the
// one additional character a syntax allows after a backslash.
func unescapeCommon(raw string, extra byte) (string, error) {
	if !strings.Contains(raw, `\`) {
		return raw, nil
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(raw) {
			return "", fmt.Errorf("dangling backslash in %q", raw)
		}
		switch raw[i] {
		case '"', '\\':
			b.WriteByte(raw[i])
		case 'n':
			b.WriteByte('\n')
		case extra:
			b.WriteByte(extra)
		default:
			return "", fmt.Errorf("unknown escape \\%c in %q", raw[i], raw)
		}
	}
	return b.String(), nil
}

// scanToCloser finds closer in s starting at from, skipping over quoted
// strings. It returns the index of closer or -1.
func scanToCloser(s string, from int, closer string) int {
	inQuote := false
	for i := from; i < len(s); i++ {
		c := s[i]
		if inQuote {
			switch c {
			case '\\':
				i++
			case '"':
				inQuote = false
			}
			continue
		}
		if c == '"' {
			inQuote = true
			continue
		}
		if strings.HasPrefix(s[i:], closer) {
			return i
		}
	}
	return -1
}

// lexAttrs parses `name=value ...` pairs.
func lexAttrs(s string, unescape unescapeFunc) ([]attr, error) {
	var out []attr
	seen := map[string]bool{}
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return out, nil
		}
		start := i
		for i < len(s) && isNameByte(s[i]) {
			i++
		}
		name := s[start:i]
		if name == "" {
			return nil, fmt.Errorf("expected attribute name at %q", s[start:])
		}
		if i >= len(s) || s[i] != '=' {
			return nil, fmt.Errorf("attribute %s has no value", name)
		}
		i++
		val, next, err := lexValue(s, i, unescape)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		if seen[name] {
			return nil, fmt.Errorf("attribute %s given twice", name)
		}
		seen[name] = true
		out = append(out, attr{name: name, val: val})
		i = next
		if i < len(s) && !isSpace(s[i]) {
			return nil, fmt.Errorf("attribute %s: unexpected %q after value", name, s[i:])
		}
	}
}

func lexValue(s string, i int, unescape unescapeFunc) (any, int, error) {
	if i >= len(s) {
		return nil, i, fmt.Errorf("missing value")
	}
	switch s[i] {
	case '"':
		str, next, err := lexQuoted(s, i, unescape)
		return str, next, err
	case '[':
		var items []string
		i++
		for {
			for i < len(s) && isSpace(s[i]) {
				i++
			}
			if i < len(s) && s[i] == ']' {
				return items, i + 1, nil
			}
			if len(items) > 0 {
				if i >= len(s) || s[i] != ',' {
					return nil, i, fmt.Errorf("expected , or ] in list")
				}
				i++
				for i < len(s) && isSpace(s[i]) {
					i++
				}
			}
			if i >= len(s) || s[i] != '"' {
				return nil, i, fmt.Errorf("list items must be quoted strings")
			}
			str, next, err := lexQuoted(s, i, unescape)
			if err != nil {
				return nil, i, err
			}
			items = append(items, str)
			i = next
		}
	}
	start := i
	for i < len(s) && !isSpace(s[i]) {
		i++
	}
	bare := s[start:i]
	switch bare {
	case "true":
		return true, i, nil
	case "false":
		return false, i, nil
	}
	n, err := strconv.ParseFloat(bare, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return nil, i, fmt.Errorf("unquoted value %q is not a number or boolean", bare)
	}
	return n, i, nil
}

func lexQuoted(s string, i int, unescape unescapeFunc) (string, int, error) {
	start := i + 1
	for j := start; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			str, err := unescape(s[start:j])
			return str, j + 1, err
		}
	}
	return "", len(s), fmt.Errorf("unterminated string")
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

func isNameByte(c byte) bool {
	return c == '_' || c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// attrSet gives typed, tracked access to a marker's attributes so that
// leftovers can be reported as unknown.
type attrSet struct {
	line  int
	attrs []attr
	used  map[string]bool
}

func newAttrSet(line int, attrs []attr) *attrSet {
	return &attrSet{line: line, attrs: attrs, used: map[string]bool{}}
}

func (a *attrSet) get(name string) (any, bool) {
	for _, at := range a.attrs {
		if at.name == name {
			a.used[name] = true
			return at.val, true
		}
	}
	return nil, false
}

func (a *attrSet) str(name string) (string, error) {
	v, ok := a.get(name)
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errorf(a.line, "attribute %s must be a quoted string", name)
	}
	return s, nil
}

func (a *attrSet) requiredStr(name, marker string) (string, error) {
	s, err := a.str(name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errorf(a.line, "%s marker requires %s", marker, name)
	}
	return s, nil
}

func (a *attrSet) boolean(name string) (bool, error) {
	v, ok := a.get(name)
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, errorf(a.line, "attribute %s must be true or false", name)
	}
	return b, nil
}

func (a *attrSet) number(name string) (*float64, error) {
	v, ok := a.get(name)
	if !ok {
		return nil, nil
	}
	n, ok := v.(float64)
	if !ok {
		return nil, errorf(a.line, "attribute %s must be a number", name)
	}
	return &n, nil
}

func (a *attrSet) integer(name string) (*int, error) {
	n, err := a.number(name)
	if err != nil || n == nil {
		return nil, err
	}
	if *n != math.Trunc(*n) {
		return nil, errorf(a.line, "attribute %s must be an integer", name)
	}
	i := int(*n)
	return &i, nil
}

func (a *attrSet) list(name string) ([]string, error) {
	v, ok := a.get(name)
	if !ok {
		return nil, nil
	}
	l, ok := v.([]string)
	if !ok {
		return nil, errorf(a.line, "attribute %s must be a list of strings", name)
	}
	return l, nil
}

// unknown reports the first attribute nobody asked for.
func (a *attrSet) unknown(marker string) error {
	for _, at := range a.attrs {
		if !a.used[at.name] {
			return errorf(a.line, "unknown attribute %s on %s", at.name, marker)
		}
	}
	return nil
}
