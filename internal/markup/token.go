package markup

import (
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokOpen tokenKind = iota
	tokClose
	tokOption
	tokText
	tokFence
)

// token is the unit both tokenizers emit and the builder consumes.
type token struct {
	kind  tokenKind
	line  int
	name  string // open, close
	attrs []attr // open
	mark  byte   // option: the character between the brackets
	label string // option
	id    string // option
	text  string // text: the raw line
	fence *fence // fence
}

// tokenizer turns scanned segments into tokens for one marker syntax.
type tokenizer interface {
	tokenize(segs []segment) ([]token, error)
}

// markerNames are the block markers shared by both syntaxes.
var markerNames = map[string]bool{"form": true, "group": true, "field": true, "note": true}

// optionLineRe matches the list-item prefix of an option line.
var optionLineRe = regexp.MustCompile(`^\s*[-*] \[(.)\] (.*)$`)

// span is one marker located within a line.
type span struct {
	start, end int
	inner      string
}

// markerToken converts the inner text of a located marker.
func markerToken(line int, inner string, unescape unescapeFunc) (token, error) {
	switch {
	case strings.HasPrefix(inner, "/"):
		name := strings.TrimSpace(inner[1:])
		if !markerNames[name] {
			return token{}, errorf(line, "unknown closing marker %q", name)
		}
		return token{kind: tokClose, line: line, name: name}, nil
	case strings.HasPrefix(inner, "#"):
		return token{}, errorf(line, "option marker %q outside an option line", inner)
	}
	name, rest, _ := strings.Cut(inner, " ")
	if !markerNames[name] {
		return token{}, errorf(line, "unknown marker %q", name)
	}
	attrs, err := lexAttrs(rest, unescape)
	if err != nil {
		return token{}, errorf(line, "%s marker: %v", name, err)
	}
	return token{kind: tokOpen, line: line, name: name, attrs: attrs}, nil
}

// lineTokens classifies one plain line given the markers found on it: no
// markers is prose, a trailing #id marker after a list prefix is an option,
// and anything else must consist of markers alone.
func lineTokens(line int, text string, spans []span, unescape unescapeFunc) ([]token, error) {
	if len(spans) == 0 {
		return []token{{kind: tokText, line: line, text: text}}, nil
	}
	last := spans[len(spans)-1]
	if m := optionLineRe.FindStringSubmatch(text); m != nil && strings.HasPrefix(last.inner, "#") &&
		strings.TrimSpace(text[last.end:]) == "" {
		id := strings.TrimSpace(last.inner[1:])
		if id == "" || strings.ContainsAny(id, " \t") {
			return nil, errorf(line, "malformed option id %q", last.inner)
		}
		label := strings.TrimSpace(text[len(text)-len(m[2]) : last.start])
		return []token{{kind: tokOption, line: line, mark: m[1][0], label: label, id: id}}, nil
	}

	var out []token
	prev := 0
	for _, sp := range spans {
		if strings.TrimSpace(text[prev:sp.start]) != "" {
			return nil, errorf(line, "markers must stand on their own line")
		}
		tok, err := markerToken(line, sp.inner, unescape)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		prev = sp.end
	}
	if strings.TrimSpace(text[prev:]) != "" {
		return nil, errorf(line, "markers must stand on their own line")
	}
	return out, nil
}

// tokenizeWith runs a per-line marker finder over the segments.
func tokenizeWith(segs []segment, find func(line int, text string) ([]span, error), unescape unescapeFunc) ([]token, error) {
	var out []token
	for _, seg := range segs {
		if seg.fence != nil {
			out = append(out, token{kind: tokFence, line: seg.line, fence: seg.fence, text: seg.fence.raw})
			continue
		}
		spans, err := find(seg.line, seg.text)
		if err != nil {
			return nil, err
		}
		toks, err := lineTokens(seg.line, seg.text, spans, unescape)
		if err != nil {
			return nil, err
		}
		out = append(out, toks...)
	}
	return out, nil
}
