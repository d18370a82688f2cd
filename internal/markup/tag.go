package markup

import "strings"

// tagTokenizer reads {% name attrs %} markers. Inside quoted attribute
// values a literal "%}" is written "%\}".
type tagTokenizer struct{}

func (tagTokenizer) tokenize(segs []segment) ([]token, error) {
	return tokenizeWith(segs, findTags, unescapeTag)
}

func findTags(line int, text string) ([]span, error) {
	var spans []span
	from := 0
	for {
		i := strings.Index(text[from:], "{%")
		if i < 0 {
			return spans, nil
		}
		start := from + i
		end := scanToCloser(text, start+2, "%}")
		if end < 0 {
			return nil, errorf(line, "unterminated {%% marker")
		}
		inner := strings.TrimSpace(text[start+2 : end])
		if inner == "" {
			return nil, errorf(line, "empty {%% %%} marker")
		}
		spans = append(spans, span{start: start, end: end + 2, inner: inner})
		from = end + 2
	}
}

func unescapeTag(raw string) (string, error) {
	return unescapeCommon(raw, '}')
}

// tagWriter emits tag-style markers.
type tagWriter struct{}

func (tagWriter) open(name string, attrs []attr) string {
	return "{% " + name + formatAttrs(attrs, escapeTag) + " %}"
}

func (tagWriter) close(name string) string { return "{% /" + name + " %}" }

func (tagWriter) option(id string) string { return "{% #" + id + " %}" }

func escapeTag(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '}' && i > 0 && s[i-1] == '%':
			b.WriteString(`\}`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
