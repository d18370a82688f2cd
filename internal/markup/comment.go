package markup

import (
	"regexp"
	"strings"
)

// commentMarkerRe matches the trimmed inner text of a comment marker: a bare
// or closing marker name, or a name followed by an attribute.
var commentMarkerRe = regexp.MustCompile(`^(?:/(?:form|group|field|note)|(?:form|group|field|note)(?:\s+[A-Za-z_][\w-]*\s*=[\s\S]*)?)$`)

// commentTokenizer reads <!-- name attrs --> markers. Other HTML comments,
// including ones that merely begin with a marker word, are ordinary prose.
// Inside quoted attribute values "--" is written "-\-".
type commentTokenizer struct{}

func (commentTokenizer) tokenize(segs []segment) ([]token, error) {
	return tokenizeWith(segs, findComments, unescapeComment)
}

func findComments(_ int, text string) ([]span, error) {
	var spans []span
	from := 0
	for {
		i := strings.Index(text[from:], "<!--")
		if i < 0 {
			return spans, nil
		}
		start := from + i
		end := scanToCloser(text, start+4, "-->")
		if end < 0 {
			// A multi-line HTML comment in prose.
			return spans, nil
		}
		inner := strings.TrimSpace(text[start+4 : end])
		from = end + 3
		if isCommentMarker(inner) {
			spans = append(spans, span{start: start, end: end + 3, inner: inner})
		}
	}
}

func isCommentMarker(inner string) bool {
	if strings.HasPrefix(inner, "#") {
		return len(inner) > 1
	}
	return commentMarkerRe.MatchString(inner)
}

func unescapeComment(raw string) (string, error) {
	return unescapeCommon(raw, '-')
}

// commentWriter emits comment-style markers.
type commentWriter struct{}

func (commentWriter) open(name string, attrs []attr) string {
	return "<!-- " + name + formatAttrs(attrs, escapeComment) + " -->"
}

func (commentWriter) close(name string) string { return "<!-- /" + name + " -->" }

func (commentWriter) option(id string) string { return "<!-- #" + id + " -->" }

func escapeComment(s string) string {
	var b strings.Builder
	var last byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '-' && last == '-':
			b.WriteString(`\-`)
		default:
			b.WriteByte(c)
		}
		last = c
	}
	return b.String()
}
