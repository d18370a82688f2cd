package markup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/markform/internal/form"
)

// markerPatterns find markers of each syntax. A comment only counts when the
// marker name stands alone or is followed by an attribute, so ordinary HTML
// comments such as <!-- note to self --> stay prose.
var markerPatterns = map[form.Syntax]*regexp.Regexp{
	form.SyntaxTags: regexp.MustCompile(`\{%\s*(?:/?(?:form|group|field|note)\b|#)`),
	form.SyntaxComments: regexp.MustCompile(
		`<!--\s*(?:#|/(?:form|group|field|note)\s*-->|(?:form|group|field|note)(?:\s*-->|\s+[A-Za-z_][\w-]*\s*=))`),
}

func otherSyntax(s form.Syntax) form.Syntax {
	if s == form.SyntaxComments {
		return form.SyntaxTags
	}
	return form.SyntaxComments
}

// DetectSyntax reports the style of the first marker outside a code fence.
// Text without markers is treated as tag style.
func DetectSyntax(text string) form.Syntax {
	_, body, err := splitFrontMatter(text)
	if err != nil {
		body = text
	}
	segs, _ := scanLines(body)
	return detect(segs)
}

func detect(segs []segment) form.Syntax {
	for _, seg := range segs {
		if seg.fence != nil {
			continue
		}
		tag := markerPatterns[form.SyntaxTags].FindStringIndex(seg.text)
		comment := markerPatterns[form.SyntaxComments].FindStringIndex(seg.text)
		switch {
		case tag != nil && (comment == nil || tag[0] < comment[0]):
			return form.SyntaxTags
		case comment != nil:
			return form.SyntaxComments
		}
	}
	return form.SyntaxTags
}

// ValidateSyntaxConsistency reports every marker of the style other than
// expected, without parsing the document. Markers inside code fences are
// ignored.
func ValidateSyntaxConsistency(text string, expected form.Syntax) []SyntaxViolation {
	_, body, err := splitFrontMatter(text)
	if err != nil {
		body = text
	}
	segs, _ := scanLines(body)
	return violations(segs, expected)
}

func violations(segs []segment, expected form.Syntax) []SyntaxViolation {
	other := otherSyntax(expected)
	re := markerPatterns[other]
	var out []SyntaxViolation
	for _, seg := range segs {
		if seg.fence != nil {
			continue
		}
		for _, m := range re.FindAllString(seg.text, -1) {
			out = append(out, SyntaxViolation{Line: seg.line, Pattern: m, FoundSyntax: other})
		}
	}
	return out
}

// CheckInline reports why text cannot be written verbatim on a document
// line, such as a table cell: it must not contain markers of either syntax.
func CheckInline(text string) error {
	if strings.Contains(text, "{%") || strings.Contains(text, "%}") {
		return fmt.Errorf("text contains tag marker syntax")
	}
	for _, s := range []form.Syntax{form.SyntaxTags, form.SyntaxComments} {
		if m := markerPatterns[s].FindString(text); m != "" {
			return fmt.Errorf("text contains %s marker %q", s, m)
		}
	}
	return nil
}

// CheckProse reports why text cannot be embedded verbatim as note or
// description prose: it must not contain markers of either syntax or open a
// code fence.
func CheckProse(text string) error {
	if err := CheckInline(text); err != nil {
		return err
	}
	for _, line := range strings.Split(text, "\n") {
		if fenceOpenRe.MatchString(line) {
			return fmt.Errorf("text contains a code fence line %q", line)
		}
	}
	return nil
}
