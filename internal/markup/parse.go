// Package markup reads and writes markform documents.
//
// A document is Markdown with inline markers in one of two interchangeable
// syntaxes: tag style ({% field ... %}) or comment style
// (<!-- field ... -->). Each syntax has its own tokenizer; both feed a single
// builder, so the two produce identical documents for the same content.
package markup

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/markform/internal/form"
)

var tokenizers = map[form.Syntax]tokenizer{
	form.SyntaxTags:     tagTokenizer{},
	form.SyntaxComments: commentTokenizer{},
}

// frontMatter is the YAML envelope at the top of a document.
type frontMatter struct {
	Markform form.Metadata `yaml:"markform"`
}

// Parse builds a Document from text. Structural problems are returned as
// *ParseError.
func Parse(text string) (*form.Document, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	meta, body, err := splitFrontMatter(text)
	if err != nil {
		return nil, err
	}

	segs, unclosed := scanLines(body)
	if unclosed > 0 {
		return nil, errorf(unclosed, "code fence is never closed")
	}
	style := detect(segs)
	if vs := violations(segs, style); len(vs) > 0 {
		return nil, errorf(vs[0].Line, "mixed marker syntax: document uses %s markers but found %q", style, vs[0].Pattern)
	}

	toks, err := tokenizers[style].tokenize(segs)
	if err != nil {
		return nil, err
	}
	doc, err := newBuilder().build(toks)
	if err != nil {
		return nil, err
	}
	doc.Metadata = meta
	doc.Syntax = style
	return doc, nil
}

// splitFrontMatter decodes a leading --- block. The returned body keeps the
// front matter lines as blanks so line numbers stay true.
func splitFrontMatter(text string) (form.Metadata, string, error) {
	if !strings.HasPrefix(text, "---\n") {
		return form.Metadata{}, text, nil
	}
	lines := strings.Split(text, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t") == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return form.Metadata{}, "", errorf(1, "front matter is never closed")
	}

	var fm frontMatter
	dec := yaml.NewDecoder(bytes.NewBufferString(strings.Join(lines[1:end], "\n")))
	dec.KnownFields(true)
	if err := dec.Decode(&fm); err != nil && !errors.Is(err, io.EOF) {
		return form.Metadata{}, "", errorf(2, "front matter: %v", err)
	}
	for i := 0; i <= end; i++ {
		lines[i] = ""
	}
	return fm.Markform, strings.Join(lines, "\n"), nil
}
