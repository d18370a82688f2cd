package markup

import (
	"regexp"
	"strings"
)

// fenceOpenRe matches a code fence opener: up to three spaces of indent, a
// run of backticks or tildes, and an optional info string.
var fenceOpenRe = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})[ \t]*([^`]*?)[ \t]*$")

// fence is one fenced code block, delimiters included.
type fence struct {
	info string
	body string
	raw  string
}

// segment is either one plain source line or a whole fenced block.
type segment struct {
	line  int
	text  string
	fence *fence
}

// scanLines splits text into plain lines and fenced blocks so that marker
// text inside a fence is never seen by a tokenizer. An unclosed fence runs to
// the end of input; its opening line is returned as unclosed.
func scanLines(text string) (segs []segment, unclosed int) {
	lines := splitLines(text)
	for i := 0; i < len(lines); i++ {
		m := fenceOpenRe.FindStringSubmatch(lines[i])
		if m == nil {
			segs = append(segs, segment{line: i + 1, text: lines[i]})
			continue
		}
		delim := m[1]
		start := i
		var body []string
		closed := false
		for i++; i < len(lines); i++ {
			if closesFence(lines[i], delim) {
				closed = true
				break
			}
			body = append(body, lines[i])
		}
		end := i
		if !closed {
			unclosed = start + 1
			end = len(lines) - 1
		}
		segs = append(segs, segment{
			line: start + 1,
			fence: &fence{
				info: m[2],
				body: strings.Join(body, "\n"),
				raw:  strings.Join(lines[start:end+1], "\n"),
			},
		})
	}
	return segs, unclosed
}

func closesFence(line, delim string) bool {
	trimmed := strings.TrimRight(strings.TrimLeft(line, " "), " \t")
	if len(line)-len(strings.TrimLeft(line, " ")) > 3 {
		return false
	}
	if len(trimmed) < len(delim) {
		return false
	}
	return strings.Trim(trimmed, delim[:1]) == ""
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// fenceFor returns a backtick fence longer than any backtick run in body.
func fenceFor(body string) string {
	longest, run := 0, 0
	for i := 0; i < len(body); i++ {
		if body[i] == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}
