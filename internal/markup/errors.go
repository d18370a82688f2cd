package markup

import (
	"fmt"

	"github.com/steveyegge/markform/internal/form"
)

// ParseError reports structurally malformed document text.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line <= 0 {
		return "parse error: " + e.Reason
	}
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
}

func errorf(line int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// SyntaxViolation is one occurrence of the unexpected marker style.
type SyntaxViolation struct {
	Line        int
	Pattern     string
	FoundSyntax form.Syntax
}

func (v SyntaxViolation) String() string {
	return fmt.Sprintf("line %d: found %s-style marker %q", v.Line, v.FoundSyntax, v.Pattern)
}
