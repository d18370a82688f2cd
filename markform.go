// Package markform provides a minimal public API for working with form
// documents from Go programs.
//
// Most callers need only Parse, Inspect and Apply. Programs that drive a fill
// loop create a harness with NewHarness and pass it to Fill with their own
// Filler.
package markform

import (
	"context"

	"github.com/steveyegge/markform/internal/fill"
	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/harness"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/markup"
	"github.com/steveyegge/markform/internal/patch"
)

// Core types for working with documents
type (
	Document      = form.Document
	Field         = form.Field
	Answer        = form.Answer
	Role          = form.Role
	Syntax        = form.Syntax
	Issue         = inspect.Issue
	InspectResult = inspect.Result
	Patch         = patch.Patch
	PatchResult   = patch.Result
	ParseError    = markup.ParseError
)

// Fill loop types
type (
	Harness       = harness.Harness
	HarnessConfig = harness.Config
	Transcript    = harness.Transcript
	Filler        = fill.Filler
	FillerFunc    = fill.FillerFunc
	FillRequest   = fill.Request
	FillResponse  = fill.Response
	RunOptions    = fill.RunOptions
	RunResult     = fill.RunResult
)

// Marker syntaxes
const (
	SyntaxTags     = form.SyntaxTags
	SyntaxComments = form.SyntaxComments
)

// Conventional roles
const (
	RoleUser  = form.RoleUser
	RoleAgent = form.RoleAgent
	RoleAny   = form.RoleAny
)

// Parse reads a document in either marker syntax.
func Parse(text string) (*Document, error) {
	return markup.Parse(text)
}

// Serialize renders doc in the syntax it was parsed from.
func Serialize(doc *Document) string {
	return markup.Serialize(doc)
}

// SerializeAs renders doc in the given syntax.
func SerializeAs(doc *Document, style Syntax) string {
	return markup.SerializeAs(doc, style)
}

// Inspect lists the open issues of doc for the given roles, or for every
// role when none are given.
func Inspect(doc *Document, roles ...Role) InspectResult {
	return inspect.Inspect(doc, inspect.Options{TargetRoles: roles})
}

// DecodePatches reads a JSON array of wire patches.
func DecodePatches(data []byte) ([]Patch, error) {
	return patch.DecodeList(data)
}

// Apply applies patches to doc in continue mode with no role restriction.
// A rejected patch changes nothing and is reported in the result; the rest of
// the batch still applies.
func Apply(doc *Document, patches []Patch) PatchResult {
	issues := inspect.Inspect(doc, inspect.Options{}).Issues
	return patch.Apply(doc, patches, issues, patch.Options{FillMode: patch.FillContinue})
}

// DefaultHarnessConfig returns the limits used when nothing is configured.
func DefaultHarnessConfig() HarnessConfig {
	return harness.DefaultConfig()
}

// NewHarness starts a fill session over doc. The harness owns doc until the
// session ends.
func NewHarness(doc *Document, cfg HarnessConfig) (*Harness, error) {
	return harness.New(doc, cfg)
}

// Fill runs the fill loop until the form is complete, the turn limit is
// reached, or ctx is done.
func Fill(ctx context.Context, h *Harness, f Filler, opts RunOptions) (RunResult, error) {
	return fill.Run(ctx, h, f, opts)
}
