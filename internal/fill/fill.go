// Package fill connects fillers to the harness.
//
// A Filler answers the issues of one turn with a batch of patches. Run drives
// the harness step/apply loop around a filler until the session reaches a
// terminal state, stalls, or its context is cancelled. Fillers receive a clone
// of the document and never mutate the harness state directly.
package fill

import (
	"context"
	"errors"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/patch"
)

// ErrAborted is returned when a person cancels an interactive fill.
var ErrAborted = errors.New("fill aborted")

// Request is what a filler sees for one turn.
type Request struct {
	Turn     int
	Issues   []inspect.Issue
	Document *form.Document
	// MaxPatches is the per-turn batch limit; larger batches are rejected whole.
	MaxPatches int
	// PreviousRejections are the rejections of the last committed turn.
	PreviousRejections []patch.Rejection
}

// Stats reports the cost of producing one response.
type Stats struct {
	InputTokens  int64
	OutputTokens int64
	Attempts     int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.InputTokens += o.InputTokens
	s.OutputTokens += o.OutputTokens
	s.Attempts += o.Attempts
}

// Response carries a filler's patches for one turn.
type Response struct {
	Patches []patch.Patch
	Stats   Stats
}

// Filler produces patches for the issues of a turn.
type Filler interface {
	GeneratePatches(ctx context.Context, req Request) (Response, error)
}

// FillerFunc adapts a function to the Filler interface.
type FillerFunc func(ctx context.Context, req Request) (Response, error)

// GeneratePatches calls f.
func (f FillerFunc) GeneratePatches(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// issueFields returns the distinct field ids referenced by field-scope issues,
// in issue order.
func issueFields(issues []inspect.Issue) []string {
	seen := make(map[string]bool, len(issues))
	var ids []string
	for _, is := range issues {
		if is.Scope != inspect.ScopeField || seen[is.Ref] {
			continue
		}
		seen[is.Ref] = true
		ids = append(ids, is.Ref)
	}
	return ids
}
