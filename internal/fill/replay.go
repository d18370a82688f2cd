package fill

import (
	"context"
	"fmt"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/patch"
)

// ReplayFiller answers issues from a completed reference document with the
// same schema. Answered fields become set patches, skipped and aborted fields
// replay their skip or abort, and reference notes follow the first patch for
// their field. Fields unanswered in the reference produce nothing.
type ReplayFiller struct {
	ref      *form.Document
	replayed map[string]bool // note ids already emitted
}

// NewReplayFiller returns a filler backed by ref.
func NewReplayFiller(ref *form.Document) (*ReplayFiller, error) {
	if ref == nil {
		return nil, fmt.Errorf("fill: replay: nil reference document")
	}
	return &ReplayFiller{ref: ref, replayed: make(map[string]bool)}, nil
}

// GeneratePatches implements Filler.
func (r *ReplayFiller) GeneratePatches(_ context.Context, req Request) (Response, error) {
	var out []patch.Patch
	for _, id := range issueFields(req.Issues) {
		if req.MaxPatches > 0 && len(out) >= req.MaxPatches {
			break
		}
		p, ok := r.patchFor(id)
		if !ok {
			continue
		}
		out = append(out, p)
		for _, n := range r.ref.Notes {
			if n.Ref != id || r.replayed[n.ID] {
				continue
			}
			if req.MaxPatches > 0 && len(out) >= req.MaxPatches {
				break
			}
			r.replayed[n.ID] = true
			out = append(out, patch.AddNote{Ref: n.Ref, Role: n.Role, Text: n.Text})
		}
	}
	return Response{Patches: out, Stats: Stats{Attempts: 1}}, nil
}

func (r *ReplayFiller) patchFor(id string) (patch.Patch, bool) {
	if _, ok := r.ref.Field(id); !ok {
		return nil, false
	}
	a := r.ref.Answer(id)
	switch a.Status {
	case form.StatusAnswered:
		return patch.SetValue{FieldID: id, Value: form.CloneValue(a.Value)}, true
	case form.StatusSkipped:
		by := a.By
		if by == "" {
			by = form.DefaultRole
		}
		return patch.SkipField{FieldID: id, Role: by, Reason: a.Reason}, true
	case form.StatusAborted:
		return patch.AbortField{FieldID: id, Reason: a.Reason}, true
	}
	return nil, false
}
