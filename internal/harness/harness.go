// Package harness drives a form document to completion in bounded turns.
//
// A caller alternates Step, which exposes a window of the current issues, and
// Apply, which commits a batch of patches through the patch engine. The
// harness owns its document for its lifetime and is not safe for concurrent
// use.
package harness

import (
	"errors"
	"fmt"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/patch"
)

// ErrStepRequired is returned by Apply when no turn is open.
var ErrStepRequired = errors.New("apply called without a preceding step")

// State is the harness lifecycle state.
type State string

// Harness states. Complete and MaxTurnsReached are terminal.
const (
	StateStepping        State = "stepping"
	StateApplying        State = "applying"
	StateComplete        State = "complete"
	StateMaxTurnsReached State = "max_turns_reached"
)

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateMaxTurnsReached
}

// StepResult is what a filler sees at the start of a turn.
type StepResult struct {
	TurnNumber int
	Issues     []inspect.Issue
	IsComplete bool
	State      State
}

// ApplyResult reports the outcome of one committed batch.
type ApplyResult struct {
	TurnNumber      int
	Accepted        []patch.Patch
	Rejected        []patch.Rejection
	RemainingIssues int
	IsComplete      bool
	State           State
}

// Harness runs the step/apply cycle over one document.
type Harness struct {
	doc   *form.Document
	cfg   Config
	state State
	turn  int

	presented []inspect.Issue
	// revisited holds fields already offered or written in overwrite mode.
	revisited map[string]bool

	stagnant   int
	transcript Transcript
}

// New binds a harness to doc. The harness mutates doc in place.
func New(doc *form.Document, cfg Config) (*Harness, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Harness{
		doc:        doc,
		cfg:        cfg,
		state:      StateStepping,
		revisited:  make(map[string]bool),
		transcript: Transcript{Config: cfg, Outcome: Outcome{State: StateStepping}},
	}, nil
}

// Step opens a turn, or returns the already open one unchanged.
func (h *Harness) Step() StepResult {
	switch h.state {
	case StateComplete, StateMaxTurnsReached:
		return h.frozen()
	case StateApplying:
		return StepResult{TurnNumber: h.turn, Issues: cloneIssues(h.presented), State: h.state}
	}

	h.turn++
	all := h.issues()
	if len(all) == 0 {
		h.presented = nil
		h.recordSettled()
		h.finish(StateComplete)
		return StepResult{TurnNumber: h.turn, IsComplete: true, State: h.state}
	}
	h.presented = window(all, h.cfg)
	h.state = StateApplying
	return StepResult{TurnNumber: h.turn, Issues: cloneIssues(h.presented), State: h.state}
}

// Apply commits patches for the open turn. issues are the issues the patches
// answer; when nil the issues presented by the last Step are used.
func (h *Harness) Apply(patches []patch.Patch, issues []inspect.Issue) (ApplyResult, error) {
	switch h.state {
	case StateComplete, StateMaxTurnsReached:
		return ApplyResult{TurnNumber: h.turn, IsComplete: h.state == StateComplete, State: h.state}, nil
	case StateStepping:
		return ApplyResult{}, ErrStepRequired
	}
	if issues == nil {
		issues = h.presented
	}

	var res patch.Result
	if len(patches) > h.cfg.MaxPatchesPerTurn {
		res = patch.RejectAll(patches, patch.RejectTooManyPatches,
			fmt.Sprintf("batch of %d patches exceeds the limit of %d per turn", len(patches), h.cfg.MaxPatchesPerTurn))
	} else {
		res = patch.Apply(h.doc, patches, issues, patch.Options{FillMode: h.cfg.FillMode, TargetRoles: h.cfg.TargetRoles})
	}

	if h.cfg.FillMode == patch.FillOverwrite {
		for _, is := range h.presented {
			if is.ReasonCode == inspect.ReasonOverwritePending {
				h.revisited[is.Ref] = true
			}
		}
		for _, p := range res.Accepted {
			h.revisited[p.Target()] = true
		}
	}
	if len(res.Accepted) == 0 {
		h.stagnant++
	} else {
		h.stagnant = 0
	}

	remaining := h.issues()
	insp := inspect.Inspect(h.doc, inspect.Options{TargetRoles: h.cfg.TargetRoles})
	rec := TurnRecord{
		Turn:            h.turn,
		IssuesPresented: cloneIssues(h.presented),
		PatchesApplied:  patch.EncodeList(res.Accepted),
		PatchesRejected: recordRejections(res.Rejected),
		Progress:        insp.Progress,
		FormState:       insp.FormState,
		RemainingIssues: len(remaining),
		Complete:        len(remaining) == 0,
	}
	h.transcript.Turns = append(h.transcript.Turns, rec)
	h.transcript.Outcome.FormState = insp.FormState

	switch {
	case len(remaining) == 0:
		h.finish(StateComplete)
	case h.turn >= h.cfg.MaxTurns:
		h.finish(StateMaxTurnsReached)
	default:
		h.state = StateStepping
		h.transcript.Outcome.State = h.state
		h.transcript.Outcome.Turns = h.turn
	}
	h.presented = nil

	return ApplyResult{
		TurnNumber:      h.turn,
		Accepted:        res.Accepted,
		Rejected:        res.Rejected,
		RemainingIssues: len(remaining),
		IsComplete:      h.state == StateComplete,
		State:           h.state,
	}, nil
}

// issues returns every issue for the targeted roles, including
// overwrite_pending issues in overwrite mode.
func (h *Harness) issues() []inspect.Issue {
	res := inspect.Inspect(h.doc, inspect.Options{TargetRoles: h.cfg.TargetRoles})
	if h.cfg.FillMode != patch.FillOverwrite {
		return res.Issues
	}

	open := make(map[string]bool, len(res.Issues))
	for _, is := range res.Issues {
		open[is.Ref] = true
	}
	issues := res.Issues
	for _, g := range h.doc.Groups {
		for _, f := range g.Fields {
			if !h.cfg.TargetRoles.Contains(f.Role) || open[f.ID] || h.revisited[f.ID] {
				continue
			}
			a := h.doc.Answer(f.ID)
			if !a.Status.IsTerminal() {
				continue
			}
			issues = append(issues, inspect.Issue{
				Ref:        f.ID,
				Scope:      inspect.ScopeField,
				Group:      g.ID,
				ReasonCode: inspect.ReasonOverwritePending,
				Message:    fmt.Sprintf("Field %q is %s from an earlier session; confirm or overwrite it", f.ID, a.Status),
				Priority:   inspect.ReasonOverwritePending.Priority(),
				Severity:   inspect.SeverityRecommended,
			})
		}
	}
	return inspect.Sorted(h.doc, issues)
}

func (h *Harness) finish(s State) {
	h.state = s
	h.transcript.Outcome.State = s
	h.transcript.Outcome.Turns = h.turn
	if h.transcript.Outcome.FormState == "" {
		h.transcript.Outcome.FormState = inspect.Inspect(h.doc, inspect.Options{TargetRoles: h.cfg.TargetRoles}).FormState
	}
}

// recordSettled records a turn with no patches for a document that needed
// none, so the transcript alone still shows the completion.
func (h *Harness) recordSettled() {
	insp := inspect.Inspect(h.doc, inspect.Options{TargetRoles: h.cfg.TargetRoles})
	h.transcript.Turns = append(h.transcript.Turns, TurnRecord{
		Turn:            h.turn,
		PatchesApplied:  []patch.Wire{},
		PatchesRejected: []RejectedPatch{},
		Progress:        insp.Progress,
		FormState:       insp.FormState,
		Complete:        true,
	})
	h.transcript.Outcome.FormState = insp.FormState
}

func (h *Harness) frozen() StepResult {
	return StepResult{TurnNumber: h.turn, IsComplete: h.state == StateComplete, State: h.state}
}

func cloneIssues(in []inspect.Issue) []inspect.Issue {
	if in == nil {
		return nil
	}
	return append([]inspect.Issue(nil), in...)
}

// State returns the current lifecycle state.
func (h *Harness) State() State { return h.state }

// TurnNumber returns the number of the current or last turn.
func (h *Harness) TurnNumber() int { return h.turn }

// IsComplete reports whether the harness finished with no issues left.
func (h *Harness) IsComplete() bool { return h.state == StateComplete }

// HasReachedMaxTurns reports whether the turn limit stopped the session.
func (h *Harness) HasReachedMaxTurns() bool { return h.state == StateMaxTurnsReached }

// StagnantTurns is the number of consecutive committed turns with no accepted
// patch.
func (h *Harness) StagnantTurns() int { return h.stagnant }

// Config returns the session limits.
func (h *Harness) Config() Config { return h.cfg }

// Document returns the document being filled.
func (h *Harness) Document() *form.Document { return h.doc }

// Transcript returns the session record so far.
func (h *Harness) Transcript() *Transcript {
	t := h.transcript
	t.Turns = append([]TurnRecord(nil), h.transcript.Turns...)
	return &t
}
