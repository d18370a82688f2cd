package harness

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/patch"
)

// Transcript is the append-only record of one harness session.
type Transcript struct {
	Config  Config       `yaml:"config"`
	Turns   []TurnRecord `yaml:"turns"`
	Outcome Outcome      `yaml:"outcome"`
}

// TurnRecord is one committed step/apply cycle.
type TurnRecord struct {
	Turn            int                     `yaml:"turn"`
	IssuesPresented []inspect.Issue         `yaml:"issuesPresented"`
	PatchesApplied  []patch.Wire            `yaml:"patchesApplied"`
	PatchesRejected []RejectedPatch         `yaml:"patchesRejected"`
	Progress        inspect.ProgressSummary `yaml:"progress"`
	FormState       inspect.FormState       `yaml:"formState"`
	RemainingIssues int                     `yaml:"remainingIssues"`
	Complete        bool                    `yaml:"complete"`
}

// RejectedPatch is the recorded form of a patch.Rejection.
type RejectedPatch struct {
	Index   int                `yaml:"index"`
	Patch   patch.Wire         `yaml:"patch"`
	Reason  patch.RejectReason `yaml:"reason"`
	Message string             `yaml:"message"`
}

// Outcome summarises how the session ended so far.
type Outcome struct {
	State     State             `yaml:"state"`
	Turns     int               `yaml:"turns"`
	FormState inspect.FormState `yaml:"formState,omitempty"`
}

func recordRejections(rs []patch.Rejection) []RejectedPatch {
	out := make([]RejectedPatch, len(rs))
	for i, r := range rs {
		out[i] = RejectedPatch{Index: r.Index, Patch: patch.Encode(r.Patch), Reason: r.Reason, Message: r.Message}
	}
	return out
}

// ShouldBeComplete recomputes the completion verdict from the recorded turns
// alone: the session is complete when its last turn left no issues.
func (t *Transcript) ShouldBeComplete() bool {
	if len(t.Turns) == 0 {
		return false
	}
	return t.Turns[len(t.Turns)-1].RemainingIssues == 0
}

// Accepted counts the patches accepted across all turns.
func (t *Transcript) Accepted() int {
	n := 0
	for _, tr := range t.Turns {
		n += len(tr.PatchesApplied)
	}
	return n
}

// WriteTranscript encodes t as YAML.
func WriteTranscript(w io.Writer, t *Transcript) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("harness: encode transcript: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("harness: encode transcript: %w", err)
	}
	return nil
}

// ReadTranscript decodes a transcript written by WriteTranscript.
func ReadTranscript(r io.Reader) (*Transcript, error) {
	var t Transcript
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("harness: decode transcript: %w", err)
	}
	return &t, nil
}
