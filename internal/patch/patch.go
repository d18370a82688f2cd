// Package patch validates and applies edit operations to a form document.
//
// Patches are applied strictly in order and each is validated on its own, so
// a later patch in a batch sees the effect of an earlier one. Validation
// failures are returned as Rejections, never as errors.
package patch

import (
	"cmp"

	"github.com/steveyegge/markform/internal/form"
)

// Op names as they appear on the wire.
const (
	OpClearField = "clear_field"
	OpSkipField  = "skip_field"
	OpAbortField = "abort_field"
	OpAddNote    = "add_note"
	OpRemoveNote = "remove_note"
)

// SetOp returns the set_<kind> op name for kind.
func SetOp(kind form.FieldKind) string { return "set_" + string(kind) }

// Patch is one atomic edit. The concrete types below are the only
// implementations.
type Patch interface {
	Op() string
	// Target is the field id, note ref or note id the patch addresses.
	Target() string
	patch()
}

// SetValue writes a kind-matched value. An empty value clears the field.
// Checkboxes values are merged into the field's current states.
type SetValue struct {
	FieldID string
	Value   form.Value
}

type ClearField struct {
	FieldID string
}

// SkipField marks an optional field as deliberately left blank.
type SkipField struct {
	FieldID string
	Role    form.Role
	Reason  string
}

// AbortField marks a field as impossible to fill.
type AbortField struct {
	FieldID string
	Reason  string
}

type AddNote struct {
	Ref  string
	Role form.Role
	Text string
}

type RemoveNote struct {
	NoteID string
}

// Malformed stands in for a wire patch that could not be decoded. Apply
// always rejects it with Reason.
type Malformed struct {
	Wire   Wire
	Reason RejectReason
	Err    error
}

func (p SetValue) Op() string {
	if p.Value == nil {
		return "set_value"
	}
	return SetOp(p.Value.Kind())
}
func (ClearField) Op() string { return OpClearField }
func (SkipField) Op() string  { return OpSkipField }
func (AbortField) Op() string { return OpAbortField }
func (AddNote) Op() string    { return OpAddNote }
func (RemoveNote) Op() string { return OpRemoveNote }

func (p SetValue) Target() string   { return p.FieldID }
func (p ClearField) Target() string { return p.FieldID }
func (p SkipField) Target() string  { return p.FieldID }
func (p AbortField) Target() string { return p.FieldID }
func (p AddNote) Target() string    { return p.Ref }
func (p RemoveNote) Target() string { return p.NoteID }

func (SetValue) patch()   {}
func (ClearField) patch() {}
func (SkipField) patch()  {}
func (AbortField) patch() {}
func (AddNote) patch()    {}
func (RemoveNote) patch() {}
func (Malformed) patch()  {}

func (p Malformed) Op() string { return p.Wire.Op }

func (p Malformed) Target() string {
	return cmp.Or(p.Wire.FieldID, p.Wire.Ref, p.Wire.NoteID)
}

// RejectReason says why a patch was not applied.
type RejectReason string

// Rejection reasons
const (
	RejectUnknownField        RejectReason = "unknown_field"
	RejectUnknownNote         RejectReason = "unknown_note"
	RejectAlreadyResolved     RejectReason = "already_resolved"
	RejectKindMismatch        RejectReason = "kind_mismatch"
	RejectConstraintViolation RejectReason = "constraint_violation"
	RejectRoleMismatch        RejectReason = "role_mismatch"
	RejectTooManyPatches      RejectReason = "too_many_patches"
)

// Rejection records one patch that was not applied.
type Rejection struct {
	Index   int
	Patch   Patch
	Reason  RejectReason
	Message string
}

// FillMode controls whether resolved fields may be written again.
type FillMode string

// Fill modes
const (
	FillContinue  FillMode = "continue"
	FillOverwrite FillMode = "overwrite"
)

// IsValid checks if the fill mode is known
func (m FillMode) IsValid() bool {
	return m == FillContinue || m == FillOverwrite
}

// Options configures one Apply call.
type Options struct {
	FillMode    FillMode
	TargetRoles form.RoleSet
}

// Result lists what happened to each patch of a batch.
type Result struct {
	Accepted []Patch
	Rejected []Rejection
}

// RejectAll rejects a whole batch with one reason, applying nothing.
func RejectAll(patches []Patch, reason RejectReason, message string) Result {
	res := Result{}
	for i, p := range patches {
		res.Rejected = append(res.Rejected, Rejection{Index: i, Patch: p, Reason: reason, Message: message})
	}
	return res
}
