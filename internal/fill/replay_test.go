package fill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/patch"
)

func TestNewReplayFiller_NilReference(t *testing.T) {
	_, err := NewReplayFiller(nil)
	assert.Error(t, err)
}

func TestReplayFiller_GeneratePatches(t *testing.T) {
	f, err := NewReplayFiller(parse(t, tripReference))
	require.NoError(t, err)

	issues := []inspect.Issue{
		{Ref: "days", Scope: inspect.ScopeField},
		{Ref: "g", Scope: inspect.ScopeGroup},
		{Ref: "days", Scope: inspect.ScopeField},
		{Ref: "ghost", Scope: inspect.ScopeField},
		{Ref: "notes", Scope: inspect.ScopeField},
	}
	resp, err := f.GeneratePatches(context.Background(), Request{Issues: issues})
	require.NoError(t, err)
	assert.Equal(t, []patch.Patch{
		patch.SetValue{FieldID: "days", Value: form.NumberValue(3)},
		patch.SkipField{FieldID: "notes", Role: form.RoleAgent, Reason: "nothing to add"},
	}, resp.Patches)
}

func TestReplayFiller_NotesReplayedOnce(t *testing.T) {
	f, err := NewReplayFiller(parse(t, tripReference))
	require.NoError(t, err)
	req := Request{Issues: []inspect.Issue{{Ref: "city", Scope: inspect.ScopeField}}}

	first, err := f.GeneratePatches(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Patches, 2)
	assert.Equal(t, patch.AddNote{Ref: "city", Role: form.RoleAgent, Text: "Chosen for the food."}, first.Patches[1])

	second, err := f.GeneratePatches(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, second.Patches, 1)
}

func TestReplayFiller_MaxPatches(t *testing.T) {
	f, err := NewReplayFiller(parse(t, tripReference))
	require.NoError(t, err)
	issues := []inspect.Issue{
		{Ref: "city", Scope: inspect.ScopeField},
		{Ref: "days", Scope: inspect.ScopeField},
		{Ref: "notes", Scope: inspect.ScopeField},
	}

	resp, err := f.GeneratePatches(context.Background(), Request{Issues: issues, MaxPatches: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Patches, 1)
}

func TestReplayFiller_UnansweredReference(t *testing.T) {
	f, err := NewReplayFiller(parse(t, tripForm))
	require.NoError(t, err)

	resp, err := f.GeneratePatches(context.Background(), Request{Issues: []inspect.Issue{{Ref: "city", Scope: inspect.ScopeField}}})
	require.NoError(t, err)
	assert.Empty(t, resp.Patches)
}
