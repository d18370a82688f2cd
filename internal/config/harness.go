package config

import (
	"time"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/harness"
	"github.com/steveyegge/markform/internal/patch"
)

// Harness config keys
const (
	KeyHarnessMaxTurns          = "harness.max-turns"
	KeyHarnessMaxPatchesPerTurn = "harness.max-patches-per-turn"
	KeyHarnessMaxIssuesPerTurn  = "harness.max-issues-per-turn"
	KeyHarnessMaxFieldsPerTurn  = "harness.max-fields-per-turn"
	KeyHarnessMaxGroupsPerTurn  = "harness.max-groups-per-turn"
	KeyHarnessTargetRoles       = "harness.target-roles"
	KeyHarnessFillMode          = "harness.fill-mode"
)

// Fill config keys
const (
	KeyFillMaxStagnantTurns = "fill.max-stagnant-turns"
	KeyFillModel            = "fill.model"
	KeyFillMaxTokens        = "fill.max-tokens"
	KeyFillMaxRetries       = "fill.max-retries"
	KeyFillRetryInterval    = "fill.retry-interval"
	KeyFillAPIKey           = "fill.api-key"
)

// DefaultModel is the model used by the LLM filler when none is configured.
const DefaultModel = "claude-sonnet-4-5"

// RegisterHarnessDefaults registers default values for harness configuration.
// Called from Initialize().
func RegisterHarnessDefaults() {
	if v == nil {
		return
	}
	d := harness.DefaultConfig()
	v.SetDefault(KeyHarnessMaxTurns, d.MaxTurns)
	v.SetDefault(KeyHarnessMaxPatchesPerTurn, d.MaxPatchesPerTurn)
	v.SetDefault(KeyHarnessMaxIssuesPerTurn, d.MaxIssuesPerTurn)
	v.SetDefault(KeyHarnessMaxFieldsPerTurn, d.MaxFieldsPerTurn)
	v.SetDefault(KeyHarnessMaxGroupsPerTurn, d.MaxGroupsPerTurn)
	v.SetDefault(KeyHarnessTargetRoles, []string{string(form.DefaultRole)})
	v.SetDefault(KeyHarnessFillMode, string(d.FillMode))
}

// RegisterFillDefaults registers default values for the fill runner and the
// LLM filler.
func RegisterFillDefaults() {
	if v == nil {
		return
	}
	v.SetDefault(KeyFillMaxStagnantTurns, 0)
	v.SetDefault(KeyFillModel, DefaultModel)
	v.SetDefault(KeyFillMaxTokens, 4096)
	v.SetDefault(KeyFillMaxRetries, 3)
	v.SetDefault(KeyFillRetryInterval, "1s")
	v.SetDefault(KeyFillAPIKey, "")
}

// HarnessConfig assembles a harness.Config from the current settings. The
// result is not validated; harness.New does that.
func HarnessConfig() harness.Config {
	roles := form.RoleSet{}
	for _, r := range GetStringSlice(KeyHarnessTargetRoles) {
		roles = append(roles, form.Role(r))
	}
	return harness.Config{
		MaxTurns:          GetInt(KeyHarnessMaxTurns),
		MaxPatchesPerTurn: GetInt(KeyHarnessMaxPatchesPerTurn),
		MaxIssuesPerTurn:  GetInt(KeyHarnessMaxIssuesPerTurn),
		MaxFieldsPerTurn:  GetInt(KeyHarnessMaxFieldsPerTurn),
		MaxGroupsPerTurn:  GetInt(KeyHarnessMaxGroupsPerTurn),
		TargetRoles:       roles,
		FillMode:          patch.FillMode(GetString(KeyHarnessFillMode)),
	}
}

// FillSettings holds the LLM filler and runner settings.
type FillSettings struct {
	MaxStagnantTurns int
	Model            string
	MaxTokens        int
	MaxRetries       int
	RetryInterval    time.Duration
	APIKey           string
}

// GetFillSettings returns the current fill configuration.
func GetFillSettings() FillSettings {
	return FillSettings{
		MaxStagnantTurns: GetInt(KeyFillMaxStagnantTurns),
		Model:            GetString(KeyFillModel),
		MaxTokens:        GetInt(KeyFillMaxTokens),
		MaxRetries:       GetInt(KeyFillMaxRetries),
		RetryInterval:    GetDuration(KeyFillRetryInterval),
		APIKey:           GetString(KeyFillAPIKey),
	}
}
