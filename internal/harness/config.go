package harness

import (
	"errors"
	"fmt"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/patch"
)

// ErrInvalidConfig is wrapped by every configuration error returned from New.
var ErrInvalidConfig = errors.New("invalid harness config")

// Config bounds one fill session.
type Config struct {
	MaxTurns          int `json:"maxTurns" yaml:"maxTurns"`
	MaxPatchesPerTurn int `json:"maxPatchesPerTurn" yaml:"maxPatchesPerTurn"`
	MaxIssuesPerTurn  int `json:"maxIssuesPerTurn" yaml:"maxIssuesPerTurn"`
	// MaxFieldsPerTurn and MaxGroupsPerTurn are unlimited when zero.
	MaxFieldsPerTurn int            `json:"maxFieldsPerTurn,omitempty" yaml:"maxFieldsPerTurn,omitempty"`
	MaxGroupsPerTurn int            `json:"maxGroupsPerTurn,omitempty" yaml:"maxGroupsPerTurn,omitempty"`
	TargetRoles      form.RoleSet   `json:"targetRoles" yaml:"targetRoles"`
	FillMode         patch.FillMode `json:"fillMode" yaml:"fillMode"`
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxTurns:          100,
		MaxPatchesPerTurn: 20,
		MaxIssuesPerTurn:  10,
		TargetRoles:       form.RoleSet{form.DefaultRole},
		FillMode:          patch.FillContinue,
	}
}

// Validate checks the config and reports the first problem found.
func (c Config) Validate() error {
	switch {
	case c.MaxTurns <= 0:
		return fmt.Errorf("%w: maxTurns must be positive, got %d", ErrInvalidConfig, c.MaxTurns)
	case c.MaxPatchesPerTurn <= 0:
		return fmt.Errorf("%w: maxPatchesPerTurn must be positive, got %d", ErrInvalidConfig, c.MaxPatchesPerTurn)
	case c.MaxIssuesPerTurn <= 0:
		return fmt.Errorf("%w: maxIssuesPerTurn must be positive, got %d", ErrInvalidConfig, c.MaxIssuesPerTurn)
	case c.MaxFieldsPerTurn < 0:
		return fmt.Errorf("%w: maxFieldsPerTurn must not be negative, got %d", ErrInvalidConfig, c.MaxFieldsPerTurn)
	case c.MaxGroupsPerTurn < 0:
		return fmt.Errorf("%w: maxGroupsPerTurn must not be negative, got %d", ErrInvalidConfig, c.MaxGroupsPerTurn)
	case !c.FillMode.IsValid():
		return fmt.Errorf("%w: unknown fill mode %q", ErrInvalidConfig, c.FillMode)
	case len(c.TargetRoles) == 0:
		return fmt.Errorf("%w: targetRoles must not be empty", ErrInvalidConfig)
	}
	for _, r := range c.TargetRoles {
		if r == "" {
			return fmt.Errorf("%w: targetRoles contains an empty role", ErrInvalidConfig)
		}
	}
	return nil
}
