package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/harness"
	"github.com/steveyegge/markform/internal/patch"
)

func TestInitialize(t *testing.T) {
	err := Initialize()
	if err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if v == nil {
		t.Fatal("viper instance is nil after Initialize()")
	}
	if got := ConfigFileUsed(); got != "" {
		t.Errorf("ConfigFileUsed() = %q, want none", got)
	}
}

func TestDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"json", false, func(k string) interface{} { return GetBool(k) }},
		{"syntax.style", "", func(k string) interface{} { return GetString(k) }},
		{KeyHarnessMaxTurns, 100, func(k string) interface{} { return GetInt(k) }},
		{KeyHarnessMaxPatchesPerTurn, 20, func(k string) interface{} { return GetInt(k) }},
		{KeyHarnessMaxIssuesPerTurn, 10, func(k string) interface{} { return GetInt(k) }},
		{KeyHarnessMaxFieldsPerTurn, 0, func(k string) interface{} { return GetInt(k) }},
		{KeyHarnessFillMode, "continue", func(k string) interface{} { return GetString(k) }},
		{KeyFillMaxStagnantTurns, 0, func(k string) interface{} { return GetInt(k) }},
		{KeyFillModel, DefaultModel, func(k string) interface{} { return GetString(k) }},
		{KeyFillMaxTokens, 4096, func(k string) interface{} { return GetInt(k) }},
		{KeyFillRetryInterval, time.Second, func(k string) interface{} { return GetDuration(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"MF_JSON", "json", "true", true, func(k string) interface{} { return GetBool(k) }},
		{"MF_HARNESS_MAX_TURNS", KeyHarnessMaxTurns, "7", 7, func(k string) interface{} { return GetInt(k) }},
		{"MF_HARNESS_FILL_MODE", KeyHarnessFillMode, "overwrite", "overwrite", func(k string) interface{} { return GetString(k) }},
		{"MF_FILL_MODEL", KeyFillModel, "claude-haiku-4-5", "claude-haiku-4-5", func(k string) interface{} { return GetString(k) }},
		{"MF_FILL_RETRY_INTERVAL", KeyFillRetryInterval, "250ms", 250 * time.Millisecond, func(k string) interface{} { return GetDuration(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)

			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}

			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) with %s=%s = %v, want %v", tt.key, tt.envVar, tt.value, got, tt.expected)
			}
		})
	}
}

func TestGetStringSlice_FromEnv(t *testing.T) {
	t.Setenv("MF_HARNESS_TARGET_ROLES", "user, agent")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	got := GetStringSlice(KeyHarnessTargetRoles)
	if !reflect.DeepEqual(got, []string{"user", "agent"}) {
		t.Errorf("GetStringSlice = %v, want [user agent]", got)
	}
}

func TestConfigFileDiscovery(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(filepath.Join(root, ProjectDirName), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := "harness:\n  max-turns: 3\n  target-roles: [user]\nfill:\n  max-stagnant-turns: 2\n"
	if err := os.WriteFile(filepath.Join(root, ProjectDirName, "config.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	oldWD, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldWD) }()
	if err := os.Chdir(sub); err != nil {
		t.Fatal(err)
	}

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := filepath.Base(filepath.Dir(ConfigFileUsed())); got != ProjectDirName {
		t.Errorf("ConfigFileUsed() = %q", ConfigFileUsed())
	}
	if got := GetInt(KeyHarnessMaxTurns); got != 3 {
		t.Errorf("max-turns = %d, want 3", got)
	}
	if got := GetFillSettings().MaxStagnantTurns; got != 2 {
		t.Errorf("MaxStagnantTurns = %d, want 2", got)
	}

	hc := HarnessConfig()
	if !reflect.DeepEqual(hc.TargetRoles, form.RoleSet{form.RoleUser}) {
		t.Errorf("TargetRoles = %v, want [user]", hc.TargetRoles)
	}
	if hc.MaxPatchesPerTurn != 20 {
		t.Errorf("MaxPatchesPerTurn = %d, want default 20", hc.MaxPatchesPerTurn)
	}
}

func TestHarnessConfig_Defaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	got := HarnessConfig()
	if want := harness.DefaultConfig(); !reflect.DeepEqual(got, want) {
		t.Errorf("HarnessConfig() = %+v, want %+v", got, want)
	}
}

func TestHarnessConfig_InvalidFromOverride(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	Set(KeyHarnessFillMode, "sometimes")
	cfg := HarnessConfig()
	if cfg.FillMode != patch.FillMode("sometimes") {
		t.Fatalf("FillMode = %q", cfg.FillMode)
	}
	if err := cfg.Validate(); !errors.Is(err, harness.ErrInvalidConfig) {
		t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
	}
}

func TestGettersBeforeInitialize(t *testing.T) {
	ResetForTesting()
	defer ResetForTesting()

	if GetString("x") != "" || GetBool("x") || GetInt("x") != 0 || GetDuration("x") != 0 || GetStringSlice("x") != nil {
		t.Error("getters should return zero values before Initialize")
	}
}
