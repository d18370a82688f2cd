// Package config loads markform settings from config files, environment
// variables and command-line overrides through a package-level viper instance.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProjectDirName is the per-project settings directory searched upward from
// the working directory.
const ProjectDirName = ".markform"

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
//
// Lookup order, first found wins:
//  1. .markform/config.yaml in the working directory or any parent
//  2. $XDG_CONFIG_HOME/markform/config.yaml (or ~/.config/markform/config.yaml)
//
// Environment variables MF_<SECTION>_<KEY> override file values, e.g.
// MF_HARNESS_MAX_TURNS for harness.max-turns.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("json", false)
	v.SetDefault("syntax.style", "")
	v.SetDefault("events-log", "")
	RegisterHarnessDefaults()
	RegisterFillDefaults()

	path := findConfigFile()
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	if dir, err := os.Getwd(); err == nil {
		for {
			candidate := filepath.Join(dir, ProjectDirName, "config.yaml")
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	candidate := filepath.Join(base, "markform", "config.yaml")
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return ""
}

// ConfigFileUsed returns the path of the loaded config file, or "" if none.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// ResetForTesting drops the viper instance so the next Initialize starts clean.
func ResetForTesting() {
	v = nil
}

// Set overrides a value for this process, e.g. from a command-line flag.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice retrieves a string slice configuration value. Environment
// values are split on commas.
func GetStringSlice(key string) []string {
	if v == nil {
		return nil
	}
	raw := v.Get(key)
	if s, ok := raw.(string); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return v.GetStringSlice(key)
}

// AllSettings returns the merged configuration as a nested map.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
