package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/markform/internal/config"
	"github.com/steveyegge/markform/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Print the settings in effect after merging defaults, the config file and
MF_* environment variables.

Config file lookup, first found wins:
  .markform/config.yaml in the working directory or any parent
  $XDG_CONFIG_HOME/markform/config.yaml (or ~/.config/markform/config.yaml)`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings := redactSettings(config.AllSettings())
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"file":     config.ConfigFileUsed(),
				"settings": settings,
			})
			return
		}
		if path := config.ConfigFileUsed(); path != "" {
			fmt.Println(ui.RenderMuted("# " + path))
		} else {
			fmt.Println(ui.RenderMuted("# no config file; defaults and environment only"))
		}
		out, err := yaml.Marshal(settings)
		if err != nil {
			FatalError("encoding settings: %v", err)
		}
		fmt.Print(string(out))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// redactSettings masks the API key so config output is safe to share.
func redactSettings(settings map[string]interface{}) map[string]interface{} {
	if section, ok := settings["fill"].(map[string]interface{}); ok {
		if key, _ := section["api-key"].(string); key != "" {
			section["api-key"] = "********"
		}
	}
	return settings
}
