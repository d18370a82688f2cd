package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/markform/internal/config"
)

var (
	jsonOutput  bool
	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output
	eventsLog   string

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "mf",
	Short: "mf - structured forms in Markdown",
	Long: `Markform documents are Markdown files with typed, validated fields.
Inspect what is missing, apply patches, and fill forms turn by turn with a
model, a reference document, or a person at the terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Println(currentVersion())
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyVerbosityFlags()
		applyViperOverrides(cmd)
		openEventsLog()
		initTelemetry()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownTelemetry()
		closeEventsLog()
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func init() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().StringVar(&eventsLog, "events-log", "", "Append structured fill events to this file (default: $MF_EVENTS_LOG)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "forms", Title: "Working With Forms:"})
	rootCmd.AddGroup(&cobra.Group{ID: "fill", Title: "Filling:"})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
