package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/markform/internal/config"
	"github.com/steveyegge/markform/internal/debug"
	"github.com/steveyegge/markform/internal/telemetry"
)

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyVerbosityFlags propagates --verbose and --quiet flags to the debug
// package so all subsequent log output respects the user's preference.
func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
}

// applyViperOverrides merges viper config values (from config file + env vars)
// into flags that weren't explicitly set on the command line.
// Priority: flags > viper (config file + env vars) > defaults.
func applyViperOverrides(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool("json")
	}
	if !cmd.Flags().Changed("events-log") && eventsLog == "" {
		eventsLog = config.GetString("events-log")
	}
}

func openEventsLog() {
	if eventsLog == "" {
		return
	}
	if err := debug.OpenEventsLog(eventsLog); err != nil {
		WarnError("%v", err)
	}
}

func closeEventsLog() {
	if err := debug.CloseEventsLog(); err != nil {
		WarnError("closing events log: %v", err)
	}
}

func initTelemetry() {
	if err := telemetry.Init(rootCtx, "mf", Version); err != nil {
		WarnError("telemetry disabled: %v", err)
	}
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetry.Shutdown(ctx); err != nil {
		debug.Logger().Debug("telemetry shutdown", "error", err)
	}
}
