package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.Version=... -X main.Build=... -X main.Commit=...".
var (
	Version = "0.1.0"
	Build   = "dev"
	Commit  = ""
)

type versionInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit,omitempty"`
	Dirty   bool   `json:"dirty,omitempty"`
}

// currentVersion fills Commit from the embedded VCS stamp when no ldflag set it.
func currentVersion() versionInfo {
	v := versionInfo{Version: Version, Build: Build, Commit: Commit}
	if v.Commit != "" {
		return v
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			v.Commit = s.Value
		case "vcs.modified":
			v.Dirty = s.Value == "true"
		}
	}
	return v
}

func (v versionInfo) String() string {
	if v.Commit == "" {
		return fmt.Sprintf("mf version %s (%s)", v.Version, v.Build)
	}
	commit := v.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if v.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("mf version %s (%s: %s)", v.Version, v.Build, commit)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		v := currentVersion()
		if jsonOutput {
			outputJSON(v)
			return
		}
		fmt.Println(v)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
