package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

func init() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsStdinTerminal reports whether stdin is a terminal, which interactive
// prompts require.
func IsStdinTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR conventions, falling back
// to TTY detection.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" {
		return true
	}
	return IsTerminal()
}

// IsAgentMode reports whether output is being read by an agent rather than a
// person (MF_AGENT_MODE=1). Agent mode disables markdown rendering.
func IsAgentMode() bool {
	return os.Getenv("MF_AGENT_MODE") == "1"
}
