package ui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// maxMarkdownWidth caps wrapping on wide terminals.
const maxMarkdownWidth = 100

// RenderMarkdown styles markdown for the terminal with glamour. Agent mode,
// disabled color and render failures all return md unchanged.
func RenderMarkdown(md string) string {
	if IsAgentMode() || !ShouldUseColor() {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(markdownWidth()),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func markdownWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return min(w, maxMarkdownWidth)
}
