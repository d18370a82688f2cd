// Package ui renders markform documents, issues and progress for the terminal.
// Colors come from the Ayu palette and adapt to light and dark backgrounds.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// tone is the semantic meaning of a piece of output.
type tone int

const (
	tonePass tone = iota
	toneWarn
	toneFail
	toneMuted
	toneAccent
)

var palette = map[tone]lipgloss.AdaptiveColor{
	tonePass:   {Light: "#86b300", Dark: "#c2d94c"},
	toneWarn:   {Light: "#f2ae49", Dark: "#ffb454"},
	toneFail:   {Light: "#f07171", Dark: "#f07178"},
	toneMuted:  {Light: "#828c99", Dark: "#6c7680"},
	toneAccent: {Light: "#399ee6", Dark: "#59c2ff"},
}

func style(t tone) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(palette[t])
}

// Status icons
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconInfo = "ℹ"
)

// Tree layout for nested report lines
const (
	TreeLast   = "└─ "
	TreeIndent = "  "
)

func RenderPass(s string) string   { return style(tonePass).Render(s) }
func RenderWarn(s string) string   { return style(toneWarn).Render(s) }
func RenderFail(s string) string   { return style(toneFail).Render(s) }
func RenderMuted(s string) string  { return style(toneMuted).Render(s) }
func RenderAccent(s string) string { return style(toneAccent).Render(s) }

// RenderCategory renders a section header: bold, accented, upper case.
func RenderCategory(s string) string {
	return style(toneAccent).Bold(true).Render(strings.ToUpper(s))
}

func RenderPassIcon() string { return RenderPass(IconPass) }
func RenderWarnIcon() string { return RenderWarn(IconWarn) }
func RenderFailIcon() string { return RenderFail(IconFail) }
func RenderInfoIcon() string { return RenderAccent(IconInfo) }
