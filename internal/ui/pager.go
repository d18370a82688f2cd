package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls how ToPager displays long output.
type PagerOptions struct {
	// NoPager prints directly (--no-pager).
	NoPager bool
}

// pager decides between printing and paging. Fields are swappable in tests.
type pager struct {
	out    io.Writer
	getenv func(string) string
	tty    func() bool
	height func() int
	run    func(argv []string, env []string, content string) error
}

func defaultPager() pager {
	return pager{
		out:    os.Stdout,
		getenv: os.Getenv,
		tty:    IsTerminal,
		height: stdoutHeight,
		run:    runPagerCommand,
	}
}

// ToPager shows content through $MF_PAGER, $PAGER or less when stdout is a
// terminal and content is taller than the screen. Otherwise it prints.
// MF_NO_PAGER disables paging.
func ToPager(content string, opts PagerOptions) error {
	return defaultPager().show(content, opts)
}

func (p pager) show(content string, opts PagerOptions) error {
	argv := p.command(content, opts)
	if argv == nil {
		_, err := fmt.Fprint(p.out, content)
		return err
	}
	env := os.Environ()
	if p.getenv("LESS") == "" {
		// raw ANSI, quit on one screen, keep the screen on exit
		env = append(env, "LESS=-RFX")
	}
	return p.run(argv, env, content)
}

// command returns the pager argv, or nil to print directly.
func (p pager) command(content string, opts PagerOptions) []string {
	if opts.NoPager || p.getenv("MF_NO_PAGER") != "" || !p.tty() {
		return nil
	}
	if h := p.height(); h > 0 && lineCount(content) < h {
		return nil
	}
	cmdline := p.getenv("MF_PAGER")
	if cmdline == "" {
		cmdline = p.getenv("PAGER")
	}
	if cmdline == "" {
		cmdline = "less"
	}
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		return nil
	}
	return argv
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

func stdoutHeight() int {
	_, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return h
}

func runPagerCommand(argv []string, env []string, content string) error {
	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 - pager is user configured
	cmd.Env = env
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ui: pager %s: %w", argv[0], err)
	}
	return nil
}
