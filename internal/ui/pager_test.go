package ui

import (
	"bytes"
	"strings"
	"testing"
)

func testPager(env map[string]string, tty bool, height int) (pager, *bytes.Buffer, *[]string) {
	var out bytes.Buffer
	var ran []string
	return pager{
		out:    &out,
		getenv: func(k string) string { return env[k] },
		tty:    func() bool { return tty },
		height: func() int { return height },
		run: func(argv, _ []string, _ string) error {
			ran = argv
			return nil
		},
	}, &out, &ran
}

func TestPager_PrintsWhenNotPaging(t *testing.T) {
	long := strings.Repeat("line\n", 50)
	tests := []struct {
		name    string
		env     map[string]string
		tty     bool
		height  int
		content string
		opts    PagerOptions
	}{
		{"not a terminal", nil, false, 10, long, PagerOptions{}},
		{"no-pager flag", nil, true, 10, long, PagerOptions{NoPager: true}},
		{"MF_NO_PAGER", map[string]string{"MF_NO_PAGER": "1"}, true, 10, long, PagerOptions{}},
		{"fits on screen", nil, true, 40, "a\nb\n", PagerOptions{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out, ran := testPager(tt.env, tt.tty, tt.height)
			if err := p.show(tt.content, tt.opts); err != nil {
				t.Fatalf("show: %v", err)
			}
			if *ran != nil {
				t.Fatalf("pager ran %v, want direct print", *ran)
			}
			if out.String() != tt.content {
				t.Fatalf("printed %q, want %q", out.String(), tt.content)
			}
		})
	}
}

func TestPager_CommandSelection(t *testing.T) {
	long := strings.Repeat("x\n", 100)
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"default less", nil, "less"},
		{"PAGER", map[string]string{"PAGER": "more"}, "more"},
		{"MF_PAGER wins", map[string]string{"PAGER": "more", "MF_PAGER": "bat --plain"}, "bat --plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out, ran := testPager(tt.env, true, 20)
			if err := p.show(long, PagerOptions{}); err != nil {
				t.Fatalf("show: %v", err)
			}
			if got := strings.Join(*ran, " "); got != tt.want {
				t.Fatalf("pager = %q, want %q", got, tt.want)
			}
			if out.Len() != 0 {
				t.Fatalf("printed %d bytes while paging", out.Len())
			}
		})
	}
}

func TestLineCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\nb\n", 2},
	}
	for _, tt := range tests {
		if got := lineCount(tt.in); got != tt.want {
			t.Errorf("lineCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
