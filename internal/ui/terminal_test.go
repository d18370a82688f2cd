package ui

import (
	"os"
	"testing"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NO_COLOR disables", map[string]string{"NO_COLOR": "1"}, false},
		{"empty NO_COLOR still disables", map[string]string{"NO_COLOR": ""}, false},
		{"CLICOLOR=0 disables", map[string]string{"CLICOLOR": "0"}, false},
		{"CLICOLOR_FORCE enables without a TTY", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"NO_COLOR beats CLICOLOR_FORCE", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"CLICOLOR=0 beats CLICOLOR_FORCE", map[string]string{"CLICOLOR": "0", "CLICOLOR_FORCE": "1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"} {
				unsetEnv(t, k)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tt.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAgentMode(t *testing.T) {
	t.Setenv("MF_AGENT_MODE", "1")
	if !IsAgentMode() {
		t.Error("IsAgentMode() = false with MF_AGENT_MODE=1")
	}
	t.Setenv("MF_AGENT_MODE", "true")
	if IsAgentMode() {
		t.Error("IsAgentMode() = true with MF_AGENT_MODE=true, only 1 enables it")
	}
}

func TestRenderMarkdown_PlainWhenColorOff(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	md := "# Trip\n\n- **City**: Lisbon\n"
	if got := RenderMarkdown(md); got != md {
		t.Errorf("RenderMarkdown with NO_COLOR = %q, want input unchanged", got)
	}
}

func TestIsTerminal(t *testing.T) {
	// go test does not attach stdout to a TTY; this only checks it is safe to call.
	t.Logf("IsTerminal() = %v", IsTerminal())
}
