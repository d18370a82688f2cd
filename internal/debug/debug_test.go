package debug

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// withState resets the switches and captures stdout and stderr for one test.
func withState(t *testing.T, env, v, q bool) (out, errOut *bytes.Buffer) {
	t.Helper()
	oldEnv, oldV, oldQ := envDebug, verbose, quiet
	oldOut, oldErr := stdout, stderr
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	stdout, stderr = out, errOut
	envDebug, verbose, quiet = env, v, q
	syncLevel()
	mu.Lock()
	logger = nil
	mu.Unlock()
	t.Cleanup(func() {
		_ = CloseEventsLog()
		envDebug, verbose, quiet = oldEnv, oldV, oldQ
		stdout, stderr = oldOut, oldErr
		syncLevel()
		mu.Lock()
		logger = nil
		mu.Unlock()
	})
	return out, errOut
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		name   string
		env, v bool
		want   bool
	}{
		{"off", false, false, false},
		{"MF_DEBUG", true, false, true},
		{"verbose", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withState(t, tt.env, tt.v, false)
			if got := Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogf(t *testing.T) {
	_, errOut := withState(t, false, false, false)
	Logf("turn %d\n", 1)
	if errOut.Len() != 0 {
		t.Fatalf("Logf wrote %q with debug off", errOut.String())
	}
	SetVerbose(true)
	Logf("turn %d\n", 2)
	if got := errOut.String(); got != "turn 2\n" {
		t.Fatalf("Logf output = %q, want %q", got, "turn 2\n")
	}
}

func TestPrintNormal(t *testing.T) {
	out, _ := withState(t, false, false, false)
	PrintNormal("applied %d\n", 3)
	SetQuiet(true)
	if !IsQuiet() {
		t.Fatal("IsQuiet() = false after SetQuiet(true)")
	}
	PrintNormal("hidden\n")
	if got := out.String(); got != "applied 3\n" {
		t.Fatalf("stdout = %q, want %q", got, "applied 3\n")
	}
}

func TestSyncLevel(t *testing.T) {
	tests := []struct {
		name string
		v, q bool
		want slog.Level
	}{
		{"default", false, false, slog.LevelInfo},
		{"verbose", true, false, slog.LevelDebug},
		{"quiet", false, true, slog.LevelError},
		{"verbose wins", true, true, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withState(t, false, false, false)
			SetQuiet(tt.q)
			SetVerbose(tt.v)
			if got := level.Level(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger_StderrRespectsLevel(t *testing.T) {
	_, errOut := withState(t, false, false, true)
	l := Logger()
	l.Info("hidden")
	l.Error("shown")
	if out := errOut.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("stderr = %q", out)
	}
}

func TestLogEvent_EventsLog(t *testing.T) {
	_, errOut := withState(t, false, false, false)

	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	if err := OpenEventsLog(path); err != nil {
		t.Fatalf("OpenEventsLog: %v", err)
	}
	ctx := context.Background()
	LogEvent(ctx, "fill.turn", slog.Int("turn", 2), slog.Int("accepted", 3))
	LogEvent(ctx, "fill.done", slog.String("state", "complete"))
	if err := CloseEventsLog(); err != nil {
		t.Fatalf("CloseEventsLog: %v", err)
	}
	if errOut.Len() != 0 {
		t.Errorf("debug events reached stderr at info level: %q", errOut.String())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open events log: %v", err)
	}
	defer f.Close()
	var recs []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("events log line is not JSON: %v\n%s", err, sc.Text())
		}
		recs = append(recs, rec)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0]["msg"] != "fill.turn" || recs[0]["turn"] != float64(2) || recs[0]["accepted"] != float64(3) {
		t.Errorf("first event = %v", recs[0])
	}
	if recs[1]["msg"] != "fill.done" || recs[1]["state"] != "complete" {
		t.Errorf("second event = %v", recs[1])
	}
}

func TestCloseEventsLog_NotOpen(t *testing.T) {
	withState(t, false, false, false)
	if err := CloseEventsLog(); err != nil {
		t.Fatalf("CloseEventsLog with nothing open = %v, want nil", err)
	}
}
