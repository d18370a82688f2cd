package telemetry

import (
	"context"
	"testing"
)

func TestEnabled(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Setenv("MF_OTEL_ENABLED", tt.value)
		if got := Enabled(); got != tt.want {
			t.Errorf("Enabled() with %q = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestInit_DisabledInstallsNoop(t *testing.T) {
	t.Setenv("MF_OTEL_ENABLED", "")
	if err := Init(context.Background(), "mf", "test"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_, span := Tracer("").Start(context.Background(), "noop")
	if span.IsRecording() {
		t.Error("span is recording with telemetry disabled")
	}
	span.End()
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantEndpt  string
		wantStdout bool
		wantSpans  bool
	}{
		{"defaults", nil, "", false, true},
		{"shared endpoint", map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4318"}, "localhost:4318", false, false},
		{"metrics endpoint wins", map[string]string{
			"OTEL_EXPORTER_OTLP_ENDPOINT":         "shared:4318",
			"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT": "metrics:4318",
		}, "metrics:4318", false, false},
		{"stdout with endpoint", map[string]string{
			"MF_OTEL_STDOUT":              "true",
			"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4318",
		}, "localhost:4318", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadSettings(func(k string) string { return tt.env[k] })
			if s.otlpEndpoint != tt.wantEndpt || s.stdout != tt.wantStdout || s.stdoutSpans() != tt.wantSpans {
				t.Errorf("settings = %+v (spans %v), want endpoint %q stdout %v spans %v",
					s, s.stdoutSpans(), tt.wantEndpt, tt.wantStdout, tt.wantSpans)
			}
		})
	}
}
