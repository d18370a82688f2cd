// Package debug holds the process-wide output switches (MF_DEBUG, --verbose,
// --quiet) and the structured logger that also feeds the events log.
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

var (
	envDebug = os.Getenv("MF_DEBUG") != ""
	verbose  bool
	quiet    bool

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	level = new(slog.LevelVar)

	mu         sync.Mutex
	logger     *slog.Logger
	eventsFile *os.File
)

// Enabled reports whether debug output is on, via MF_DEBUG or --verbose.
func Enabled() bool {
	return envDebug || verbose
}

func SetVerbose(v bool) {
	verbose = v
	syncLevel()
}

// SetQuiet suppresses normal output and raises the log level to errors.
func SetQuiet(q bool) {
	quiet = q
	syncLevel()
}

func IsQuiet() bool {
	return quiet
}

// syncLevel derives the stderr log level. Debug wins over quiet.
func syncLevel() {
	switch {
	case Enabled():
		level.Set(slog.LevelDebug)
	case quiet:
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// Logf writes to stderr only when debug output is on.
func Logf(format string, args ...any) {
	if Enabled() {
		fmt.Fprintf(stderr, format, args...)
	}
}

// PrintNormal writes progress to stdout unless quiet.
func PrintNormal(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stdout, format, args...)
	}
}

// Logger returns the process logger: text on stderr at the current level,
// fanned out to JSON in the events log at debug level while one is open.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = buildLogger(stderr, eventsFile)
	}
	return logger
}

func buildLogger(console, events io.Writer) *slog.Logger {
	syncLevel()
	text := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	if events == nil {
		return slog.New(text)
	}
	jsonl := slog.NewJSONHandler(events, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(slogmulti.Fanout(text, jsonl))
}

// OpenEventsLog appends JSON event records to path, creating its directory.
// A previously open log is closed.
func OpenEventsLog(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("debug: events log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("debug: open events log: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if eventsFile != nil {
		_ = eventsFile.Close()
	}
	eventsFile = f
	logger = buildLogger(stderr, f)
	return nil
}

func CloseEventsLog() error {
	mu.Lock()
	defer mu.Unlock()
	if eventsFile == nil {
		return nil
	}
	err := eventsFile.Close()
	eventsFile, logger = nil, nil
	return err
}

// LogEvent records a named event as a debug record, so it always reaches the
// events log but shows on stderr only when debugging.
func LogEvent(ctx context.Context, event string, attrs ...slog.Attr) {
	Logger().LogAttrs(ctx, slog.LevelDebug, event, attrs...)
}
