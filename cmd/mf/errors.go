package main

import (
	"fmt"
	"io"
	"os"
)

// Swapped in tests.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// FatalError reports an error and exits 1. With --json the error goes to
// stderr as {"error": ...}.
//
//	if err := updateDocument(path, fn); err != nil {
//	    FatalError("%v", err)
//	}
func FatalError(format string, args ...any) {
	reportError(fmt.Sprintf(format, args...), "")
	exit(1)
}

// FatalErrorWithHint is FatalError with an actionable next step.
func FatalErrorWithHint(message, hint string) {
	reportError(message, hint)
	exit(1)
}

// WarnError reports a problem with an auxiliary feature (events log,
// telemetry, transcript) and carries on.
func WarnError(format string, args ...any) {
	fmt.Fprintf(stderr, "Warning: "+format+"\n", args...)
}

func reportError(message, hint string) {
	if jsonOutput {
		_ = writeJSON(stderr, cliError{Error: message, Hint: hint})
		return
	}
	fmt.Fprintf(stderr, "Error: %s\n", message)
	if hint != "" {
		fmt.Fprintf(stderr, "Hint: %s\n", hint)
	}
}
