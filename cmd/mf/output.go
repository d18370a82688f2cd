package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// cliError is the --json shape of a fatal error.
type cliError struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// outputJSON prints v to stdout as indented JSON.
func outputJSON(v any) {
	if err := writeJSON(os.Stdout, v); err != nil {
		fmt.Fprintf(stderr, "Error: encoding JSON: %v\n", err)
		exit(1)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
