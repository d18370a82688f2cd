package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/lockfile"
	"github.com/steveyegge/markform/internal/markup"
	"github.com/steveyegge/markform/internal/ui"
)

// validationProblem is one reason a document failed validation.
type validationProblem struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

type validationReport struct {
	File     string              `json:"file"`
	Syntax   form.Syntax         `json:"syntax"`
	Valid    bool                `json:"valid"`
	Problems []validationProblem `json:"problems,omitempty"`
}

// validateText checks that text uses only the expected marker syntax and
// parses cleanly. An empty expected syntax means the detected one.
func validateText(text string, expected form.Syntax) validationReport {
	if expected == "" {
		expected = markup.DetectSyntax(text)
	}
	rep := validationReport{Syntax: expected}
	for _, v := range markup.ValidateSyntaxConsistency(text, expected) {
		rep.Problems = append(rep.Problems, validationProblem{
			Line:    v.Line,
			Message: fmt.Sprintf("%s-style marker %q in a %s document", v.FoundSyntax, v.Pattern, expected),
		})
	}
	if len(rep.Problems) > 0 {
		return rep
	}
	if _, err := markup.Parse(text); err != nil {
		var pe *markup.ParseError
		if errors.As(err, &pe) {
			rep.Problems = append(rep.Problems, validationProblem{Line: pe.Line, Message: pe.Reason})
		} else {
			rep.Problems = append(rep.Problems, validationProblem{Message: err.Error()})
		}
	}
	rep.Valid = len(rep.Problems) == 0
	return rep
}

var validateCmd = &cobra.Command{
	Use:     "validate <file>",
	GroupID: "forms",
	Short:   "Check that a document parses and uses one marker syntax",
	Long: `Validate a form document. Every marker must use the same syntax and the
document must parse. Exits with status 1 when problems are found.

Examples:
  mf validate report.form.md
  mf validate report.form.md --syntax comments`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		syntaxFlag, _ := cmd.Flags().GetString("syntax")
		expected, err := resolveSyntax(syntaxFlag)
		if err != nil {
			FatalError("%v", err)
		}
		data, err := lockfile.ReadShared(args[0])
		if err != nil {
			FatalError("%v", err)
		}

		rep := validateText(string(data), expected)
		rep.File = args[0]
		if jsonOutput {
			outputJSON(rep)
		} else if rep.Valid {
			fmt.Printf("%s %s is valid (%s syntax)\n", ui.RenderPassIcon(), args[0], rep.Syntax)
		} else {
			fmt.Printf("%s %s has %d problem(s)\n", ui.RenderFailIcon(), args[0], len(rep.Problems))
			for _, p := range rep.Problems {
				if p.Line > 0 {
					fmt.Printf("%sline %d: %s\n", ui.TreeIndent, p.Line, p.Message)
				} else {
					fmt.Printf("%s%s\n", ui.TreeIndent, p.Message)
				}
			}
		}
		if !rep.Valid {
			os.Exit(1)
		}
	},
}

func init() {
	validateCmd.Flags().String("syntax", "", "Expected marker syntax: tags or comments (default: detected)")
	rootCmd.AddCommand(validateCmd)
}
