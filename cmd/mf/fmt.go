package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/lockfile"
	"github.com/steveyegge/markform/internal/markup"
)

// formatText parses text and renders it in canonical form. An empty style
// keeps the document's own syntax.
func formatText(text string, style form.Syntax) (string, error) {
	doc, err := markup.Parse(text)
	if err != nil {
		return "", err
	}
	if style == "" {
		style = doc.Syntax
	}
	return markup.SerializeAs(doc, style), nil
}

var fmtCmd = &cobra.Command{
	Use:     "fmt <file>",
	GroupID: "forms",
	Short:   "Rewrite a document in canonical form",
	Long: `Print a document in canonical form, optionally converting between tag
markers ({% field %}) and comment markers (<!-- field -->).

Examples:
  mf fmt report.form.md
  mf fmt report.form.md --syntax comments --write
  mf fmt report.form.md --check`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		syntaxFlag, _ := cmd.Flags().GetString("syntax")
		write, _ := cmd.Flags().GetBool("write")
		check, _ := cmd.Flags().GetBool("check")
		style, err := resolveSyntax(syntaxFlag)
		if err != nil {
			FatalError("%v", err)
		}

		if write {
			var changed bool
			err := updateDocument(path, func(doc *form.Document) (bool, error) {
				// Compare against the canonical form of what was read.
				before := markup.Serialize(doc)
				if style != "" {
					doc.Syntax = style
				}
				changed = markup.Serialize(doc) != before
				return true, nil
			})
			if err != nil {
				FatalError("%v", err)
			}
			if jsonOutput {
				outputJSON(map[string]interface{}{"file": path, "syntaxChanged": changed})
			}
			return
		}

		data, err := lockfile.ReadShared(path)
		if err != nil {
			FatalError("%v", err)
		}
		out, err := formatText(string(data), style)
		if err != nil {
			FatalError("%s: %v", path, err)
		}
		if check {
			formatted := out == string(data)
			if jsonOutput {
				outputJSON(map[string]interface{}{"file": path, "formatted": formatted})
			} else if !formatted {
				fmt.Fprintf(os.Stderr, "%s is not formatted\n", path)
			}
			if !formatted {
				os.Exit(1)
			}
			return
		}
		fmt.Print(out)
	},
}

func init() {
	fmtCmd.Flags().String("syntax", "", "Marker syntax to write: tags or comments (default: keep, or syntax.style)")
	fmtCmd.Flags().BoolP("write", "w", false, "Rewrite the file in place")
	fmtCmd.Flags().Bool("check", false, "Exit with status 1 if the file is not already formatted")
	rootCmd.AddCommand(fmtCmd)
}
