package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/ui"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <file>",
	GroupID: "forms",
	Short:   "Report issues, progress and form state",
	Long: `Inspect a form document and list what still needs attention, most urgent
first, along with a progress summary.

Examples:
  mf inspect report.form.md
  mf inspect report.form.md --roles user --json
  mf inspect report.form.md --watch`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		roles, _ := cmd.Flags().GetStringSlice("roles")
		watch, _ := cmd.Flags().GetBool("watch")
		opts := inspect.Options{TargetRoles: parseRoles(roles)}

		if watch {
			if err := watchInspect(rootCtx, args[0], opts); err != nil {
				FatalError("%v", err)
			}
			return
		}

		res, err := inspectFile(args[0], opts)
		if err != nil {
			FatalError("%v", err)
		}
		printInspection(res)
	},
}

func inspectFile(path string, opts inspect.Options) (inspect.Result, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return inspect.Result{}, err
	}
	return inspect.Inspect(doc, opts), nil
}

func printInspection(res inspect.Result) {
	if jsonOutput {
		outputJSON(res)
		return
	}
	fmt.Print(ui.RenderInspection(res))
}

func init() {
	inspectCmd.Flags().StringSlice("roles", nil, "Only report fields owned by these roles (default: all)")
	inspectCmd.Flags().BoolP("watch", "w", false, "Re-inspect whenever the file changes")
	rootCmd.AddCommand(inspectCmd)
}
