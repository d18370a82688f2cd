package main

import (
	"github.com/spf13/cobra"

	"github.com/steveyegge/markform/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <file>",
	GroupID: "forms",
	Short:   "Render a document's answers for reading",
	Long: `Show a form document as rendered Markdown: groups, fields, answers and
notes, without markers. Long output goes through $MF_PAGER or $PAGER.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		noPager, _ := cmd.Flags().GetBool("no-pager")
		doc, err := loadDocument(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		md := ui.FormMarkdown(doc)
		if jsonOutput {
			outputJSON(map[string]string{"file": args[0], "markdown": md})
			return
		}
		if err := ui.ToPager(ui.RenderMarkdown(md), ui.PagerOptions{NoPager: noPager}); err != nil {
			FatalError("%v", err)
		}
	},
}

func init() {
	showCmd.Flags().Bool("no-pager", false, "Disable pager output")
	rootCmd.AddCommand(showCmd)
}
