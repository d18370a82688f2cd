package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/markform/internal/config"
	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/patch"
	"github.com/steveyegge/markform/internal/ui"
)

type rejectedPatch struct {
	Index   int                `json:"index"`
	Patch   patch.Wire         `json:"patch"`
	Reason  patch.RejectReason `json:"reason"`
	Message string             `json:"message"`
}

type applyReport struct {
	Accepted        []patch.Wire      `json:"accepted"`
	Rejected        []rejectedPatch   `json:"rejected"`
	FormState       inspect.FormState `json:"formState"`
	RemainingIssues int               `json:"remainingIssues"`
	Written         bool              `json:"written"`
}

type applyOptions struct {
	Mode   patch.FillMode
	Roles  form.RoleSet
	DryRun bool
}

// applyPatchFile decodes a JSON patch batch and applies it to the document at
// path. The document is rewritten only when a patch was accepted.
func applyPatchFile(path string, data []byte, opts applyOptions) (applyReport, error) {
	patches, err := patch.DecodeList(data)
	if err != nil {
		return applyReport{}, err
	}
	var rep applyReport
	err = updateDocument(path, func(doc *form.Document) (bool, error) {
		iopts := inspect.Options{TargetRoles: opts.Roles}
		before := inspect.Inspect(doc, iopts)
		res := patch.Apply(doc, patches, before.Issues, patch.Options{FillMode: opts.Mode, TargetRoles: opts.Roles})
		after := inspect.Inspect(doc, iopts)

		rep.Accepted = patch.EncodeList(res.Accepted)
		for _, r := range res.Rejected {
			rep.Rejected = append(rep.Rejected, rejectedPatch{Index: r.Index, Patch: patch.Encode(r.Patch), Reason: r.Reason, Message: r.Message})
		}
		rep.FormState = after.FormState
		rep.RemainingIssues = len(after.Issues)
		rep.Written = len(res.Accepted) > 0 && !opts.DryRun
		return rep.Written, nil
	})
	return rep, err
}

var applyCmd = &cobra.Command{
	Use:     "apply <file>",
	GroupID: "forms",
	Short:   "Apply a batch of patches to a document",
	Long: `Apply a JSON array of patches to a form document. Each patch is accepted or
rejected on its own; accepted patches are written back to the file. Exits with
status 1 when any patch is rejected.

Examples:
  mf apply report.form.md --patches patches.json
  echo '[{"op":"set_string","fieldId":"title","value":"Q3"}]' | mf apply report.form.md --patches -`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		patchesPath, _ := cmd.Flags().GetString("patches")
		roles, _ := cmd.Flags().GetStringSlice("roles")
		mode, _ := cmd.Flags().GetString("mode")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if mode == "" {
			mode = config.GetString(config.KeyHarnessFillMode)
		}
		opts := applyOptions{Mode: patch.FillMode(mode), Roles: resolveRoles(roles), DryRun: dryRun}
		if !opts.Mode.IsValid() {
			FatalError("unknown fill mode %q (want continue or overwrite)", mode)
		}

		var (
			data []byte
			err  error
		)
		if patchesPath == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(patchesPath) // #nosec G304 - user-supplied patch file
		}
		if err != nil {
			FatalError("reading patches: %v", err)
		}

		rep, err := applyPatchFile(args[0], data, opts)
		if err != nil {
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(rep)
		} else {
			verb := "Applied"
			if dryRun {
				verb = "Would apply"
			}
			fmt.Printf("%s %s %d patch(es) to %s\n", ui.RenderPassIcon(), verb, len(rep.Accepted), args[0])
			for _, r := range rep.Rejected {
				fmt.Printf("%s #%d %s %s: %s\n", ui.RenderFailIcon(), r.Index, r.Patch.Op, ui.RenderAccent(target(r.Patch)), r.Message)
				fmt.Printf("%s%s\n", ui.TreeIndent+ui.TreeLast, ui.RenderMuted(string(r.Reason)))
			}
			fmt.Printf("Form state: %s, %d issue(s) remaining\n", ui.RenderFormState(rep.FormState), rep.RemainingIssues)
		}
		if len(rep.Rejected) > 0 {
			os.Exit(1)
		}
	},
}

func target(w patch.Wire) string {
	switch {
	case w.FieldID != "":
		return w.FieldID
	case w.NoteID != "":
		return w.NoteID
	}
	return w.Ref
}

func init() {
	applyCmd.Flags().String("patches", "", "JSON patch file, or - for stdin")
	_ = applyCmd.MarkFlagRequired("patches")
	applyCmd.Flags().StringSlice("roles", nil, "Roles allowed to be written (default: harness.target-roles)")
	applyCmd.Flags().String("mode", "", "Fill mode: continue or overwrite (default: harness.fill-mode)")
	applyCmd.Flags().Bool("dry-run", false, "Report what would be accepted without writing the file")
	rootCmd.AddCommand(applyCmd)
}
