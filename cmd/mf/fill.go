package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/markform/internal/config"
	"github.com/steveyegge/markform/internal/debug"
	"github.com/steveyegge/markform/internal/fill"
	"github.com/steveyegge/markform/internal/form"
	"github.com/steveyegge/markform/internal/harness"
	"github.com/steveyegge/markform/internal/inspect"
	"github.com/steveyegge/markform/internal/lockfile"
	"github.com/steveyegge/markform/internal/markup"
	"github.com/steveyegge/markform/internal/patch"
	"github.com/steveyegge/markform/internal/ui"
)

// Filler kinds accepted by --filler.
const (
	fillerLLM    = "llm"
	fillerReplay = "replay"
	fillerHuman  = "human"
)

type fillReport struct {
	File         string            `json:"file"`
	State        harness.State     `json:"state"`
	FormState    inspect.FormState `json:"formState"`
	Turns        int               `json:"turns"`
	Stalled      bool              `json:"stalled,omitempty"`
	Accepted     int               `json:"accepted"`
	Rejected     int               `json:"rejected"`
	InputTokens  int64             `json:"inputTokens,omitempty"`
	OutputTokens int64             `json:"outputTokens,omitempty"`
	Error        string            `json:"error,omitempty"`
}

var fillCmd = &cobra.Command{
	Use:     "fill <file>",
	GroupID: "fill",
	Short:   "Fill a document turn by turn",
	Long: `Run the fill loop over a form document. Each turn the open issues are
handed to a filler, its patches are applied, and the form is inspected again
until it is complete, the turn limit is reached, or the filler stalls.

Fillers:
  llm     ask a Claude model (needs ANTHROPIC_API_KEY or fill.api-key)
  replay  copy answers from a filled reference document (--reference)
  human   prompt at the terminal for user-role fields

Progress is written back even when the run stops early.

Examples:
  mf fill report.form.md
  mf fill report.form.md --filler replay --reference done.form.md --transcript run.yaml
  mf fill report.form.md --filler human --output mine.form.md`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		kind, _ := cmd.Flags().GetString("filler")
		output, _ := cmd.Flags().GetString("output")
		transcriptPath, _ := cmd.Flags().GetString("transcript")

		cfg, err := fillConfig(cmd, kind)
		if err != nil {
			FatalError("%v", err)
		}
		filler, err := newFiller(cmd, kind)
		if err != nil {
			if errors.Is(err, fill.ErrAPIKeyRequired) {
				FatalErrorWithHint(err.Error(), "Export ANTHROPIC_API_KEY, or use --filler replay or --filler human")
			}
			FatalError("%v", err)
		}

		// In-place fills hold the document lock for the whole run.
		var (
			doc  *form.Document
			lock *lockfile.Lock
		)
		if output == "" {
			lock, err = lockfile.Exclusive(path)
			if err != nil {
				FatalError("%v", err)
			}
			defer func() { _ = lock.Release() }()
			data, err := lock.Read()
			if err != nil {
				FatalError("%v", err)
			}
			if doc, err = markup.Parse(string(data)); err != nil {
				FatalError("%s: %v", path, err)
			}
		} else if doc, err = loadDocument(path); err != nil {
			FatalError("%v", err)
		}

		h, err := harness.New(doc, cfg)
		if err != nil {
			FatalError("%v", err)
		}
		res, runErr := fill.Run(rootCtx, h, filler, fill.RunOptions{
			MaxStagnantTurns: config.GetFillSettings().MaxStagnantTurns,
			OnTurn:           printTurn,
		})

		text := []byte(markup.Serialize(h.Document()))
		if lock != nil {
			err = lock.Write(text)
		} else {
			err = os.WriteFile(output, text, 0o644) // #nosec G306 - documents are not secret
		}
		if err != nil {
			FatalError("writing document: %v", err)
		}
		if transcriptPath != "" {
			if err := writeTranscript(transcriptPath, h.Transcript()); err != nil {
				WarnError("%v", err)
			}
		}

		rep := fillReport{
			File:         path,
			State:        res.State,
			FormState:    inspect.Inspect(h.Document(), inspect.Options{TargetRoles: cfg.TargetRoles}).FormState,
			Turns:        res.Turns,
			Stalled:      res.Stalled,
			Accepted:     res.Accepted,
			Rejected:     res.Rejected,
			InputTokens:  res.Stats.InputTokens,
			OutputTokens: res.Stats.OutputTokens,
		}
		if output != "" {
			rep.File = output
		}
		if runErr != nil {
			rep.Error = runErr.Error()
		}
		printFillReport(rep, runErr)
		if runErr != nil || rep.State != harness.StateComplete {
			_ = lock.Release()
			shutdownTelemetry()
			os.Exit(1)
		}
	},
}

// fillConfig builds the harness config from settings and command flags.
func fillConfig(cmd *cobra.Command, kind string) (harness.Config, error) {
	cfg := config.HarnessConfig()
	if cmd.Flags().Changed("max-turns") {
		cfg.MaxTurns, _ = cmd.Flags().GetInt("max-turns")
	}
	if cmd.Flags().Changed("mode") {
		mode, _ := cmd.Flags().GetString("mode")
		cfg.FillMode = patch.FillMode(mode)
	}
	if roles, _ := cmd.Flags().GetStringSlice("roles"); len(roles) > 0 {
		cfg.TargetRoles = parseRoles(roles)
	} else if kind == fillerHuman {
		cfg.TargetRoles = form.RoleSet{form.RoleUser}
	}
	return cfg, cfg.Validate()
}

func newFiller(cmd *cobra.Command, kind string) (fill.Filler, error) {
	switch kind {
	case fillerLLM:
		s := config.GetFillSettings()
		if m, _ := cmd.Flags().GetString("model"); m != "" {
			s.Model = m
		}
		return fill.NewAnthropicFiller(fill.AnthropicOptions{
			APIKey:        s.APIKey,
			Model:         s.Model,
			MaxTokens:     s.MaxTokens,
			MaxRetries:    s.MaxRetries,
			RetryInterval: s.RetryInterval,
		})
	case fillerReplay:
		ref, _ := cmd.Flags().GetString("reference")
		if ref == "" {
			return nil, fmt.Errorf("--filler replay needs --reference")
		}
		refDoc, err := loadDocument(ref)
		if err != nil {
			return nil, err
		}
		return fill.NewReplayFiller(refDoc)
	case fillerHuman:
		if !ui.IsStdinTerminal() {
			return nil, fmt.Errorf("--filler human needs an interactive terminal")
		}
		role := form.RoleUser
		if roles, _ := cmd.Flags().GetStringSlice("roles"); len(roles) > 0 {
			if rs := parseRoles(roles); len(rs) == 1 && rs[0] != form.RoleAny {
				role = rs[0]
			}
		}
		return fill.NewHumanFiller(role), nil
	}
	return nil, fmt.Errorf("unknown filler %q (want %s, %s or %s)", kind, fillerLLM, fillerReplay, fillerHuman)
}

func printTurn(ev fill.TurnEvent) {
	if jsonOutput {
		return
	}
	debug.PrintNormal("Turn %d: %d issue(s), %s accepted, %s rejected, %d remaining %s\n",
		ev.Turn, ev.Issues,
		ui.RenderPass(fmt.Sprint(len(ev.Result.Accepted))),
		rejectedCount(len(ev.Result.Rejected)),
		ev.Result.RemainingIssues,
		ui.RenderMuted(ev.Duration.Round(time.Millisecond).String()),
	)
	for _, r := range ev.Result.Rejected {
		debug.Logf("  rejected %s on %s: %s: %s\n", r.Patch.Op(), r.Patch.Target(), r.Reason, r.Message)
	}
}

func rejectedCount(n int) string {
	if n == 0 {
		return ui.RenderMuted("0")
	}
	return ui.RenderFail(fmt.Sprint(n))
}

func printFillReport(rep fillReport, runErr error) {
	if jsonOutput {
		outputJSON(rep)
		return
	}
	switch {
	case errors.Is(runErr, fill.ErrAborted):
		fmt.Fprintf(os.Stderr, "%s Fill aborted after %d turn(s); progress saved to %s\n", ui.RenderWarnIcon(), rep.Turns, rep.File)
	case runErr != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		fmt.Fprintf(os.Stderr, "Progress saved to %s\n", rep.File)
	case rep.State == harness.StateComplete:
		fmt.Printf("%s Form complete in %d turn(s): %s\n", ui.RenderPassIcon(), rep.Turns, rep.File)
	case rep.Stalled:
		fmt.Printf("%s Fill stalled after %d turn(s) without progress; form is %s\n", ui.RenderWarnIcon(), rep.Turns, ui.RenderFormState(rep.FormState))
	default:
		fmt.Printf("%s Stopped after %d turn(s) (%s); form is %s\n", ui.RenderWarnIcon(), rep.Turns, rep.State, ui.RenderFormState(rep.FormState))
	}
	if rep.InputTokens > 0 && !debug.IsQuiet() {
		fmt.Printf("%s\n", ui.RenderMuted(fmt.Sprintf("tokens: %d in, %d out", rep.InputTokens, rep.OutputTokens)))
	}
}

func writeTranscript(path string, t *harness.Transcript) error {
	f, err := os.Create(path) // #nosec G304 - user-supplied output path
	if err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	if err := harness.WriteTranscript(f, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing transcript: %w", err)
	}
	return f.Close()
}

func init() {
	fillCmd.Flags().String("filler", fillerLLM, "Filler: llm, replay or human")
	fillCmd.Flags().String("reference", "", "Filled reference document for --filler replay")
	fillCmd.Flags().String("transcript", "", "Write the session transcript (YAML) to this file")
	fillCmd.Flags().StringP("output", "o", "", "Write the filled document here instead of in place")
	fillCmd.Flags().StringSlice("roles", nil, "Roles to fill (default: harness.target-roles; user for --filler human)")
	fillCmd.Flags().Int("max-turns", 0, "Turn limit (default: harness.max-turns)")
	fillCmd.Flags().String("mode", "", "Fill mode: continue or overwrite (default: harness.fill-mode)")
	fillCmd.Flags().String("model", "", "Model for --filler llm (default: fill.model)")
	rootCmd.AddCommand(fillCmd)
}
