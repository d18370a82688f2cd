package fill

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/markform/internal/debug"
	"github.com/steveyegge/markform/internal/harness"
	"github.com/steveyegge/markform/internal/patch"
	"github.com/steveyegge/markform/internal/telemetry"
)

const scope = "github.com/steveyegge/markform/fill"

// RunOptions tunes the fill loop.
type RunOptions struct {
	// MaxStagnantTurns stops the loop after this many consecutive turns with
	// no accepted patch. Zero disables the guard.
	MaxStagnantTurns int
	// OnTurn, when set, is called after every committed turn.
	OnTurn func(TurnEvent)
}

// TurnEvent describes one committed turn to an OnTurn callback.
type TurnEvent struct {
	Turn     int
	Issues   int
	Result   harness.ApplyResult
	Stats    Stats
	Duration time.Duration
}

// RunResult is the outcome of Run.
type RunResult struct {
	State harness.State
	Turns int
	// Stalled is set when the stagnation guard stopped the loop.
	Stalled  bool
	Accepted int
	Rejected int
	Stats    Stats
}

var runMetrics struct {
	turns    metric.Int64Counter
	accepted metric.Int64Counter
	rejected metric.Int64Counter
	duration metric.Float64Histogram
}

var runMetricsOnce sync.Once

func initRunMetrics() {
	m := telemetry.Meter(scope)
	runMetrics.turns, _ = m.Int64Counter("mf.fill.turns",
		metric.WithDescription("Committed harness turns"),
		metric.WithUnit("{turn}"),
	)
	runMetrics.accepted, _ = m.Int64Counter("mf.fill.patches.accepted",
		metric.WithDescription("Patches accepted by the patch engine"),
		metric.WithUnit("{patch}"),
	)
	runMetrics.rejected, _ = m.Int64Counter("mf.fill.patches.rejected",
		metric.WithDescription("Patches rejected by the patch engine"),
		metric.WithUnit("{patch}"),
	)
	runMetrics.duration, _ = m.Float64Histogram("mf.fill.turn.duration",
		metric.WithDescription("Time to generate and apply one turn in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// Run alternates h.Step, f.GeneratePatches and h.Apply until the harness is
// complete, the turn limit is hit, the stagnation guard trips, or ctx is done.
// A filler error ends the run; the harness keeps every turn committed before
// it.
func Run(ctx context.Context, h *harness.Harness, f Filler, opts RunOptions) (RunResult, error) {
	runMetricsOnce.Do(initRunMetrics)

	ctx, span := telemetry.Tracer(scope).Start(ctx, "fill.run")
	defer span.End()

	var (
		res  RunResult
		prev []patch.Rejection
	)
	finish := func(err error) (RunResult, error) {
		res.State = h.State()
		res.Turns = h.TurnNumber()
		span.SetAttributes(
			attribute.String("mf.fill.state", string(res.State)),
			attribute.Int("mf.fill.turns", res.Turns),
			attribute.Int("mf.fill.accepted", res.Accepted),
			attribute.Int("mf.fill.rejected", res.Rejected),
			attribute.Bool("mf.fill.stalled", res.Stalled),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		debug.LogEvent(ctx, "fill.done",
			slog.String("state", string(res.State)),
			slog.Int("turns", res.Turns),
			slog.Int("accepted", res.Accepted),
			slog.Int("rejected", res.Rejected),
			slog.Bool("stalled", res.Stalled),
		)
		return res, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		step := h.Step()
		if step.State.IsTerminal() {
			return finish(nil)
		}

		t0 := time.Now()
		ar, stats, err := runTurn(ctx, h, f, step, prev)
		if err != nil {
			return finish(err)
		}
		elapsed := time.Since(t0)
		prev = ar.Rejected
		res.Accepted += len(ar.Accepted)
		res.Rejected += len(ar.Rejected)
		res.Stats.Add(stats)

		if runMetrics.turns != nil {
			runMetrics.turns.Add(ctx, 1)
			runMetrics.accepted.Add(ctx, int64(len(ar.Accepted)))
			runMetrics.rejected.Add(ctx, int64(len(ar.Rejected)))
			runMetrics.duration.Record(ctx, float64(elapsed.Milliseconds()))
		}

		if opts.OnTurn != nil {
			opts.OnTurn(TurnEvent{Turn: step.TurnNumber, Issues: len(step.Issues), Result: ar, Stats: stats, Duration: elapsed})
		}
		if ar.State.IsTerminal() {
			return finish(nil)
		}
		if opts.MaxStagnantTurns > 0 && h.StagnantTurns() >= opts.MaxStagnantTurns {
			res.Stalled = true
			return finish(nil)
		}
	}
}

func runTurn(ctx context.Context, h *harness.Harness, f Filler, step harness.StepResult, prev []patch.Rejection) (harness.ApplyResult, Stats, error) {
	ctx, span := telemetry.Tracer(scope).Start(ctx, "fill.turn")
	defer span.End()
	span.SetAttributes(
		attribute.Int("mf.fill.turn", step.TurnNumber),
		attribute.Int("mf.fill.issues", len(step.Issues)),
	)

	resp, err := f.GeneratePatches(ctx, Request{
		Turn:               step.TurnNumber,
		Issues:             step.Issues,
		Document:           h.Document().Clone(),
		MaxPatches:         h.Config().MaxPatchesPerTurn,
		PreviousRejections: prev,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return harness.ApplyResult{}, Stats{}, fmt.Errorf("fill: turn %d: %w", step.TurnNumber, err)
	}

	ar, err := h.Apply(resp.Patches, step.Issues)
	if err != nil {
		return harness.ApplyResult{}, resp.Stats, fmt.Errorf("fill: turn %d: %w", step.TurnNumber, err)
	}
	span.SetAttributes(
		attribute.Int("mf.fill.accepted", len(ar.Accepted)),
		attribute.Int("mf.fill.rejected", len(ar.Rejected)),
		attribute.Int("mf.fill.remaining", ar.RemainingIssues),
	)

	debug.LogEvent(ctx, "fill.turn",
		slog.Int("turn", step.TurnNumber),
		slog.Int("issues", len(step.Issues)),
		slog.Int("patches", len(resp.Patches)),
		slog.Int("accepted", len(ar.Accepted)),
		slog.Int("rejected", len(ar.Rejected)),
		slog.Int("remaining", ar.RemainingIssues),
		slog.String("state", string(ar.State)),
	)
	for _, r := range ar.Rejected {
		debug.LogEvent(ctx, "fill.rejected",
			slog.Int("turn", step.TurnNumber),
			slog.String("op", r.Patch.Op()),
			slog.String("target", r.Patch.Target()),
			slog.String("reason", string(r.Reason)),
			slog.String("message", r.Message),
		)
	}
	return ar, resp.Stats, nil
}
