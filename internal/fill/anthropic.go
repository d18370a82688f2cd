package fill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/markform/internal/debug"
	"github.com/steveyegge/markform/internal/patch"
	"github.com/steveyegge/markform/internal/telemetry"
)

// ErrAPIKeyRequired is returned when no Anthropic API key is configured.
var ErrAPIKeyRequired = errors.New("API key required")

const aiScope = "github.com/steveyegge/markform/ai"

// messenger is the slice of the Anthropic client the filler uses.
type messenger interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicOptions configures an AnthropicFiller.
type AnthropicOptions struct {
	APIKey        string
	Model         string
	MaxTokens     int
	MaxRetries    int
	RetryInterval time.Duration
}

// AnthropicFiller asks a Claude model for patches. The reply must carry a
// JSON array of wire patches; transient API failures are retried with
// exponential backoff.
type AnthropicFiller struct {
	messages      messenger
	model         anthropic.Model
	maxTokens     int64
	maxRetries    int
	retryInterval time.Duration
	tmpl          *template.Template
}

// NewAnthropicFiller creates an LLM filler. ANTHROPIC_API_KEY takes precedence
// over opts.APIKey.
func NewAnthropicFiller(opts AnthropicOptions) (*AnthropicFiller, error) {
	apiKey := opts.APIKey
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or fill.api-key", ErrAPIKeyRequired)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newAnthropicFiller(&client.Messages, opts)
}

func newAnthropicFiller(m messenger, opts AnthropicOptions) (*AnthropicFiller, error) {
	tmpl, err := newPromptTemplate()
	if err != nil {
		return nil, fmt.Errorf("fill: parse prompt template: %w", err)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	aiMetricsOnce.Do(initAIMetrics)
	return &AnthropicFiller{
		messages:      m,
		model:         anthropic.Model(opts.Model),
		maxTokens:     int64(opts.MaxTokens),
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		tmpl:          tmpl,
	}, nil
}

var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter(aiScope)
	aiMetrics.inputTokens, _ = m.Int64Counter("mf.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("mf.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("mf.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// GeneratePatches implements Filler. A reply without a patch list is an
// error. A single patch that fails to decode is passed on as
// patch.Malformed, so the engine rejects it and the model sees why on the
// next turn while the rest of the batch still applies.
func (a *AnthropicFiller) GeneratePatches(ctx context.Context, req Request) (Response, error) {
	prompt, err := renderPrompt(a.tmpl, req)
	if err != nil {
		return Response{}, fmt.Errorf("fill: render prompt: %w", err)
	}
	text, stats, err := a.callWithRetry(ctx, prompt)
	if err != nil {
		return Response{Stats: stats}, err
	}
	payload, err := extractPatchJSON(text)
	if err != nil {
		return Response{Stats: stats}, fmt.Errorf("fill: model reply: %w", err)
	}
	patches, err := patch.DecodeBatch(payload)
	if err != nil {
		return Response{Stats: stats}, fmt.Errorf("fill: model reply: %w", err)
	}
	malformed := 0
	for _, p := range patches {
		if _, ok := p.(patch.Malformed); ok {
			malformed++
		}
	}
	debug.LogEvent(ctx, "fill.llm",
		slog.Int("turn", req.Turn),
		slog.String("model", string(a.model)),
		slog.Int("patches", len(patches)),
		slog.Int("malformed", malformed),
		slog.Int64("input_tokens", stats.InputTokens),
		slog.Int64("output_tokens", stats.OutputTokens),
		slog.Int("attempts", stats.Attempts),
	)
	return Response{Patches: patches, Stats: stats}, nil
}

func (a *AnthropicFiller) newBackOff(ctx context.Context) backoff.BackOff {
	// BackOff implementations are stateful; build a fresh one per call.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.retryInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(a.maxRetries)), ctx)
}

func (a *AnthropicFiller) callWithRetry(ctx context.Context, prompt string) (string, Stats, error) {
	ctx, span := telemetry.Tracer(aiScope).Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("mf.ai.model", string(a.model)),
		attribute.String("mf.ai.operation", "fill"),
	)

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var (
		stats Stats
		text  string
	)
	op := func() error {
		stats.Attempts++
		t0 := time.Now()
		message, err := a.messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !isRetryable(err) {
				return backoff.Permanent(fmt.Errorf("non-retryable error: %w", err))
			}
			debug.Logger().Debug("anthropic request failed, retrying", "attempt", stats.Attempts, "error", err)
			return err
		}

		stats.InputTokens += message.Usage.InputTokens
		stats.OutputTokens += message.Usage.OutputTokens
		modelAttr := attribute.String("mf.ai.model", string(a.model))
		if aiMetrics.inputTokens != nil {
			aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
		}

		if len(message.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("unexpected response format: no content blocks"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return backoff.Permanent(fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type))
		}
		text = content.Text
		return nil
	}

	err := backoff.Retry(op, a.newBackOff(ctx))
	span.SetAttributes(
		attribute.Int64("mf.ai.input_tokens", stats.InputTokens),
		attribute.Int64("mf.ai.output_tokens", stats.OutputTokens),
		attribute.Int("mf.ai.attempts", stats.Attempts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if stats.Attempts > a.maxRetries && isRetryable(err) {
			return "", stats, fmt.Errorf("fill: failed after %d attempts: %w", stats.Attempts, err)
		}
		return "", stats, fmt.Errorf("fill: %w", err)
	}
	return text, stats, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return false
}
