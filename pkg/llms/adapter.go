package llms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/deepresearch/pkg/observability"
)

// Stop reasons reported for text-mode replies.
const (
	StopReasonFinalAnswer = "final_answer"
	StopReasonToolCall    = "tool_call"
	StopReasonNone        = "none"
)

// TextToolStrategy adapts tool calling onto models without native
// support. BuildMessages rewrites the transcript into a text protocol
// the model can follow; ParseResponse recovers an assistant message
// with structured tool calls from the raw reply, plus a stop reason.
type TextToolStrategy interface {
	BuildMessages(messages []Message, tools []ToolDefinition) []Message
	ParseResponse(content string) (Message, string)
}

// Adapter binds a ModelClient to one model identifier and exposes the
// three invocation shapes the research engine needs. Models without
// native tool or structured-output support are driven through the
// text-mode strategy transparently.
type Adapter struct {
	client               ModelClient
	model                string
	maxTokens            int
	maxStructuredRetries int
	textStrategy         TextToolStrategy
	metrics              *observability.Metrics
	tracer               trace.Tracer
}

type AdapterOption func(*Adapter)

func WithTextToolStrategy(strategy TextToolStrategy) AdapterOption {
	return func(a *Adapter) {
		a.textStrategy = strategy
	}
}

func WithMaxStructuredRetries(retries int) AdapterOption {
	return func(a *Adapter) {
		a.maxStructuredRetries = retries
	}
}

func WithMetrics(metrics *observability.Metrics) AdapterOption {
	return func(a *Adapter) {
		a.metrics = metrics
	}
}

func WithTracer(tracer trace.Tracer) AdapterOption {
	return func(a *Adapter) {
		a.tracer = tracer
	}
}

func NewAdapter(client ModelClient, model string, maxTokens int, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		client:               client,
		model:                model,
		maxTokens:            maxTokens,
		maxStructuredRetries: 3,
		tracer:               otel.Tracer("deepresearch/llms"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Model returns the bound model identifier.
func (a *Adapter) Model() string {
	return a.model
}

// generate issues one model call. A context-window overflow is
// recovered once: everything from the most recent assistant message
// onward is dropped and the call retried before the error surfaces.
func (a *Adapter) generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := a.generateOnce(ctx, req)
	if err == nil || !errors.Is(err, ErrTokenLimitExceeded) {
		return resp, err
	}

	truncated := RemoveUpToLastAIMessage(req.Messages)
	if len(truncated) == len(req.Messages) {
		// Nothing to drop; the overflow stands.
		return nil, err
	}
	slog.Warn("model context window exceeded, retrying with truncated transcript",
		"model", a.model, "dropped", len(req.Messages)-len(truncated))

	retry := *req
	retry.Messages = truncated
	return a.generateOnce(ctx, &retry)
}

// generateOnce issues a single model call, classifying context-window
// overflows for the retry layer above.
func (a *Adapter) generateOnce(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := a.tracer.Start(ctx, "llm.generate",
		trace.WithAttributes(attribute.String("model", a.model)))
	defer span.End()

	resp, err := a.client.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		if IsTokenLimitExceeded(err, a.model) {
			return nil, &TokenLimitError{Model: a.model, Err: err}
		}
		return nil, err
	}

	a.metrics.RecordModelCall(ctx, a.model, resp.Usage.TotalTokens)
	span.SetAttributes(
		attribute.Int("tokens.prompt", resp.Usage.PromptTokens),
		attribute.Int("tokens.completion", resp.Usage.CompletionTokens),
	)
	return resp, nil
}

// InvokeText runs a plain completion and returns the reply text.
func (a *Adapter) InvokeText(ctx context.Context, messages []Message) (string, error) {
	resp, err := a.generate(ctx, &Request{
		Model:     a.model,
		Messages:  messages,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// InvokeWithTools runs a completion with the given tools offered. For
// native providers the tools go on the wire; otherwise the transcript is
// rewritten through the text strategy and the reply parsed back into
// tool calls.
func (a *Adapter) InvokeWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error) {
	if SupportsStructuredOutput(a.model) {
		return a.generate(ctx, &Request{
			Model:     a.model,
			Messages:  messages,
			Tools:     tools,
			MaxTokens: a.maxTokens,
		})
	}

	if a.textStrategy == nil {
		return nil, fmt.Errorf("model %s requires a text tool strategy", a.model)
	}

	resp, err := a.generate(ctx, &Request{
		Model:     a.model,
		Messages:  a.textStrategy.BuildMessages(messages, tools),
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	resp.Message, resp.StopReason = a.textStrategy.ParseResponse(resp.Message.Content)
	return resp, nil
}

// InvokeStructured runs a completion constrained to the JSON schema of
// out and decodes the result into it. Native providers receive the
// schema as a response format; text-mode models get a JSON instruction
// appended to the last user message. Invalid output is retried with the
// validation error fed back, up to the configured retry budget.
func (a *Adapter) InvokeStructured(ctx context.Context, messages []Message, schemaName string, out interface{}) error {
	schema, err := SchemaFor(out)
	if err != nil {
		return err
	}

	native := SupportsStructuredOutput(a.model)
	working := append([]Message(nil), messages...)

	if !native {
		instruction := jsonInstruction(schema)
		if n := len(working); n > 0 && working[n-1].Role == RoleUser {
			working[n-1].Content += instruction
		} else {
			working = append(working, NewUserMessage(instruction))
		}
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxStructuredRetries; attempt++ {
		req := &Request{
			Model:     a.model,
			Messages:  working,
			MaxTokens: a.maxTokens,
		}
		if native {
			req.ResponseFormat = &ResponseFormat{Name: schemaName, Schema: schema}
		}

		resp, err := a.generate(ctx, req)
		if err != nil {
			return err
		}

		doc, err := ExtractJSON(resp.Message.Content)
		if err == nil {
			err = ValidateJSON(doc, schema, out)
			if err == nil {
				return nil
			}
		}
		lastErr = err

		// Feed the failure back so the next attempt can correct it.
		working = append(working,
			NewAssistantMessage(resp.Message.Content),
			NewUserMessage(fmt.Sprintf(
				"Your previous response was not a valid %s object: %v. Respond again with ONLY a valid JSON object.",
				schemaName, err)),
		)
	}

	return &StructuredOutputError{
		Model:    a.model,
		Schema:   schemaName,
		Attempts: a.maxStructuredRetries,
		Err:      lastErr,
	}
}
