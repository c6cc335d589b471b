package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the engine's counters. Instruments built from the
// global meter are noop until a Manager installs a real provider.
type Metrics struct {
	ResearchRuns   metric.Int64Counter
	ModelCalls     metric.Int64Counter
	ToolExecutions metric.Int64Counter
	TokensUsed     metric.Int64Counter
}

// NewMetrics registers the engine counters on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("deepresearch")

	researchRuns, err := meter.Int64Counter("research_runs_total",
		metric.WithDescription("Completed research runs"))
	if err != nil {
		return nil, err
	}
	modelCalls, err := meter.Int64Counter("model_calls_total",
		metric.WithDescription("Model generation calls"))
	if err != nil {
		return nil, err
	}
	toolExecutions, err := meter.Int64Counter("tool_executions_total",
		metric.WithDescription("Tool executions"))
	if err != nil {
		return nil, err
	}
	tokensUsed, err := meter.Int64Counter("tokens_used_total",
		metric.WithDescription("Tokens consumed across model calls"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ResearchRuns:   researchRuns,
		ModelCalls:     modelCalls,
		ToolExecutions: toolExecutions,
		TokensUsed:     tokensUsed,
	}, nil
}

// RecordRun counts one finished research run by outcome.
func (m *Metrics) RecordRun(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.ResearchRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordModelCall counts one model generation and the tokens it used.
func (m *Metrics) RecordModelCall(ctx context.Context, model string, tokens int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.ModelCalls.Add(ctx, 1, attrs)
	if tokens > 0 {
		m.TokensUsed.Add(ctx, int64(tokens), attrs)
	}
}

// RecordToolExecution counts one tool dispatch by outcome.
func (m *Metrics) RecordToolExecution(ctx context.Context, tool string, success bool) {
	if m == nil {
		return
	}
	m.ToolExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	))
}
