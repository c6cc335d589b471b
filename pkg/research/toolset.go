package research

import (
	"context"
	"fmt"

	"github.com/kadirpekel/deepresearch/pkg/config"
	"github.com/kadirpekel/deepresearch/pkg/credentials"
	"github.com/kadirpekel/deepresearch/pkg/llms"
	"github.com/kadirpekel/deepresearch/pkg/observability"
	"github.com/kadirpekel/deepresearch/pkg/reasoning"
	"github.com/kadirpekel/deepresearch/pkg/search"
	"github.com/kadirpekel/deepresearch/pkg/summarizer"
	"github.com/kadirpekel/deepresearch/pkg/tools"
)

// ToolsetOption configures BuildToolRegistry.
type ToolsetOption func(*toolsetOptions)

type toolsetOptions struct {
	subjectToken string
	metrics      *observability.Metrics
}

// WithSubjectToken provides the identity token exchanged for MCP access
// tokens when the configured server requires auth.
func WithSubjectToken(token string) ToolsetOption {
	return func(o *toolsetOptions) {
		o.subjectToken = token
	}
}

// WithToolsetMetrics instruments tool executions and the summarizer's
// model calls.
func WithToolsetMetrics(metrics *observability.Metrics) ToolsetOption {
	return func(o *toolsetOptions) {
		o.metrics = metrics
	}
}

// BuildToolRegistry assembles the researcher tool registry from config:
// the control tools, the web search tool for the configured backend
// (or a provider-native handle), and any MCP server tools. The returned
// cleanup releases MCP subprocesses and must be called when the run
// ends.
func BuildToolRegistry(ctx context.Context, cfg *config.Config, client llms.ModelClient, store credentials.Store, opts ...ToolsetOption) (*tools.Registry, func(), error) {
	var options toolsetOptions
	for _, opt := range opts {
		opt(&options)
	}

	reg := tools.NewRegistry(tools.WithMetrics(options.metrics))
	cleanup := func() {}

	if err := reg.Register(tools.NewResearchCompleteTool()); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(tools.NewThinkTool()); err != nil {
		return nil, nil, err
	}

	switch cfg.SearchAPI {
	case config.SearchAPITavily, config.SearchAPISearxng:
		provider, err := search.NewProvider(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build search provider: %w", err)
		}
		sum := summarizer.New(llms.NewAdapter(client,
			cfg.SummarizationModel, cfg.SummarizationModelMaxTokens,
			llms.WithTextToolStrategy(reasoning.NewTextModeToolProtocol()),
			llms.WithMaxStructuredRetries(cfg.MaxStructuredOutputRetries),
			llms.WithMetrics(options.metrics)))
		if err := reg.Register(tools.NewWebSearchTool(tools.WebSearchConfig{
			Provider:         provider,
			Summarizer:       sum,
			MaxResults:       cfg.MaxSearchResults,
			MaxContentLength: cfg.MaxContentLength,
		})); err != nil {
			return nil, nil, err
		}

	case config.SearchAPIAnthropicNative:
		handle := search.AnthropicWebSearchHandle()
		if err := reg.Register(&tools.Tool{
			Name:        handle.Name,
			Description: "Web search executed by the model provider.",
			Kind:        tools.KindNative,
			Native:      handle.Raw,
		}); err != nil {
			return nil, nil, err
		}

	case config.SearchAPIOpenAINative:
		handle := search.OpenAIWebSearchHandle()
		if err := reg.Register(&tools.Tool{
			Name:        handle.Name,
			Description: "Web search executed by the model provider.",
			Kind:        tools.KindNative,
			Native:      handle.Raw,
		}); err != nil {
			return nil, nil, err
		}

	case config.SearchAPINone:
	}

	if cfg.MCP != nil {
		source := tools.NewMCPSource(cfg.MCP, store,
			tools.WithSubjectToken(options.subjectToken))
		if err := source.LoadTools(ctx, reg); err != nil {
			return nil, nil, fmt.Errorf("failed to load MCP tools: %w", err)
		}
		cleanup = func() { _ = source.Close() }
	}

	return reg, cleanup, nil
}
