package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/deepresearch/pkg/llms"
	"github.com/kadirpekel/deepresearch/pkg/observability"
	"github.com/kadirpekel/deepresearch/pkg/registry"
)

// Registry holds the tools available to one agent run and dispatches
// execution by tool kind. It satisfies the reasoning loop's executor
// interface: execution always yields text for the model, with failures
// rendered as error strings rather than returned as errors.
type Registry struct {
	tools   *registry.BaseRegistry[*Tool]
	metrics *observability.Metrics
	tracer  trace.Tracer
}

type RegistryOption func(*Registry)

func WithMetrics(metrics *observability.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  registry.NewBaseRegistry[*Tool](),
		tracer: otel.Tracer("deepresearch/tools"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool, rejecting name collisions.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return &ToolRegistryError{
			Component: "tools",
			Action:    "register",
			Message:   "tool must have a name",
		}
	}
	if err := r.tools.Register(tool.Name, tool); err != nil {
		return &ToolRegistryError{
			Component: "tools",
			Action:    "register",
			Message:   fmt.Sprintf("failed to register tool %q", tool.Name),
			Err:       err,
		}
	}
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	return r.tools.Get(name)
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools.Get(name)
	return ok
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	return r.tools.Names()
}

// Definitions renders all tools for the model API, in name order.
func (r *Registry) Definitions() []llms.ToolDefinition {
	names := r.tools.Names()
	defs := make([]llms.ToolDefinition, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools.Get(name); ok {
			defs = append(defs, tool.Definition())
		}
	}
	return defs
}

// ExecuteTool runs a tool by name and reports a full result. Unknown
// names and handler failures come back as unsuccessful results whose
// Content is the error text the model should see.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) *ToolResult {
	ctx, span := r.tracer.Start(ctx, "tools.execute",
		trace.WithAttributes(attribute.String("tool", name)))
	defer span.End()

	start := time.Now()
	result := &ToolResult{ToolName: name}
	defer func() {
		r.metrics.RecordToolExecution(ctx, name, result.Success)
	}()

	tool, ok := r.tools.Get(name)
	if !ok {
		result.Error = fmt.Sprintf("Error: Tool '%s' not found. Available tools: %s",
			name, strings.Join(r.tools.Names(), ", "))
		result.Content = result.Error
		result.ExecutionTime = time.Since(start)
		return result
	}

	switch tool.Kind {
	case KindNative:
		// Native tools execute inside the provider API; a client-side
		// call means the model hallucinated the dispatch.
		result.Error = fmt.Sprintf("Tool %s requires API-level support", name)
		result.Content = result.Error

	case KindSchema:
		payload, err := json.Marshal(args)
		if err != nil {
			payload = []byte("{}")
		}
		result.Success = true
		result.Content = fmt.Sprintf("Called %s: %s", name, payload)

	case KindCallable:
		content, err := tool.Handler(ctx, args)
		if err != nil {
			slog.Error("tool execution failed", "tool", name, "error", err)
			span.RecordError(err)
			result.Error = fmt.Sprintf("Error executing %s: %v", name, err)
			result.Content = result.Error
		} else {
			result.Success = true
			result.Content = content
		}
	}

	result.ExecutionTime = time.Since(start)
	return result
}

// Execute implements the reasoning loop's executor contract.
func (r *Registry) Execute(ctx context.Context, call llms.ToolCall) string {
	return r.ExecuteTool(ctx, call.Name, call.Arguments).Content
}
