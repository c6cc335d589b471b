// Package tools defines the tool surface offered to research agents:
// local callables, schema-only signal tools, provider-native handles,
// and remotely loaded MCP tools.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/kadirpekel/deepresearch/pkg/llms"
)

// Kind is the closed set of tool shapes.
type Kind int

const (
	// KindCallable tools run locally through a Handler.
	KindCallable Kind = iota
	// KindSchema tools exist only as a typed signal to the model;
	// invoking one echoes its arguments instead of doing work.
	KindSchema
	// KindNative tools are provider-hosted; they execute inside the
	// model API, never client-side.
	KindNative
)

// Handler executes a callable tool.
type Handler func(ctx context.Context, args map[string]interface{}) (string, error)

// Tool describes one tool. Exactly one of Handler (callable), schema
// payload (schema), or Native payload (native) is meaningful per Kind.
type Tool struct {
	Name        string
	Description string
	Kind        Kind
	Parameters  map[string]interface{}
	Native      map[string]interface{}
	Handler     Handler
}

// Definition renders the tool for the model API.
func (t *Tool) Definition() llms.ToolDefinition {
	return llms.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
		Raw:         t.Native,
	}
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Success       bool
	Content       string
	Error         string
	ToolName      string
	ExecutionTime time.Duration
}

// ToolRegistryError carries component context for registry failures.
type ToolRegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Action, e.Message)
}

func (e *ToolRegistryError) Unwrap() error {
	return e.Err
}
