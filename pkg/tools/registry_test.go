package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/deepresearch/pkg/llms"
)

func TestRegisterRejectsCollisions(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewThinkTool()))

	err := reg.Register(NewThinkTool())
	require.Error(t, err)
	var regErr *ToolRegistryError
	assert.ErrorAs(t, err, &regErr)
}

func TestRegisterRejectsUnnamed(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(&Tool{}))
	assert.Error(t, reg.Register(nil))
}

func TestDefinitionsSortedByName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewThinkTool()))
	require.NoError(t, reg.Register(NewResearchCompleteTool()))

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "ResearchComplete", defs[0].Name)
	assert.Equal(t, "think_tool", defs[1].Name)
}

func TestExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewThinkTool()))
	require.NoError(t, reg.Register(NewResearchCompleteTool()))

	result := reg.ExecuteTool(context.Background(), "missing_tool", nil)
	assert.False(t, result.Success)
	assert.Equal(t,
		"Error: Tool 'missing_tool' not found. Available tools: ResearchComplete, think_tool",
		result.Content)
}

func TestExecuteSchemaToolEchoesArguments(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewResearchCompleteTool()))

	result := reg.ExecuteTool(context.Background(), "ResearchComplete", map[string]interface{}{})
	assert.True(t, result.Success)
	assert.Equal(t, "Called ResearchComplete: {}", result.Content)
}

func TestExecuteNativeToolRefuses(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Tool{
		Name: "web_search",
		Kind: KindNative,
		Native: map[string]interface{}{
			"type": "web_search_20250305",
		},
	}))

	result := reg.ExecuteTool(context.Background(), "web_search", nil)
	assert.False(t, result.Success)
	assert.Equal(t, "Tool web_search requires API-level support", result.Content)
}

func TestExecuteCallableTool(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewThinkTool()))

	result := reg.ExecuteTool(context.Background(), "think_tool",
		map[string]interface{}{"reflection": "I found enough"})
	assert.True(t, result.Success)
	assert.Equal(t, "Reflection recorded: I found enough", result.Content)
	assert.GreaterOrEqual(t, result.ExecutionTime.Nanoseconds(), int64(0))
}

func TestExecuteCallableToolError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Tool{
		Name: "flaky",
		Kind: KindCallable,
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", errors.New("backend down")
		},
	}))

	result := reg.ExecuteTool(context.Background(), "flaky", nil)
	assert.False(t, result.Success)
	assert.Equal(t, "Error executing flaky: backend down", result.Content)
}

func TestExecuteImplementsLoopContract(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewThinkTool()))

	out := reg.Execute(context.Background(), llms.ToolCall{
		Name:      "think_tool",
		Arguments: map[string]interface{}{"reflection": "ok"},
	})
	assert.Equal(t, "Reflection recorded: ok", out)
}
