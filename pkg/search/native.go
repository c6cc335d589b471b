package search

import (
	"github.com/kadirpekel/deepresearch/pkg/llms"
)

// AnthropicWebSearchHandle is the hosted web search tool payload for
// Anthropic models.
func AnthropicWebSearchHandle() llms.ToolDefinition {
	return llms.ToolDefinition{
		Name: "web_search",
		Raw: map[string]interface{}{
			"type":     "web_search_20250305",
			"name":     "web_search",
			"max_uses": 5,
		},
	}
}

// OpenAIWebSearchHandle is the hosted web search tool payload for
// OpenAI models.
func OpenAIWebSearchHandle() llms.ToolDefinition {
	return llms.ToolDefinition{
		Name: "web_search_preview",
		Raw: map[string]interface{}{
			"type": "web_search_preview",
		},
	}
}

// AnthropicWebSearchCalled reports whether an Anthropic response used
// the hosted web search tool, based on server tool use metadata.
func AnthropicWebSearchCalled(resp *llms.Response) bool {
	if resp == nil || resp.Metadata == nil {
		return false
	}
	usage, ok := resp.Metadata["server_tool_use"].(map[string]interface{})
	if !ok {
		return false
	}
	requests, ok := usage["web_search_requests"].(float64)
	return ok && requests > 0
}

// OpenAIWebSearchCalled reports whether an OpenAI response included a
// web search tool call, based on response output metadata.
func OpenAIWebSearchCalled(resp *llms.Response) bool {
	if resp == nil || resp.Metadata == nil {
		return false
	}
	outputs, ok := resp.Metadata["tool_outputs"].([]interface{})
	if !ok {
		return false
	}
	for _, output := range outputs {
		entry, ok := output.(map[string]interface{})
		if !ok {
			continue
		}
		if entry["type"] == "web_search_call" {
			return true
		}
	}
	return false
}
