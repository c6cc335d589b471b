package reasoning

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/deepresearch/pkg/llms"
)

// ActionType classifies a text-mode model response.
type ActionType int

const (
	ActionNone ActionType = iota
	ActionToolCall
	ActionFinalAnswer
)

// TextModeToolProtocol drives tool calling over plain text for models
// without native tool support. The model is instructed to reply in a
// Thought / Action / Action Input format and its replies are parsed
// back into structured tool calls.
type TextModeToolProtocol struct{}

func NewTextModeToolProtocol() *TextModeToolProtocol {
	return &TextModeToolProtocol{}
}

// formatTools renders tool names, descriptions and parameters as a
// bullet list for the instruction prompt.
func formatTools(tools []llms.ToolDefinition) string {
	var lines []string
	for _, tool := range tools {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", tool.Name, tool.Description))
		props, ok := tool.Parameters["properties"].(map[string]interface{})
		if !ok {
			continue
		}
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			info, _ := props[name].(map[string]interface{})
			desc, _ := info["description"].(string)
			lines = append(lines, fmt.Sprintf("  - %s: %s", name, desc))
		}
	}
	return strings.Join(lines, "\n")
}

func reactInstruction(toolsText string) string {
	return fmt.Sprintf(`You are a helpful AI assistant that can use tools to help answer questions.

Available Tools:
%s

To use a tool, respond in this exact format:
Thought: [Your reasoning about what to do next]
Action: [Tool name from the list above]
Action Input: {"parameter": "value"}

When you have enough information to provide a final answer, respond in this format:
Thought: [Your final reasoning]
Final Answer: [Your complete answer]

IMPORTANT:
- Always start with "Thought:" to explain your reasoning
- Use "Action:" with the EXACT tool name from the available tools list
- Use "Action Input:" with valid JSON containing the required parameters
- Use "Final Answer:" only when you're ready to provide the complete final response
- Only call ONE tool per response`, toolsText)
}

// BuildMessages rewrites a transcript for a text-mode model: the
// protocol instruction (with any prior system prompt prepended) becomes
// the system message, and tool results become user observations.
func (p *TextModeToolProtocol) BuildMessages(messages []llms.Message, tools []llms.ToolDefinition) []llms.Message {
	instruction := reactInstruction(formatTools(tools))

	var systemPrompt string
	rest := make([]llms.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llms.RoleSystem:
			if systemPrompt == "" {
				systemPrompt = msg.Content
			}
		case llms.RoleTool:
			rest = append(rest, llms.NewUserMessage(
				fmt.Sprintf("Observation from %s:\n%s", msg.ToolName, msg.Content)))
		default:
			rest = append(rest, llms.Message{Role: msg.Role, Content: msg.Content})
		}
	}

	if systemPrompt != "" {
		instruction = systemPrompt + "\n\n" + instruction
	}

	out := make([]llms.Message, 0, len(rest)+1)
	out = append(out, llms.NewSystemMessage(instruction))
	out = append(out, rest...)
	return out
}

// Parse classifies a model reply. Returns the action type plus the
// final answer text (for ActionFinalAnswer) or the tool call (for
// ActionToolCall).
func (p *TextModeToolProtocol) Parse(text string) (ActionType, string, *llms.ToolCall) {
	text = strings.TrimSpace(text)

	if strings.Contains(text, "Final Answer:") || strings.Contains(text, "FINAL ANSWER:") {
		marker := "Final Answer:"
		if !strings.Contains(text, marker) {
			marker = "FINAL ANSWER:"
		}
		parts := strings.SplitN(text, marker, 2)
		return ActionFinalAnswer, strings.TrimSpace(parts[1]), nil
	}

	if strings.Contains(text, "Action:") || strings.Contains(text, "ACTION:") {
		marker := "Action:"
		if !strings.Contains(text, marker) {
			marker = "ACTION:"
		}
		actionPart := strings.SplitN(text, marker, 2)[1]
		toolName := strings.TrimSpace(strings.SplitN(strings.TrimSpace(actionPart), "\n", 2)[0])
		if toolName == "" {
			return ActionNone, "", nil
		}

		input := map[string]interface{}{}
		inputMarker := "Action Input:"
		if !strings.Contains(text, inputMarker) && strings.Contains(text, "ACTION INPUT:") {
			inputMarker = "ACTION INPUT:"
		}
		if strings.Contains(text, inputMarker) {
			inputPart := strings.TrimSpace(strings.SplitN(text, inputMarker, 2)[1])
			if strings.Contains(inputPart, "{") {
				if doc, err := llms.ExtractJSON(inputPart); err == nil {
					if err := json.Unmarshal([]byte(doc), &input); err != nil {
						input = map[string]interface{}{"input": inputPart}
					}
				} else {
					input = map[string]interface{}{"input": inputPart}
				}
			} else if inputPart != "" {
				input = map[string]interface{}{"input": inputPart}
			}
		}

		return ActionToolCall, "", &llms.ToolCall{
			ID:        uuid.NewString(),
			Name:      toolName,
			Arguments: NormalizeToolParameters(toolName, input),
		}
	}

	return ActionNone, "", nil
}

// ParseResponse implements llms.TextToolStrategy. Final answers become
// plain assistant messages; tool calls carry normalized parameters and
// a fresh id. Replies with no recognizable action are passed through
// with the "none" stop reason.
func (p *TextModeToolProtocol) ParseResponse(content string) (llms.Message, string) {
	action, answer, call := p.Parse(content)
	switch action {
	case ActionFinalAnswer:
		return llms.NewAssistantMessage(answer), llms.StopReasonFinalAnswer
	case ActionToolCall:
		msg := llms.NewAssistantMessage(content)
		msg.ToolCalls = []llms.ToolCall{*call}
		return msg, llms.StopReasonToolCall
	default:
		return llms.NewAssistantMessage(content), llms.StopReasonNone
	}
}

// reflectionAliases are parameter names models commonly substitute for
// think_tool's reflection argument.
var reflectionAliases = []string{"prompt", "thought", "thinking", "question", "input", "content"}

// NormalizeToolParameters repairs common parameter-name drift in model
// tool calls so near-miss invocations still execute.
func NormalizeToolParameters(toolName string, input map[string]interface{}) map[string]interface{} {
	if input == nil {
		input = map[string]interface{}{}
	}
	normalized := make(map[string]interface{}, len(input))
	for k, v := range input {
		normalized[k] = v
	}

	switch {
	case toolName == "think_tool":
		if _, ok := normalized["reflection"]; ok {
			break
		}
		for _, alias := range reflectionAliases {
			if v, ok := normalized[alias]; ok {
				delete(normalized, alias)
				normalized["reflection"] = v
				break
			}
		}
		if _, ok := normalized["reflection"]; !ok && len(normalized) > 0 {
			keys := make([]string, 0, len(normalized))
			for k := range normalized {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			normalized["reflection"] = normalized[keys[0]]
			delete(normalized, keys[0])
		}
		if _, ok := normalized["reflection"]; !ok {
			normalized["reflection"] = "Reflecting on progress..."
		}

	case strings.HasSuffix(toolName, "search"):
		if _, ok := normalized["queries"]; !ok {
			if q, ok := normalized["query"]; ok {
				delete(normalized, "query")
				normalized["queries"] = coerceQueries(q)
			}
		} else if _, ok := normalized["queries"].([]interface{}); !ok {
			normalized["queries"] = coerceQueries(normalized["queries"])
		}
	}

	return normalized
}

func coerceQueries(v interface{}) []interface{} {
	switch q := v.(type) {
	case string:
		return []interface{}{q}
	case []interface{}:
		return q
	case []string:
		out := make([]interface{}, len(q))
		for i, s := range q {
			out[i] = s
		}
		return out
	default:
		return []interface{}{fmt.Sprintf("%v", v)}
	}
}
