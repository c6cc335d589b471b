package llms

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Message is one turn of a model conversation. Tool result messages
// carry the id and name of the call they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolDefinition describes a tool offered to the model. Parameters is a
// JSON schema object. Raw, when set, is a provider-native tool payload
// (e.g. a hosted web search handle) passed through untranslated.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Raw         map[string]interface{} `json:"-"`
}

// ResponseFormat requests schema-constrained output from providers that
// support it natively.
type ResponseFormat struct {
	Name   string
	Schema map[string]interface{}
}

// Request is a single model generation call.
type Request struct {
	Model          string
	Messages       []Message
	Tools          []ToolDefinition
	MaxTokens      int
	ResponseFormat *ResponseFormat
}

// Usage reports token accounting for one generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the model's reply. Metadata carries provider-specific
// response details such as server-side tool use blocks.
type Response struct {
	Message    Message
	Usage      Usage
	StopReason string
	Metadata   map[string]interface{}
}

// ModelClient is the transport boundary to a chat model. Implementations
// translate Request into provider wire calls and return provider errors
// unmodified so that token-limit detection can inspect them.
type ModelClient interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a tool result message answering the given call.
func NewToolMessage(callID, toolName, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: toolName}
}
