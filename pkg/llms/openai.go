package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/deepresearch/pkg/httpclient"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient is a ModelClient over the OpenAI-compatible chat
// completions API. Many providers (OpenAI itself, Ollama, Together,
// Groq) speak this wire format, so one client covers both native and
// text-mode model families.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

type OpenAIOption func(*OpenAIClient)

func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(client *httpclient.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		c.client = client
	}
}

func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:  apiKey,
		baseURL: openAIDefaultBaseURL,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

type oaToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaRequest struct {
	Model          string                   `json:"model"`
	Messages       []oaMessage              `json:"messages"`
	Tools          []map[string]interface{} `json:"tools,omitempty"`
	MaxTokens      int                      `json:"max_tokens,omitempty"`
	ResponseFormat map[string]interface{}   `json:"response_format,omitempty"`
}

type oaResponse struct {
	Choices []struct {
		Message      oaMessage `json:"message"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate implements ModelClient.
func (c *OpenAIClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	payload := oaRequest{
		Model:     bareModel(req.Model),
		MaxTokens: req.MaxTokens,
	}

	for _, msg := range req.Messages {
		om := oaMessage{Role: string(msg.Role), Content: msg.Content}
		for _, call := range msg.ToolCalls {
			args, err := json.Marshal(call.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			oc := oaToolCall{ID: call.ID, Type: "function"}
			oc.Function.Name = call.Name
			oc.Function.Arguments = string(args)
			om.ToolCalls = append(om.ToolCalls, oc)
		}
		if msg.Role == RoleTool {
			om.ToolCallID = msg.ToolCallID
		}
		payload.Messages = append(payload.Messages, om)
	}

	for _, tool := range req.Tools {
		if tool.Raw != nil {
			payload.Tools = append(payload.Tools, tool.Raw)
			continue
		}
		payload.Tools = append(payload.Tools, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}

	if req.ResponseFormat != nil {
		payload.ResponseFormat = map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   req.ResponseFormat.Name,
				"schema": req.ResponseFormat.Schema,
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	resp, err := c.client.Do(httpReq)
	if err != nil && resp == nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Keep the provider's error text intact so token-limit
		// classification can inspect it.
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chat completion failed: HTTP %d: %s", resp.StatusCode, detail)
	}

	var parsed oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := parsed.Choices[0]
	message := Message{Role: RoleAssistant, Content: choice.Message.Content}
	for _, oc := range choice.Message.ToolCalls {
		args := map[string]interface{}{}
		if oc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(oc.Function.Arguments), &args); err != nil {
				args = map[string]interface{}{"input": oc.Function.Arguments}
			}
		}
		id := oc.ID
		if id == "" {
			id = uuid.NewString()
		}
		message.ToolCalls = append(message.ToolCalls, ToolCall{
			ID:        id,
			Name:      oc.Function.Name,
			Arguments: args,
		})
	}

	return &Response{
		Message:    message,
		StopReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// bareModel strips the "provider:" prefix from a model identifier.
func bareModel(model string) string {
	if idx := strings.Index(model, ":"); idx > 0 {
		return model[idx+1:]
	}
	return model
}
