package llms

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient replays scripted responses and records every request.
type stubClient struct {
	mu        sync.Mutex
	responses []*Response
	errs      []error
	requests  []*Request
}

func (c *stubClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)

	i := len(c.requests) - 1
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return &Response{Message: NewAssistantMessage("")}, nil
}

func textResponse(content string) *Response {
	return &Response{Message: NewAssistantMessage(content)}
}

func TestInvokeText(t *testing.T) {
	client := &stubClient{responses: []*Response{textResponse("hello")}}
	adapter := NewAdapter(client, "openai:gpt-4.1", 1000)

	out, err := adapter.InvokeText(context.Background(), []Message{NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	require.Len(t, client.requests, 1)
	assert.Equal(t, "openai:gpt-4.1", client.requests[0].Model)
	assert.Equal(t, 1000, client.requests[0].MaxTokens)
}

func TestInvokeTextClassifiesTokenLimit(t *testing.T) {
	client := &stubClient{errs: []error{errors.New("HTTP 400: context_length_exceeded")}}
	adapter := NewAdapter(client, "openai:gpt-4.1", 1000)

	_, err := adapter.InvokeText(context.Background(), []Message{NewUserMessage("hi")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenLimitExceeded))
	// Nothing to truncate in a transcript without assistant turns, so
	// no retry is issued.
	assert.Len(t, client.requests, 1)
}

func TestInvokeTextRetriesOnceAfterTruncation(t *testing.T) {
	client := &stubClient{
		errs:      []error{errors.New("HTTP 400: context_length_exceeded")},
		responses: []*Response{nil, textResponse("recovered")},
	}
	adapter := NewAdapter(client, "openai:gpt-4.1", 1000)

	messages := []Message{
		NewUserMessage("question"),
		NewAssistantMessage("a very long earlier answer"),
		NewUserMessage("follow-up"),
	}
	out, err := adapter.InvokeText(context.Background(), messages)
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)

	// One retry, with everything from the last assistant turn dropped.
	require.Len(t, client.requests, 2)
	retried := client.requests[1].Messages
	require.Len(t, retried, 1)
	assert.Equal(t, "question", retried[0].Content)
}

func TestInvokeTextTokenLimitSurvivesFailedRetry(t *testing.T) {
	overflow := errors.New("HTTP 400: context_length_exceeded")
	client := &stubClient{errs: []error{overflow, overflow}}
	adapter := NewAdapter(client, "openai:gpt-4.1", 1000)

	messages := []Message{
		NewUserMessage("question"),
		NewAssistantMessage("answer"),
		NewUserMessage("follow-up"),
	}
	_, err := adapter.InvokeText(context.Background(), messages)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenLimitExceeded))
	assert.Len(t, client.requests, 2)
}

func TestInvokeWithToolsNative(t *testing.T) {
	client := &stubClient{responses: []*Response{textResponse("done")}}
	adapter := NewAdapter(client, "openai:gpt-4.1", 1000)

	tools := []ToolDefinition{{Name: "think_tool", Description: "reflect"}}
	_, err := adapter.InvokeWithTools(context.Background(), []Message{NewUserMessage("hi")}, tools)
	require.NoError(t, err)

	// Native providers get the tools on the wire, transcript untouched.
	require.Len(t, client.requests, 1)
	assert.Equal(t, tools, client.requests[0].Tools)
	assert.Equal(t, RoleUser, client.requests[0].Messages[0].Role)
}

// fakeStrategy is a minimal text-mode strategy for adapter tests.
type fakeStrategy struct{}

func (fakeStrategy) BuildMessages(messages []Message, tools []ToolDefinition) []Message {
	out := []Message{NewSystemMessage("protocol")}
	return append(out, messages...)
}

func (fakeStrategy) ParseResponse(content string) (Message, string) {
	if content == "call" {
		msg := NewAssistantMessage(content)
		msg.ToolCalls = []ToolCall{{ID: "1", Name: "think_tool", Arguments: map[string]interface{}{}}}
		return msg, StopReasonToolCall
	}
	return NewAssistantMessage(content), StopReasonNone
}

func TestInvokeWithToolsTextMode(t *testing.T) {
	client := &stubClient{responses: []*Response{textResponse("call")}}
	adapter := NewAdapter(client, "ollama:llama2", 1000, WithTextToolStrategy(fakeStrategy{}))

	resp, err := adapter.InvokeWithTools(context.Background(),
		[]Message{NewUserMessage("hi")}, []ToolDefinition{{Name: "think_tool"}})
	require.NoError(t, err)

	// The transcript was rewritten and the reply parsed back.
	assert.Equal(t, "protocol", client.requests[0].Messages[0].Content)
	assert.Empty(t, client.requests[0].Tools)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "think_tool", resp.Message.ToolCalls[0].Name)
	assert.Equal(t, StopReasonToolCall, resp.StopReason)
}

func TestInvokeWithToolsTextModeRequiresStrategy(t *testing.T) {
	adapter := NewAdapter(&stubClient{}, "ollama:llama2", 1000)
	_, err := adapter.InvokeWithTools(context.Background(), []Message{NewUserMessage("hi")}, nil)
	assert.Error(t, err)
}

func TestInvokeStructuredNative(t *testing.T) {
	client := &stubClient{responses: []*Response{textResponse(`{"answer": "42", "confidence": 99}`)}}
	adapter := NewAdapter(client, "openai:gpt-4.1", 1000)

	var out sampleOutput
	err := adapter.InvokeStructured(context.Background(),
		[]Message{NewUserMessage("answer")}, "sample", &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.Answer)

	require.NotNil(t, client.requests[0].ResponseFormat)
	assert.Equal(t, "sample", client.requests[0].ResponseFormat.Name)
}

func TestInvokeStructuredTextModeRetries(t *testing.T) {
	client := &stubClient{responses: []*Response{
		textResponse("not json at all"),
		textResponse(`{"answer": "42", "confidence": 99}`),
	}}
	adapter := NewAdapter(client, "ollama:llama2", 1000, WithTextToolStrategy(fakeStrategy{}))

	var out sampleOutput
	err := adapter.InvokeStructured(context.Background(),
		[]Message{NewUserMessage("answer")}, "sample", &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.Answer)

	require.Len(t, client.requests, 2)
	// Text-mode: no response format, JSON instruction appended to the
	// last user message.
	assert.Nil(t, client.requests[0].ResponseFormat)
	assert.Contains(t, client.requests[0].Messages[0].Content,
		"IMPORTANT: You must respond with a valid JSON object")

	// The second attempt carries the failure feedback.
	second := client.requests[1].Messages
	assert.Equal(t, "not json at all", second[len(second)-2].Content)
	assert.Contains(t, second[len(second)-1].Content, "was not a valid sample object")
}

func TestInvokeStructuredExhaustsRetries(t *testing.T) {
	client := &stubClient{responses: []*Response{
		textResponse("nope"),
		textResponse("still nope"),
	}}
	adapter := NewAdapter(client, "ollama:llama2", 1000,
		WithTextToolStrategy(fakeStrategy{}),
		WithMaxStructuredRetries(2))

	var out sampleOutput
	err := adapter.InvokeStructured(context.Background(),
		[]Message{NewUserMessage("answer")}, "sample", &out)
	require.Error(t, err)

	var structErr *StructuredOutputError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, 2, structErr.Attempts)
	assert.Equal(t, "sample", structErr.Schema)
}
