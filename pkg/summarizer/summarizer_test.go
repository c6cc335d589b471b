package summarizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/deepresearch/pkg/llms"
)

type stubClient struct {
	content string
	err     error
}

func (c *stubClient) Generate(ctx context.Context, req *llms.Request) (*llms.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llms.Response{Message: llms.NewAssistantMessage(c.content)}, nil
}

func TestSummarize(t *testing.T) {
	client := &stubClient{content: `{"summary": "short version", "key_excerpts": "a quote"}`}
	s := New(llms.NewAdapter(client, "openai:gpt-4.1-mini", 1000))

	out := s.Summarize(context.Background(), "a very long webpage")
	assert.Contains(t, out, "<summary>\nshort version\n</summary>")
	assert.Contains(t, out, "<key_excerpts>\na quote\n</key_excerpts>")
}

func TestSummarizeFallsBackOnFailure(t *testing.T) {
	client := &stubClient{err: errors.New("model unavailable")}
	s := New(llms.NewAdapter(client, "openai:gpt-4.1-mini", 1000), WithTimeout(time.Second))

	out := s.Summarize(context.Background(), "original content")
	assert.Equal(t, "original content", out)
}

func TestRenderExtractRoundTrip(t *testing.T) {
	summary := Summary{Summary: "the gist", KeyExcerpts: "a notable quote"}
	rendered := Render(summary)

	recovered, ok := Extract(rendered)
	require.True(t, ok)
	assert.Equal(t, summary, recovered)
}

func TestExtractRejectsPlainText(t *testing.T) {
	_, ok := Extract("no delimiters here")
	assert.False(t, ok)
}
