package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/deepresearch/pkg/search"
)

// fakeProvider returns canned responses regardless of query.
type fakeProvider struct {
	name      string
	responses []search.Response
	err       error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Search(ctx context.Context, queries []string, maxResults int, topic string) ([]search.Response, error) {
	return p.responses, p.err
}

func TestWebSearchToolName(t *testing.T) {
	tool := NewWebSearchTool(WebSearchConfig{Provider: &fakeProvider{name: "tavily"}})
	assert.Equal(t, "tavily_search", tool.Name)
	assert.Equal(t, KindCallable, tool.Kind)

	tool = NewWebSearchTool(WebSearchConfig{Provider: &fakeProvider{name: "searxng"}})
	assert.Equal(t, "searxng_search", tool.Name)
	assert.Contains(t, tool.Description, "metasearch")
}

func TestWebSearchEmptyResults(t *testing.T) {
	tool := NewWebSearchTool(WebSearchConfig{Provider: &fakeProvider{name: "tavily"}})

	out, err := tool.Handler(context.Background(),
		map[string]interface{}{"queries": []interface{}{"anything"}})
	require.NoError(t, err)
	assert.Equal(t, EmptyResultsMessage, out)
}

func TestWebSearchEmptyResultsSearxngWording(t *testing.T) {
	tool := NewWebSearchTool(WebSearchConfig{Provider: &fakeProvider{name: "searxng"}})

	out, err := tool.Handler(context.Background(),
		map[string]interface{}{"queries": []interface{}{"anything"}})
	require.NoError(t, err)
	assert.Equal(t, EmptyResultsMessageSearxng, out)
}

func TestWebSearchNoQueries(t *testing.T) {
	tool := NewWebSearchTool(WebSearchConfig{Provider: &fakeProvider{name: "tavily"}})

	out, err := tool.Handler(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, EmptyResultsMessage, out)
}

func TestWebSearchDedupesByFirstSeenURL(t *testing.T) {
	provider := &fakeProvider{
		name: "tavily",
		responses: []search.Response{
			{Query: "q1", Results: []search.Result{
				{URL: "https://a.example", Title: "A", Content: "first snippet"},
				{URL: "https://b.example", Title: "B", Content: "b snippet"},
			}},
			{Query: "q2", Results: []search.Result{
				{URL: "https://a.example", Title: "A duplicate", Content: "second snippet"},
				{URL: "https://c.example", Title: "C", Content: "c snippet"},
			}},
		},
	}
	tool := NewWebSearchTool(WebSearchConfig{Provider: provider})

	out, err := tool.Handler(context.Background(),
		map[string]interface{}{"queries": []interface{}{"q1", "q2"}})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Search results: \n\n"))
	assert.Contains(t, out, "--- SOURCE 1: A ---")
	assert.Contains(t, out, "--- SOURCE 2: B ---")
	assert.Contains(t, out, "--- SOURCE 3: C ---")
	assert.NotContains(t, out, "A duplicate")
	assert.Equal(t, 1, strings.Count(out, "URL: https://a.example"))
	assert.Contains(t, out, strings.Repeat("-", 80))
}

func TestWebSearchKeepsSnippetWithoutSummarizer(t *testing.T) {
	provider := &fakeProvider{
		name: "tavily",
		responses: []search.Response{
			{Query: "q", Results: []search.Result{
				{URL: "https://a.example", Title: "A", Content: "snippet", RawContent: "full page"},
			}},
		},
	}
	tool := NewWebSearchTool(WebSearchConfig{Provider: provider})

	out, err := tool.Handler(context.Background(),
		map[string]interface{}{"queries": []interface{}{"q"}})
	require.NoError(t, err)
	assert.Contains(t, out, "SUMMARY:\nsnippet")
}

func TestExtractQueries(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		expected []string
	}{
		{
			name:     "queries list",
			args:     map[string]interface{}{"queries": []interface{}{"a", "b"}},
			expected: []string{"a", "b"},
		},
		{
			name:     "queries string slice",
			args:     map[string]interface{}{"queries": []string{"a"}},
			expected: []string{"a"},
		},
		{
			name:     "queries scalar",
			args:     map[string]interface{}{"queries": "a"},
			expected: []string{"a"},
		},
		{
			name:     "query fallback",
			args:     map[string]interface{}{"query": "a"},
			expected: []string{"a"},
		},
		{
			name:     "empty",
			args:     map[string]interface{}{},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractQueries(tt.args))
		})
	}
}
