package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/deepresearch/pkg/httpclient"
)

func TestTavilySearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.MaxResults)
		assert.Equal(t, "general", req.Topic)
		assert.True(t, req.IncludeRawContent)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"query": req.Query,
			"results": []map[string]interface{}{
				{
					"url":         "https://example.com/" + req.Query,
					"title":       "Result for " + req.Query,
					"content":     "snippet",
					"raw_content": "full page",
					"score":       0.9,
				},
			},
		})
	}))
	defer server.Close()

	provider := NewTavilyProvider("test-key", WithTavilyEndpoint(server.URL))
	responses, err := provider.Search(context.Background(), []string{"alpha", "beta"}, 3, "")
	require.NoError(t, err)
	require.Len(t, responses, 2)

	// Responses keep query order regardless of completion order.
	assert.Equal(t, "alpha", responses[0].Query)
	assert.Equal(t, "beta", responses[1].Query)
	require.Len(t, responses[0].Results, 1)
	assert.Equal(t, "https://example.com/alpha", responses[0].Results[0].URL)
	assert.Equal(t, "full page", responses[0].Results[0].RawContent)
	assert.Equal(t, 0.9, responses[0].Results[0].Score)
}

func TestTavilySearchAbsorbsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server error", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewTavilyProvider("test-key",
		WithTavilyEndpoint(server.URL),
		WithTavilyClient(httpclient.New(httpclient.WithMaxRetries(0))))
	responses, err := provider.Search(context.Background(), []string{"alpha"}, 3, "general")
	require.NoError(t, err)
	require.Len(t, responses, 1)

	// A failed query yields an empty response, not a batch error.
	assert.Equal(t, "alpha", responses[0].Query)
	assert.Empty(t, responses[0].Results)
}
