package search

import (
	"context"
	"fmt"

	"github.com/kadirpekel/deepresearch/pkg/config"
)

// Result is one search hit. RawContent, when present, is the full page
// text; Content is the engine's snippet.
type Result struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// Response pairs one query with its results.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Provider executes a batch of search queries. Implementations fan the
// queries out concurrently and absorb per-query failures: a failed
// query yields an empty Response, never an error for the whole batch.
type Provider interface {
	Name() string
	Search(ctx context.Context, queries []string, maxResults int, topic string) ([]Response, error)
}

// NewProvider builds the Provider selected by the config's search_api.
// Native provider search (anthropic/openai hosted tools) and "none"
// have no client-side Provider; callers handle those separately.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.SearchAPI {
	case config.SearchAPITavily:
		return NewTavilyProvider(cfg.TavilyAPIKey()), nil
	case config.SearchAPISearxng:
		return NewSearxngProvider(cfg.SearxngBaseURL), nil
	case config.SearchAPIAnthropicNative, config.SearchAPIOpenAINative, config.SearchAPINone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown search_api: %q", cfg.SearchAPI)
	}
}
