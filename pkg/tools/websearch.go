package tools

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/deepresearch/pkg/search"
	"github.com/kadirpekel/deepresearch/pkg/summarizer"
)

// Literal empty-result messages; the model uses these to adjust its
// querying, so the wording is part of the tool contract.
const (
	EmptyResultsMessage        = "No valid search results found. Please try different search queries or use a different search API."
	EmptyResultsMessageSearxng = "No valid search results found. Please try different search queries or check SearXNG server status."
)

const tavilySearchDescription = "A search engine optimized for comprehensive, accurate, and trusted results. " +
	"Useful for when you need to answer questions about current events."

const searxngSearchDescription = "A local privacy-focused metasearch engine that aggregates results from multiple sources. " +
	"Useful for when you need to answer questions about current events using local search infrastructure."

// WebSearchConfig wires the composite web search tool: provider fan-out,
// URL deduplication, content capping, and concurrent summarization.
type WebSearchConfig struct {
	Provider         search.Provider
	Summarizer       *summarizer.Summarizer
	MaxResults       int
	MaxContentLength int
	Topic            string

	// SummarizeSnippets summarizes engine snippets when no raw page
	// content is available (snippet-only engines like SearXNG).
	SummarizeSnippets bool
}

// NewWebSearchTool builds the search tool for the configured provider.
// The tool name and empty-result wording follow the provider.
func NewWebSearchTool(cfg WebSearchConfig) *Tool {
	name := cfg.Provider.Name() + "_search"
	description := tavilySearchDescription
	emptyMessage := EmptyResultsMessage
	if cfg.Provider.Name() == "searxng" {
		description = searxngSearchDescription
		emptyMessage = EmptyResultsMessageSearxng
		cfg.SummarizeSnippets = true
	}

	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = 50000
	}
	if cfg.Topic == "" {
		cfg.Topic = "general"
	}

	return &Tool{
		Name:        name,
		Description: description,
		Kind:        KindCallable,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"queries": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "List of search queries to execute",
				},
			},
			"required": []interface{}{"queries"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			queries := extractQueries(args)
			if len(queries) == 0 {
				return emptyMessage, nil
			}
			return runWebSearch(ctx, cfg, queries, emptyMessage)
		},
	}
}

// extractQueries pulls the query list from tool arguments, tolerating a
// scalar "query" as well.
func extractQueries(args map[string]interface{}) []string {
	var out []string
	switch v := args["queries"].(type) {
	case []interface{}:
		for _, q := range v {
			if s, ok := q.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = v
	case string:
		if v != "" {
			out = []string{v}
		}
	}
	if len(out) == 0 {
		if s, ok := args["query"].(string); ok && s != "" {
			out = []string{s}
		}
	}
	return out
}

type searchSource struct {
	url     string
	title   string
	content string
	raw     string
}

// runWebSearch implements the composite pipeline: fan queries out to
// the provider, dedupe hits by first-seen URL, summarize pages
// concurrently, and format a source-numbered blob for the transcript.
func runWebSearch(ctx context.Context, cfg WebSearchConfig, queries []string, emptyMessage string) (string, error) {
	responses, err := cfg.Provider.Search(ctx, queries, cfg.MaxResults, cfg.Topic)
	if err != nil {
		return "", err
	}

	// First occurrence of a URL wins, across queries in order.
	seen := make(map[string]bool)
	var sources []*searchSource
	for _, resp := range responses {
		for _, result := range resp.Results {
			if result.URL == "" || seen[result.URL] {
				continue
			}
			seen[result.URL] = true
			sources = append(sources, &searchSource{
				url:     result.URL,
				title:   result.Title,
				content: result.Content,
				raw:     result.RawContent,
			})
		}
	}

	if len(sources) == 0 {
		return emptyMessage, nil
	}

	// Summarize everything with page content in parallel; sources
	// without summarizable content keep their snippet.
	if cfg.Summarizer != nil {
		g, gctx := errgroup.WithContext(ctx)
		for _, source := range sources {
			input := source.raw
			if input == "" && cfg.SummarizeSnippets {
				input = source.content
			}
			if input == "" {
				continue
			}
			g.Go(func() error {
				if len(input) > cfg.MaxContentLength {
					input = input[:cfg.MaxContentLength]
				}
				source.content = cfg.Summarizer.Summarize(gctx, input)
				return nil
			})
		}
		_ = g.Wait()
	}

	var out strings.Builder
	out.WriteString("Search results: \n\n")
	for i, source := range sources {
		out.WriteString(fmt.Sprintf("\n\n--- SOURCE %d: %s ---\n", i+1, source.title))
		out.WriteString(fmt.Sprintf("URL: %s\n\n", source.url))
		out.WriteString(fmt.Sprintf("SUMMARY:\n%s\n\n", source.content))
		out.WriteString("\n\n" + strings.Repeat("-", 80) + "\n")
	}
	return out.String(), nil
}
