package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/deepresearch/pkg/httpclient"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// TavilyProvider queries the Tavily search API with raw page content
// included for downstream summarization.
type TavilyProvider struct {
	apiKey   string
	endpoint string
	client   *httpclient.Client
}

type TavilyOption func(*TavilyProvider)

func WithTavilyEndpoint(endpoint string) TavilyOption {
	return func(p *TavilyProvider) {
		p.endpoint = endpoint
	}
}

func WithTavilyClient(client *httpclient.Client) TavilyOption {
	return func(p *TavilyProvider) {
		p.client = client
	}
}

func NewTavilyProvider(apiKey string, opts ...TavilyOption) *TavilyProvider {
	p := &TavilyProvider{
		apiKey:   apiKey,
		endpoint: tavilyEndpoint,
		client:   httpclient.New(httpclient.WithTimeout(60 * time.Second)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *TavilyProvider) Name() string {
	return "tavily"
}

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	Topic             string `json:"topic"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		URL        string  `json:"url"`
		Title      string  `json:"title"`
		Content    string  `json:"content"`
		RawContent string  `json:"raw_content"`
		Score      float64 `json:"score"`
	} `json:"results"`
}

// Search runs all queries concurrently. A query that fails logs a
// warning and contributes an empty response.
func (p *TavilyProvider) Search(ctx context.Context, queries []string, maxResults int, topic string) ([]Response, error) {
	if topic == "" {
		topic = "general"
	}

	responses := make([]Response, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			resp, err := p.searchOne(gctx, query, maxResults, topic)
			if err != nil {
				slog.Warn("tavily query failed", "query", query, "error", err)
				responses[i] = Response{Query: query}
				return nil
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (p *TavilyProvider) searchOne(ctx context.Context, query string, maxResults int, topic string) (Response, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:             query,
		MaxResults:        maxResults,
		Topic:             topic,
		IncludeRawContent: true,
	})
	if err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("tavily returned HTTP %d", resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Response{}, fmt.Errorf("failed to decode tavily response: %w", err)
	}

	out := Response{Query: query}
	for _, r := range parsed.Results {
		out.Results = append(out.Results, Result{
			URL:        r.URL,
			Title:      r.Title,
			Content:    r.Content,
			RawContent: r.RawContent,
			Score:      r.Score,
		})
	}
	return out, nil
}
