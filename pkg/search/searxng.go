package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/deepresearch/pkg/httpclient"
)

// SearxngProvider queries a local SearXNG metasearch instance over its
// JSON API. SearXNG returns snippets only, so Content doubles as the
// summarization input downstream.
type SearxngProvider struct {
	baseURL string
	client  *httpclient.Client
	timeout time.Duration
}

type SearxngOption func(*SearxngProvider)

func WithSearxngClient(client *httpclient.Client) SearxngOption {
	return func(p *SearxngProvider) {
		p.client = client
	}
}

func WithSearxngTimeout(timeout time.Duration) SearxngOption {
	return func(p *SearxngProvider) {
		p.timeout = timeout
	}
}

func NewSearxngProvider(baseURL string, opts ...SearxngOption) *SearxngProvider {
	p := &SearxngProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.New(httpclient.WithTimeout(30 * time.Second)),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SearxngProvider) Name() string {
	return "searxng"
}

type searxngResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs all queries concurrently against the instance. Failed
// queries are absorbed with a warning so one unreachable query does not
// sink the batch.
func (p *SearxngProvider) Search(ctx context.Context, queries []string, maxResults int, topic string) ([]Response, error) {
	responses := make([]Response, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(gctx, p.timeout)
			defer cancel()

			resp, err := p.searchOne(qctx, query, maxResults)
			if err != nil {
				slog.Warn("searxng query failed", "query", query, "error", err)
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

func (p *SearxngProvider) searchOne(ctx context.Context, query string, maxResults int) (Response, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("pageno", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return Response{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("searxng returned HTTP %d", resp.StatusCode)
	}

	var parsed searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Response{}, fmt.Errorf("failed to decode searxng response: %w", err)
	}

	out := Response{Query: query}
	for _, r := range parsed.Results {
		if len(out.Results) >= maxResults {
			break
		}
		title := r.Title
		if title == "" {
			title = "No title"
		}
		out.Results = append(out.Results, Result{
			URL:     r.URL,
			Title:   title,
			Content: r.Content,
		})
	}
	return out, nil
}
