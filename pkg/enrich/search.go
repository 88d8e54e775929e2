package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// SearchHit is one web-search result.
type SearchHit struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// WebSearcher is the narrow web-search capability the workers consume.
type WebSearcher interface {
	SearchWeb(ctx context.Context, query string, topN int) ([]SearchHit, error)
}

// HTTPSearcher calls a JSON web-search endpoint.
type HTTPSearcher struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewHTTPSearcher builds a searcher against the configured endpoint.
func NewHTTPSearcher(endpoint, apiKey string, timeout time.Duration) *HTTPSearcher {
	return &HTTPSearcher{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// SearchWeb runs one bounded search call.
func (s *HTTPSearcher) SearchWeb(ctx context.Context, query string, topN int) ([]SearchHit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(topN))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich: web search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("enrich: web search returned %s", resp.Status)
	}

	var decoded struct {
		Results []SearchHit `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("enrich: decoding search response: %w", err)
	}
	if len(decoded.Results) > topN {
		decoded.Results = decoded.Results[:topN]
	}
	return decoded.Results, nil
}
