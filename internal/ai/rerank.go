package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// RerankConfig points at a Cohere-compatible /v1/rerank endpoint. Most rerank
// providers (Cohere, Jina, Voyage) speak this wire shape.
type RerankConfig struct {
	Endpoint string
	APIKey   string
	Model    string
}

// HTTPReranker calls an external rerank service over HTTP.
type HTTPReranker struct {
	config RerankConfig
	http   *http.Client
}

// NewHTTPReranker builds a reranker client for the configured endpoint.
func NewHTTPReranker(config RerankConfig) *HTTPReranker {
	if config.Endpoint == "" {
		config.Endpoint = "https://api.cohere.com/v1/rerank"
	}
	if config.Model == "" {
		config.Model = "rerank-english-v3.0"
	}
	return &HTTPReranker{
		config: config,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Rerank scores documents against the query, best first, truncated to topN.
func (c *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("RERANK_API_KEY unset")
	}
	if len(documents) == 0 {
		return nil, nil
	}

	payload := map[string]any{
		"model":     c.config.Model,
		"query":     query,
		"documents": documents,
		"top_n":     topN,
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("rerank non-200: " + resp.Status)
	}

	var out struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, errors.New("rerank returned no results")
	}

	rs := make([]RerankResult, 0, len(out.Results))
	for _, r := range out.Results {
		rs = append(rs, RerankResult{Index: r.Index, Score: r.RelevanceScore})
	}
	return rs, nil
}
