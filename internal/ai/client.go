// Package ai wraps the external embedding, generation, and rerank providers
// behind small interfaces the pipeline can swap and mock.
package ai

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"

	"vidcite/pkg/models"
)

// Client provides embedding and answer-generation capabilities.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, system string, history []models.Message, userQuery string) (string, error)
	Dim() int
}

// RerankResult scores one input document; Index refers back into the input
// slice.
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

// Reranker is a second-pass relevance scorer over retrieved documents.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	GenModel   string
	Dim        int
	ProjectID  string
	Provider   Provider
	Location   string
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	ctx := context.Background()
	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a deterministic in-process implementation for tests and
// local runs without provider credentials.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = 64
	}
	return &StubClient{dim: dim}
}

// Embed hashes tokens into dim buckets and L2-normalizes, so identical text
// always embeds identically and token overlap raises cosine similarity.
func (s *StubClient) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%s.dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

var stubLabelRe = regexp.MustCompile(`\[(\d+)\]`)

// Generate produces a canned answer that uses every context label present in
// the system prompt, matching the numbered-context convention.
func (s *StubClient) Generate(_ context.Context, system string, _ []models.Message, userQuery string) (string, error) {
	labels := stubLabelRe.FindAllStringSubmatch(system, -1)
	if len(labels) == 0 {
		return "I don't have enough information from the video library to answer that.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here's what the videos say about %q.", strings.TrimSpace(userQuery))
	seen := map[string]bool{}
	for _, m := range labels {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		fmt.Fprintf(&b, " One covered this directly [%s].", m[1])
	}
	return b.String(), nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}

// StubReranker orders documents by shared-token count with the query.
type StubReranker struct{}

// Rerank implements Reranker with a deterministic token-overlap score.
func (StubReranker) Rerank(_ context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	qtoks := map[string]bool{}
	for _, t := range strings.Fields(strings.ToLower(query)) {
		qtoks[t] = true
	}
	out := make([]RerankResult, 0, len(documents))
	for i, d := range documents {
		n := 0
		for _, t := range strings.Fields(strings.ToLower(d)) {
			if qtoks[t] {
				n++
			}
		}
		score := 0.0
		if len(qtoks) > 0 {
			score = float64(n) / float64(len(qtoks)+len(strings.Fields(d))+1)
		}
		out = append(out, RerankResult{Index: i, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}
