// Package reranker applies a second-pass provider relevance score to the
// retriever's candidates, falling back to the input order when the provider
// is unavailable.
package reranker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"vidcite/internal/ai"
	"vidcite/pkg/models"
)

const (
	defaultTimeout    = 8 * time.Second
	defaultMaxRetries = 2
)

// Service wraps a rerank provider with a bounded timeout and retry budget.
type Service struct {
	Client     ai.Reranker
	Timeout    time.Duration
	MaxRetries uint64
	Logger     zerolog.Logger
}

// NewService creates a reranker service with default timeout and retries.
func NewService(client ai.Reranker, logger zerolog.Logger) *Service {
	return &Service{
		Client:     client,
		Timeout:    defaultTimeout,
		MaxRetries: defaultMaxRetries,
		Logger:     logger,
	}
}

// Rerank reorders candidates by provider relevance, truncated to topK. On
// provider failure (after retries) it returns the pre-rerank order truncated
// to topK; the second return reports whether the provider score was applied.
func (s *Service) Rerank(ctx context.Context, query string, candidates []models.RetrievalCandidate, topK int) ([]models.RetrievalCandidate, bool) {
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	if len(candidates) == 0 {
		return nil, false
	}
	if s.Client == nil {
		return truncate(candidates, topK), false
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Content
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var results []ai.RerankResult
	op := func() error {
		var err error
		results, err = s.Client.Rerank(ctx, query, docs, topK)
		return err
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.MaxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		s.Logger.Warn().Err(err).Int("candidates", len(candidates)).Msg("rerank failed, keeping retrieval order")
		return truncate(candidates, topK), false
	}

	out := make([]models.RetrievalCandidate, 0, topK)
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		c := candidates[r.Index]
		c.Score = r.Score
		out = append(out, c)
		if len(out) >= topK {
			break
		}
	}
	if len(out) == 0 {
		return truncate(candidates, topK), false
	}
	return out, true
}

func truncate(cs []models.RetrievalCandidate, k int) []models.RetrievalCandidate {
	out := make([]models.RetrievalCandidate, k)
	copy(out, cs[:k])
	return out
}
