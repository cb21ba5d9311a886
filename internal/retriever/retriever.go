// Package retriever runs the hybrid vector+lexical search that produces the
// ranked candidate list for one query.
package retriever

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"vidcite/internal/ai"
	"vidcite/internal/store"
	"vidcite/internal/text"
	"vidcite/pkg/models"
)

// Default merge weights. Agreement between the two signals is rewarded by
// summing, so a candidate found by both outranks a single-source one.
const (
	DefaultVectorWeight  = 0.7
	DefaultLexicalWeight = 0.3
)

// Stats counts hits per sub-search for observability.
type Stats struct {
	VectorHits  int
	LexicalHits int
	Merged      int
}

// Service fans a query out to vector and lexical search and merges the
// results.
type Service struct {
	Client        ai.Client
	Store         store.ChunkStore
	VectorWeight  float64
	LexicalWeight float64
	Logger        zerolog.Logger
}

// NewService creates a retriever with the default merge weights.
func NewService(client ai.Client, st store.ChunkStore, logger zerolog.Logger) *Service {
	return &Service{
		Client:        client,
		Store:         st,
		VectorWeight:  DefaultVectorWeight,
		LexicalWeight: DefaultLexicalWeight,
		Logger:        logger,
	}
}

// Search runs both sub-searches concurrently, always scoped to one creator.
// A vector-side failure degrades to lexical-only (and vice versa); an error
// is returned only when both sides fail. An empty result is a valid
// "no knowledge" outcome.
func (s *Service) Search(ctx context.Context, query, creatorID string, limit int, threshold float64) ([]models.RetrievalCandidate, Stats, error) {
	if limit <= 0 {
		limit = 5
	}
	sideCap := int(math.Ceil(float64(limit) * 1.5))

	var (
		vecHits []models.RetrievalCandidate
		lexHits []models.RetrievalCandidate
		vecErr  error
		lexErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vecHits, vecErr = s.vectorSearch(gctx, query, creatorID, sideCap, threshold)
		return nil
	})
	g.Go(func() error {
		lexHits, lexErr = s.lexicalSearch(gctx, query, creatorID, sideCap)
		return nil
	})
	_ = g.Wait()

	if vecErr != nil {
		s.Logger.Warn().Err(vecErr).Str("creator_id", creatorID).Msg("vector search failed, degrading to lexical")
	}
	if lexErr != nil {
		s.Logger.Warn().Err(lexErr).Str("creator_id", creatorID).Msg("lexical search failed, degrading to vector")
	}
	if vecErr != nil && lexErr != nil {
		return nil, Stats{}, errors.Join(vecErr, lexErr)
	}

	stats := Stats{VectorHits: len(vecHits), LexicalHits: len(lexHits)}
	merged := s.merge(vecHits, lexHits, limit)
	stats.Merged = len(merged)
	return merged, stats, nil
}

func (s *Service) vectorSearch(ctx context.Context, query, creatorID string, limit int, threshold float64) ([]models.RetrievalCandidate, error) {
	vec, err := s.Client.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.Store.VectorQuery(ctx, creatorID, vec, threshold, limit)
}

func (s *Service) lexicalSearch(ctx context.Context, query, creatorID string, limit int) ([]models.RetrievalCandidate, error) {
	terms := text.Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	hits, err := s.Store.LexicalQuery(ctx, creatorID, terms, limit)
	if err != nil {
		return nil, err
	}
	// Score each hit by the fraction of query terms its content contains.
	// The AND tsquery uses stemmed matching, so raw-token fractions below
	// 1.0 are possible and meaningful.
	for i := range hits {
		hits[i].Score = termFraction(hits[i].Content, terms)
	}
	return hits, nil
}

func termFraction(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	toks := map[string]bool{}
	for _, t := range text.Tokenize(content) {
		toks[t] = true
	}
	n := 0
	for _, t := range terms {
		if toks[t] {
			n++
		}
	}
	return float64(n) / float64(len(terms))
}

// merge normalizes each candidate's score by its source weight and sums the
// weighted scores of candidates present in both lists.
func (s *Service) merge(vecHits, lexHits []models.RetrievalCandidate, limit int) []models.RetrievalCandidate {
	byID := map[string]*models.RetrievalCandidate{}
	order := make([]string, 0, len(vecHits)+len(lexHits))

	for _, h := range vecHits {
		c := h
		c.Score = h.Score * s.VectorWeight
		byID[c.ChunkID] = &c
		order = append(order, c.ChunkID)
	}
	for _, h := range lexHits {
		if prev, ok := byID[h.ChunkID]; ok {
			prev.Score += h.Score * s.LexicalWeight
			prev.Source = models.SourceHybrid
			continue
		}
		c := h
		c.Score = h.Score * s.LexicalWeight
		byID[c.ChunkID] = &c
		order = append(order, c.ChunkID)
	}

	out := make([]models.RetrievalCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
