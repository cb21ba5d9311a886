// Package answer orchestrates the grounded question-answering pipeline:
// retrieve, rerank, generate, validate, renumber.
package answer

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"vidcite/internal/ai"
	"vidcite/internal/reranker"
	"vidcite/internal/retriever"
	"vidcite/internal/validator"
	"vidcite/pkg/models"
)

// Options tune one pipeline instance. Zero values fall back to defaults.
type Options struct {
	RetrieveLimit       int     // candidates kept after hybrid merge
	SimilarityThreshold float64 // vector-search floor
	TopK                int     // candidates fed to the generator
	Validation          validator.Options
}

// DefaultOptions returns the production pipeline settings.
func DefaultOptions() Options {
	return Options{
		RetrieveLimit:       10,
		SimilarityThreshold: 0.65,
		TopK:                5,
		Validation:          validator.DefaultOptions(),
	}
}

// AskRequest is one fan question against one creator's library.
type AskRequest struct {
	CreatorID   string           `json:"creator_id"`
	CreatorName string           `json:"creator_name"`
	Query       string           `json:"query"`
	History     []models.Message `json:"history,omitempty"`
}

// Pipeline wires the retrieval stages to the generation provider.
type Pipeline struct {
	Retriever *retriever.Service
	Reranker  *reranker.Service
	Client    ai.Client
	Options   Options
	Logger    zerolog.Logger
}

// NewPipeline builds a pipeline with default options.
func NewPipeline(r *retriever.Service, rr *reranker.Service, client ai.Client, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		Retriever: r,
		Reranker:  rr,
		Client:    client,
		Options:   DefaultOptions(),
		Logger:    logger,
	}
}

// Ask answers one question. Provider failures degrade to the fixed
// no-knowledge response rather than surfacing; the only returned error is
// context cancellation, in which case no partial citation state comes back.
func (p *Pipeline) Ask(ctx context.Context, req AskRequest) (models.AskResponse, error) {
	opt := p.Options
	if opt.RetrieveLimit <= 0 {
		opt = DefaultOptions()
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return noKnowledge(models.SearchStats{}), nil
	}

	candidates, rstats, err := p.Retriever.Search(ctx, query, req.CreatorID, opt.RetrieveLimit, opt.SimilarityThreshold)
	stats := models.SearchStats{
		VectorHits:  rstats.VectorHits,
		LexicalHits: rstats.LexicalHits,
		Merged:      rstats.Merged,
	}
	if err := ctx.Err(); err != nil {
		return models.AskResponse{}, err
	}
	if err != nil {
		p.Logger.Error().Err(err).Str("creator_id", req.CreatorID).Msg("retrieval failed")
		return noKnowledge(stats), nil
	}
	if len(candidates) == 0 {
		return noKnowledge(stats), nil
	}

	reranked, _ := p.Reranker.Rerank(ctx, query, candidates, opt.TopK)
	stats.Reranked = len(reranked)
	if err := ctx.Err(); err != nil {
		return models.AskResponse{}, err
	}

	system := BuildSystemPrompt(req.CreatorName, reranked)
	raw, err := p.Client.Generate(ctx, system, req.History, query)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return models.AskResponse{}, cerr
		}
		p.Logger.Error().Err(err).Str("creator_id", req.CreatorID).Msg("generation failed")
		return noKnowledge(stats), nil
	}

	validated := validator.Validate(query, raw, reranked, opt.Validation)
	stats.Validated = len(validated)
	if len(validated) == 0 {
		p.Logger.Info().Str("creator_id", req.CreatorID).Msg("no candidate passed citation validation")
		return noKnowledge(stats), nil
	}

	text, citations, survivors := Renumber(raw, reranked, validated)
	if len(citations) == 0 {
		// Generator cited nothing that survived; its prose is ungrounded.
		p.Logger.Warn().Str("creator_id", req.CreatorID).Msg("no citation marker survived renumbering")
		return noKnowledge(stats), nil
	}

	var confidence float64
	for _, s := range survivors {
		confidence += s.Result.Confidence
	}
	confidence /= float64(len(survivors))

	return models.AskResponse{
		Answer:     text,
		Citations:  citations,
		Confidence: confidence,
		Stats:      stats,
	}, nil
}

func noKnowledge(stats models.SearchStats) models.AskResponse {
	return models.AskResponse{
		Answer:     NoKnowledgeMessage,
		Citations:  []models.Citation{},
		Confidence: 0,
		Stats:      stats,
	}
}
